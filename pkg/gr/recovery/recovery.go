/*
Copyright 2024 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package recovery reads and updates the recovery state of the passive site.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/poll"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/textmatch"
	"github.com/consultant-1379/eo-gr-testing/pkg/dm"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
)

const (
	// DefaultTimeout bounds WaitForStatus when no timeout is given.
	DefaultTimeout = 30 * time.Second
	// DefaultInterval is the delay between two recovery-status commands.
	DefaultInterval = 10 * time.Second
)

// ErrStatusNotFound is returned when the recovery-status output carries no
// status.
var ErrStatusNotFound = errors.New("recovery status is not found")

// Status is a recovery state reported for a site.
type Status string

// Recovery states.
const (
	Recoverable        Status = patterns.RecoveryStatusRecoverable
	NotRecoverable     Status = patterns.RecoveryStatusNotRecov
	RecoveryInProgress Status = patterns.RecoveryStatusInProgress
)

// Orchestrator runs recovery commands against the passive site.
type Orchestrator struct {
	runner      dm.CommandRunner
	recoverSite string
	// Interval is the polling interval of WaitForStatus.
	Interval time.Duration
}

// NewOrchestrator returns an orchestrator acting on the site reachable at
// passiveGRHost.
func NewOrchestrator(runner dm.CommandRunner, passiveGRHost string) *Orchestrator {
	return &Orchestrator{runner: runner, recoverSite: passiveGRHost, Interval: DefaultInterval}
}

// GetStatus returns the current recovery state of the site.
func (o *Orchestrator) GetStatus(ctx context.Context) (Status, error) {
	log := logger.GetLogger(ctx)
	log.Info("Executing geo recovery status cmd...")
	out, err := o.runner.RunCommand(ctx, fmt.Sprintf(patterns.RecoveryStatusCmd, o.recoverSite))
	if err != nil {
		return "", err
	}
	status, ok := textmatch.Search(patterns.RecoveryStatus, out)
	if !ok || status == "" {
		return "", logger.LogError(log, fmt.Errorf("%w for %q site.\noutput=%s", ErrStatusNotFound, o.recoverSite, out))
	}
	return Status(status), nil
}

// WaitForStatus polls the recovery state until it equals expected. A zero
// timeout uses DefaultTimeout.
func (o *Orchestrator) WaitForStatus(ctx context.Context, expected Status, timeout time.Duration) (bool, error) {
	log := logger.GetLogger(ctx)
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log.Infof("Verify Recovery Status in expected_status=%s", expected)
	return poll.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		status, err := o.GetStatus(ctx)
		if err != nil {
			return false, err
		}
		if status != expected {
			log.Warnf("Recovery Status not in expected_status=%s. Current status: %s", expected, status)
			return false, nil
		}
		log.Infof("Recovery Status in expected_status=%s", expected)
		return true, nil
	},
		poll.WithName("recovery status "+string(expected)),
		poll.WithInterval(o.Interval),
		poll.WithTimeout(timeout),
		poll.WithMessage(fmt.Sprintf("Recovery Status not in expected_status=%s", expected)),
	)
}

// UpdateAndVerify runs update-recovery-state and reports whether the site
// was reported recoverable afterwards.
func (o *Orchestrator) UpdateAndVerify(ctx context.Context) (bool, error) {
	log := logger.GetLogger(ctx)
	log.Info("Executing geo update recovery status cmd...")
	out, err := o.runner.RunCommand(ctx, fmt.Sprintf(patterns.UpdateRecoveryStateCmd, o.recoverSite))
	if err != nil {
		return false, err
	}
	return textmatch.Matches(patterns.RecoverableAfterUpdate(o.recoverSite), out), nil
}
