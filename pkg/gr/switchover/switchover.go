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

// Package switchover promotes the passive site of a GR pair and classifies
// what the Deployment Manager reported.
package switchover

import (
	"context"
	"fmt"
	"time"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/prometheus"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/runner"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/textmatch"
	"github.com/consultant-1379/eo-gr-testing/pkg/dm"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
	"github.com/consultant-1379/eo-gr-testing/pkg/site"
)

// DefaultTimeout bounds a switchover run by RunAsync.
const DefaultTimeout = 90 * time.Minute

// TaskName is the default name of background switchover tasks.
const TaskName = "SWITCHOVER"

// Classification of a switchover output.
type Classification string

const (
	// Success means only the success marker was found.
	Success Classification = "success"
	// Failure means only the failure marker was found.
	Failure Classification = "failure"
	// Unknown means neither marker was found.
	Unknown Classification = "unknown"
	// Ambiguous means both markers were found.
	Ambiguous Classification = "ambiguous"
)

// Outcome is the retained output of one switchover run.
type Outcome struct {
	Output string
}

// Matches reports whether pattern is found in the output.
func (o *Outcome) Matches(pattern string) bool {
	return textmatch.Matches(pattern, o.Output)
}

// Classify looks for the success and failure markers independently.
func (o *Outcome) Classify() Classification {
	success := o.Matches(patterns.SwitchoverSuccess)
	failure := o.Matches(patterns.SwitchoverFailure)
	switch {
	case success && failure:
		return Ambiguous
	case success:
		return Success
	case failure:
		return Failure
	}
	return Unknown
}

// NoHealthyUpstream reports whether the secondary site could not be reached
// during the switchover.
func (o *Outcome) NoHealthyUpstream() bool {
	return o.Matches(patterns.NoHealthyUpstream)
}

// NoFreeMemory reports whether the backup target ran out of space.
func (o *Outcome) NoFreeMemory() bool {
	return o.Matches(patterns.NoFreeMemory)
}

// BackupID returns the backup the switchover reported using.
func (o *Outcome) BackupID() (string, bool) {
	id, ok := textmatch.Search(patterns.BackupID, o.Output)
	return id, ok && id != ""
}

// Orchestrator runs switchovers. The passive site is always promoted.
type Orchestrator struct {
	runner       dm.CommandRunner
	newPrimary   string
	newSecondary string
	// Timeout bounds RunAsync. Zero means no bound.
	Timeout time.Duration
}

// NewOrchestrator returns an orchestrator promoting pair.Passive.
func NewOrchestrator(runner dm.CommandRunner, pair *site.Pair) *Orchestrator {
	return &Orchestrator{
		runner:       runner,
		newPrimary:   pair.Passive.GRHost(),
		newSecondary: pair.Active.GRHost(),
		Timeout:      DefaultTimeout,
	}
}

// BuildCommand returns the switchover command, pinned to backupID when set.
func (o *Orchestrator) BuildCommand(backupID string) string {
	if backupID != "" {
		return fmt.Sprintf(patterns.SwitchoverWithBackupCmd, o.newPrimary, o.newSecondary, backupID)
	}
	return fmt.Sprintf(patterns.SwitchoverCmd, o.newPrimary, o.newSecondary)
}

// Run executes the switchover and returns its outcome. Failure is reported
// in the outcome, err is only set when the command could not be run.
func (o *Orchestrator) Run(ctx context.Context, backupID string) (*Outcome, error) {
	log := logger.GetLogger(ctx)
	log.Info("Execute switchover...")
	out, err := o.runner.RunCommand(ctx, o.BuildCommand(backupID))
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{Output: out}
	cls := outcome.Classify()
	prometheus.SwitchoverOutcomeCounterVec.WithLabelValues(string(cls)).Inc()
	log.Infof("Switchover execution completed: %s", cls)
	return outcome, nil
}

// RunAsync runs the switchover in a task bounded by Timeout.
func (o *Orchestrator) RunAsync(ctx context.Context, backupID string) *runner.Task[*Outcome] {
	return runner.Start(ctx, TaskName, func(ctx context.Context) (*Outcome, error) {
		if o.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.Timeout)
			defer cancel()
		}
		return o.Run(ctx, backupID)
	})
}

// RunInBackground runs the switchover in a named task without time bound.
// Watchers use the name to check the switchover is still running.
func (o *Orchestrator) RunInBackground(ctx context.Context, backupID, name string) *runner.Task[*Outcome] {
	if name == "" {
		name = TaskName
	}
	return runner.Start(ctx, name, func(ctx context.Context) (*Outcome, error) {
		return o.Run(ctx, backupID)
	})
}

// RunAndClassify runs the switchover and reports whether expectedPattern,
// the success marker when empty, is in the output. The outcome is returned
// so that failure and unknown output can be told apart.
func (o *Orchestrator) RunAndClassify(ctx context.Context, backupID, expectedPattern string) (bool, *Outcome, error) {
	if expectedPattern == "" {
		expectedPattern = patterns.SwitchoverSuccess
	}
	if err := textmatch.Validate(expectedPattern); err != nil {
		return false, nil, err
	}
	outcome, err := o.Run(ctx, backupID)
	if err != nil {
		return false, nil, err
	}
	return outcome.Matches(expectedPattern), outcome, nil
}
