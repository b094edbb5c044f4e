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

// Package availability checks that a GR pair is ready for a switchover: the
// Deployment Manager reports it available, backups keep being produced and
// both GR registries hold the same images.
package availability

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/poll"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/textmatch"
	"github.com/consultant-1379/eo-gr-testing/pkg/dm"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
	"github.com/consultant-1379/eo-gr-testing/pkg/registry"
	"github.com/consultant-1379/eo-gr-testing/pkg/site"
)

const (
	// DefaultTimeout bounds availability and backup id polling.
	DefaultTimeout = 5 * time.Minute
	// DefaultInterval is the delay between two availability commands.
	DefaultInterval = 5 * time.Second
	// RegistrySyncTimeout bounds registry comparison.
	RegistrySyncTimeout = 15 * time.Minute
	// RegistrySyncInterval is the delay between two registry comparisons.
	RegistrySyncInterval = 20 * time.Second
)

// ErrBackupIDNotFound is returned when the availability output carries no
// backup id.
var ErrBackupIDNotFound = errors.New("backup ID can't be found")

// ImageLister returns the normalized image inventory of a registry.
type ImageLister interface {
	CollectImagesWithTags(ctx context.Context) ([]registry.Image, error)
}

// Checker runs availability checks for a pair.
type Checker struct {
	runner  dm.CommandRunner
	pair    *site.Pair
	active  ImageLister
	passive ImageLister

	Interval             time.Duration
	Timeout              time.Duration
	RegistrySyncInterval time.Duration
	RegistrySyncTimeout  time.Duration
}

// NewChecker returns a Checker for pair. The registries are only needed by
// VerifyRegistriesInSync and may be nil otherwise.
func NewChecker(runner dm.CommandRunner, pair *site.Pair, activeRegistry, passiveRegistry ImageLister) *Checker {
	return &Checker{
		runner:               runner,
		pair:                 pair,
		active:               activeRegistry,
		passive:              passiveRegistry,
		Interval:             DefaultInterval,
		Timeout:              DefaultTimeout,
		RegistrySyncInterval: RegistrySyncInterval,
		RegistrySyncTimeout:  RegistrySyncTimeout,
	}
}

// availability runs the availability command for the switchover that would
// promote the passive site.
func (c *Checker) availability(ctx context.Context) (string, error) {
	return c.runner.RunCommand(ctx, fmt.Sprintf(patterns.AvailabilityCmd, c.pair.Passive.GRHost(), c.pair.Active.GRHost()))
}

// VerifyAvailability polls the availability command until its output
// matches pattern, patterns.Availability when empty.
func (c *Checker) VerifyAvailability(ctx context.Context, pattern string) (bool, error) {
	if pattern == "" {
		pattern = patterns.Availability
	}
	if err := textmatch.Validate(pattern); err != nil {
		return false, err
	}
	return poll.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		out, err := c.availability(ctx)
		if err != nil {
			return false, err
		}
		return textmatch.Matches(pattern, out), nil
	},
		poll.WithName("geo availability"),
		poll.WithInterval(c.Interval),
		poll.WithTimeout(c.Timeout),
		poll.WithMessage(fmt.Sprintf("EO GR hasn't become available after waiting for %v", c.Timeout)),
	)
}

// BackupID returns the backup id reported by the availability command.
func (c *Checker) BackupID(ctx context.Context) (string, error) {
	out, err := c.availability(ctx)
	if err != nil {
		return "", err
	}
	id, ok := textmatch.Search(patterns.BackupID, out)
	if !ok || id == "" {
		return "", logger.LogError(logger.GetLogger(ctx), fmt.Errorf("%w in output=%q", ErrBackupIDNotFound, out))
	}
	return id, nil
}

// WaitForNewBackupID captures the current backup id and polls until a
// different one is reported. interval overrides the checker interval when
// positive.
func (c *Checker) WaitForNewBackupID(ctx context.Context, interval time.Duration) (bool, error) {
	log := logger.GetLogger(ctx)
	log.Info("Verifying GR backup ID is updated in GR Availability cmd output...")
	if interval <= 0 {
		interval = c.Interval
	}
	initial, err := c.BackupID(ctx)
	if err != nil {
		return false, err
	}
	log.Infof("Initial backup ID: %s", initial)
	return poll.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		current, err := c.BackupID(ctx)
		if err != nil {
			return false, err
		}
		if current == initial {
			return false, nil
		}
		log.Infof("Backup ID is updated: %s -> %s", initial, current)
		return true, nil
	},
		poll.WithName("new backup id"),
		poll.WithInterval(interval),
		poll.WithTimeout(c.Timeout),
		poll.WithMessage(fmt.Sprintf("Backup ID is not updated in GR Availability cmd output within timeout %v", c.Timeout)),
	)
}

// RegistriesInSync compares both registries once.
func (c *Checker) RegistriesInSync(ctx context.Context) (bool, error) {
	log := logger.GetLogger(ctx)
	if c.active == nil || c.passive == nil {
		return false, fmt.Errorf("registry clients are not configured")
	}
	activeImages, err := c.active.CollectImagesWithTags(ctx)
	if err != nil {
		return false, err
	}
	passiveImages, err := c.passive.CollectImagesWithTags(ctx)
	if err != nil {
		return false, err
	}
	inSync := reflect.DeepEqual(normalize(activeImages), normalize(passiveImages))
	msg := fmt.Sprintf("\nActive Site (%s) registry: %v\nPassive Site (%s) registry: %v",
		c.pair.Active.EnvName(), activeImages, c.pair.Passive.EnvName(), passiveImages)
	if inSync {
		log.Infof("GR Docker Registry check is Successful:%s", msg)
	} else {
		log.Warnf("GR Docker Registry check found mismatch between registries:%s", msg)
	}
	return inSync, nil
}

// VerifyRegistriesInSync polls until both GR registries hold the same
// repositories with the same tags.
func (c *Checker) VerifyRegistriesInSync(ctx context.Context) (bool, error) {
	logger.GetLogger(ctx).Info("Checking if Passive Site GR Docker Registry are properly synced" +
		" with Active Site GR Docker Registry")
	return poll.WaitFor(ctx, c.RegistriesInSync,
		poll.WithName("registry sync"),
		poll.WithInterval(c.RegistrySyncInterval),
		poll.WithTimeout(c.RegistrySyncTimeout),
		poll.WithMessage(fmt.Sprintf("Images are not properly synced between Active and Passive sites "+
			"GR docker registries within timeout: %v", c.RegistrySyncTimeout)),
	)
}
