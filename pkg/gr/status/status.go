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

// Package status interprets the geo status report of the Deployment Manager.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/poll"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/textmatch"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/utils"
	"github.com/consultant-1379/eo-gr-testing/pkg/dm"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
)

const (
	// DefaultTimeout bounds status polling. Image sync is the slowest
	// condition to settle.
	DefaultTimeout = 15 * time.Minute
	// DefaultInterval is the delay between two status commands.
	DefaultInterval = 30 * time.Second
)

// FieldMissingError is returned when a mandatory field or block is absent
// from the report.
type FieldMissingError struct {
	Key    string
	Source string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("value for %q is missing in GR Status output (%s)", e.Key, e.Source)
}

// MismatchError is returned when values that must agree between the sites
// do not, or when a value is unusable. Callers must not retry on it.
type MismatchError struct {
	Field     string
	Primary   string
	Secondary string
	Message   string
}

func (e *MismatchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s is not the same: primary=%q != secondary=%q", e.Field, e.Primary, e.Secondary)
}

// Snapshot is one parsed geo status report.
type Snapshot struct {
	Raw       string
	Primary   string
	Secondary string
}

// ParseSnapshot splits raw into the Primary and Secondary blocks.
func ParseSnapshot(raw string) (*Snapshot, error) {
	primary, ok := textmatch.Search(patterns.PrimaryBlock, raw, textmatch.DotAll())
	if !ok {
		return nil, &FieldMissingError{Key: patterns.PrimaryDetails, Source: "status output"}
	}
	secondary, ok := textmatch.Search(patterns.SecondaryBlock, raw, textmatch.DotAll())
	if !ok {
		return nil, &FieldMissingError{Key: patterns.SecondaryDetails, Source: "status output"}
	}
	return &Snapshot{Raw: raw, Primary: primary, Secondary: secondary}, nil
}

// ExtractField returns the value of key in block. A present but empty field
// yields "".
func ExtractField(key, block string) (string, error) {
	v, ok := textmatch.Search(patterns.Field(key), block)
	if !ok {
		return "", &FieldMissingError{Key: key, Source: "details block"}
	}
	return v, nil
}

func extractPair(key, primary, secondary string) (string, string, error) {
	p, err := ExtractField(key, primary)
	if err != nil {
		return "", "", err
	}
	s, err := ExtractField(key, secondary)
	if err != nil {
		return "", "", err
	}
	return p, s, nil
}

func verifySame(ctx context.Context, key, primary, secondary string) error {
	log := logger.GetLogger(ctx)
	p, s, err := extractPair(key, primary, secondary)
	if err != nil {
		return logger.LogError(log, err)
	}
	if p != s {
		return logger.LogError(log, &MismatchError{Field: key, Primary: p, Secondary: s})
	}
	log.Infof("%s check is successful", key)
	return nil
}

// VerifyActiveAppsMatch fails with a *MismatchError when both sites do not
// run the same applications.
func VerifyActiveAppsMatch(ctx context.Context, primary, secondary string) error {
	return verifySame(ctx, patterns.ActiveApplications, primary, secondary)
}

// VerifyClusterVersionMatch fails with a *MismatchError when both sites do
// not run the same EO version.
func VerifyClusterVersionMatch(ctx context.Context, primary, secondary string) error {
	return verifySame(ctx, patterns.ClusterVersion, primary, secondary)
}

// CompareEOVersion reports whether the EO version of the primary site
// relates to target as comparator says.
func CompareEOVersion(ctx context.Context, s *Snapshot, target string, comparator utils.Comparator) (bool, error) {
	v, err := ExtractField(patterns.ClusterVersion, s.Primary)
	if err != nil {
		return false, logger.LogError(logger.GetLogger(ctx), err)
	}
	return utils.CompareVersions(ctx, strings.TrimSpace(v), target, comparator)
}

// IsBackupInSync reports whether the backup last exported by the primary is
// the one last imported by the secondary. A primary reporting no backup is a
// *MismatchError.
func IsBackupInSync(ctx context.Context, primary, secondary string) (bool, error) {
	log := logger.GetLogger(ctx)
	exported, err := ExtractField(patterns.LastExportedBackup, primary)
	if err != nil {
		return false, logger.LogError(log, err)
	}
	if strings.Contains(strings.ToLower(exported), patterns.BackupNotFoundMarker) {
		return false, logger.LogError(log, &MismatchError{Field: patterns.LastExportedBackup, Message: exported})
	}
	imported, err := ExtractField(patterns.LastImportedBackup, secondary)
	if err != nil {
		return false, logger.LogError(log, err)
	}
	if exported != imported {
		log.Warnf("Backup IDs are not the same: exported=%q != imported=%q", exported, imported)
		return false, nil
	}
	log.Info("Backup IDs check is successful")
	return true, nil
}

func neverExecuted(v string) bool {
	return strings.Contains(strings.ToLower(v), patterns.ImageSyncNeverExecuted)
}

// IsImageSyncAhead reports whether the secondary synchronised images at or
// after the primary did. A primary that never synchronised is pending, not
// an error.
func IsImageSyncAhead(ctx context.Context, primary, secondary string) (bool, error) {
	log := logger.GetLogger(ctx)
	p, s, err := extractPair(patterns.LastImageSync, primary, secondary)
	if err != nil {
		return false, logger.LogError(log, err)
	}
	if neverExecuted(p) {
		log.Warnf("%s: %s. Wait for the images to sync", patterns.LastImageSync, p)
		return false, nil
	}
	if neverExecuted(s) {
		log.Warnf("%s of secondary: %s. Wait for the images to sync", patterns.LastImageSync, s)
		return false, nil
	}
	pt, err := time.Parse(patterns.ImageSyncTimeLayout, strings.TrimSpace(p))
	if err != nil {
		return false, fmt.Errorf("failed to parse primary %s %q: %w", patterns.LastImageSync, p, err)
	}
	st, err := time.Parse(patterns.ImageSyncTimeLayout, strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("failed to parse secondary %s %q: %w", patterns.LastImageSync, s, err)
	}
	if pt.After(st) {
		log.Warnf("Image Synchronisation is not match condition: primary=%q should not be later than secondary=%q", p, s)
		return false, nil
	}
	log.Info("Image Synchronisation check is successful")
	return true, nil
}

// VerifyHostMatchesDNS checks the DNS match state of the primary GR host,
// one of patterns.SiteInfoStateOK or patterns.SiteInfoStateFailed.
func VerifyHostMatchesDNS(ctx context.Context, raw, expected string) error {
	log := logger.GetLogger(ctx)
	v, err := ExtractField(patterns.PrimaryHostMatchesDNS, raw)
	if err != nil {
		return logger.LogError(log, err)
	}
	v = strings.TrimSpace(v)
	if v != expected {
		return logger.LogError(log, &MismatchError{
			Field:   patterns.PrimaryHostMatchesDNS,
			Message: fmt.Sprintf("is %s, expected %s", v, expected),
		})
	}
	log.Infof("%s is %s", patterns.PrimaryHostMatchesDNS, v)
	return nil
}

// Checker runs geo status and evaluates switchover preconditions.
type Checker struct {
	runner dm.CommandRunner
	// Interval and Timeout bound the polling of the checks.
	Interval time.Duration
	Timeout  time.Duration
}

// NewChecker returns a Checker with the default polling bounds.
func NewChecker(runner dm.CommandRunner) *Checker {
	return &Checker{runner: runner, Interval: DefaultInterval, Timeout: DefaultTimeout}
}

// Raw runs geo status once.
func (c *Checker) Raw(ctx context.Context) (string, error) {
	logger.GetLogger(ctx).Info("Executing Geo Status ...")
	return c.runner.RunCommand(ctx, patterns.StatusCmd)
}

// Snapshot runs geo status once and parses it.
func (c *Checker) Snapshot(ctx context.Context) (*Snapshot, error) {
	raw, err := c.Raw(ctx)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(raw)
}

// Evaluate checks one snapshot. Mismatches are errors, pending backup or
// image sync is false.
func Evaluate(ctx context.Context, s *Snapshot) (bool, error) {
	if err := VerifyActiveAppsMatch(ctx, s.Primary, s.Secondary); err != nil {
		return false, err
	}
	if err := VerifyClusterVersionMatch(ctx, s.Primary, s.Secondary); err != nil {
		return false, err
	}
	inSync, err := IsBackupInSync(ctx, s.Primary, s.Secondary)
	if err != nil || !inSync {
		return false, err
	}
	return IsImageSyncAhead(ctx, s.Primary, s.Secondary)
}

// FullStatusCheck polls geo status until both sites agree and the secondary
// caught up with backups and images.
func (c *Checker) FullStatusCheck(ctx context.Context) (bool, error) {
	return poll.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		s, err := c.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		return Evaluate(ctx, s)
	},
		poll.WithName("full geo status"),
		poll.WithInterval(c.Interval),
		poll.WithTimeout(c.Timeout),
		poll.WithMessage("GR Status does not match switchover conditions"),
	)
}

// PrimaryUnreachableCheck polls geo status until it reports the primary as
// gone.
func (c *Checker) PrimaryUnreachableCheck(ctx context.Context) (bool, error) {
	return poll.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		raw, err := c.Raw(ctx)
		if err != nil {
			return false, err
		}
		if err := VerifyHostMatchesDNS(ctx, raw, patterns.SiteInfoStateFailed); err != nil {
			return false, err
		}
		primary, ok := textmatch.Search(patterns.PrimaryBlock, raw, textmatch.DotAll())
		if !ok {
			return false, &FieldMissingError{Key: patterns.PrimaryDetails, Source: "status output"}
		}
		return strings.Contains(primary, patterns.NoPrimaryDetailsFound), nil
	},
		poll.WithName("geo status primary unreachable"),
		poll.WithInterval(c.Interval),
		poll.WithTimeout(c.Timeout),
		poll.WithMessage("GR Status does not match switchover conditions"),
	)
}
