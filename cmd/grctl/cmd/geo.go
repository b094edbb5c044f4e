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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/runner"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/utils"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/availability"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/disruption"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/recovery"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/status"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/switchover"
)

var (
	statusCheck   string
	targetVersion string
	comparator    string

	waitNewBackup bool

	backupID     string
	background   bool
	joinTimeout  time.Duration
	expectStatus string
	disruptPod   string
	disruptLax   bool

	recoveryExpected string
	recoveryTimeout  time.Duration
)

// checkResult turns a false check into an error.
func checkResult(ok bool, err error, msg string) error {
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(msg)
	}
	return nil
}

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run geo status and check the switchover conditions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		checker := status.NewChecker(s.dm)
		switch statusCheck {
		case "raw":
			raw, err := checker.Raw(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		case "full":
			ok, err := checker.FullStatusCheck(ctx)
			return checkResult(ok, err, "GR Status does not match switchover conditions")
		case "eo-version":
			snapshot, err := checker.Snapshot(ctx)
			if err != nil {
				return err
			}
			ok, err := status.CompareEOVersion(ctx, snapshot, targetVersion, utils.Comparator(comparator))
			return checkResult(ok, err, fmt.Sprintf("EO version is not %s %s", comparator, targetVersion))
		case "primary-unreachable":
			ok, err := checker.PrimaryUnreachableCheck(ctx)
			return checkResult(ok, err, "GR Status still reports the primary site")
		}
		return fmt.Errorf("unknown status check %q", statusCheck)
	},
}

// InitStatus helps initialize statusCmd.
func InitStatus(root *cobra.Command) {
	statusCmd.Flags().StringVar(&statusCheck, "check", "full", "one of full, primary-unreachable, eo-version, raw")
	statusCmd.Flags().StringVar(&targetVersion, "target-version", "", "EO version compared by the eo-version check")
	statusCmd.Flags().StringVar(&comparator, "comparator", string(utils.GreaterThanOrEqual),
		"relational operator of the eo-version check: > >= < <= == !=")
	root.AddCommand(statusCmd)
}

// availabilityCmd represents the availability command.
var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Wait for GR to report the sites available for switchover",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		checker := availability.NewChecker(s.dm, s.pair, nil, nil)
		if waitNewBackup {
			ok, err := checker.WaitForNewBackupID(ctx, 0)
			return checkResult(ok, err, "Backup ID is not updated")
		}
		ok, err := checker.VerifyAvailability(ctx, "")
		if err := checkResult(ok, err, "EO GR hasn't become available"); err != nil {
			return err
		}
		id, err := checker.BackupID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

// InitAvailability helps initialize availabilityCmd.
func InitAvailability(root *cobra.Command) {
	availabilityCmd.Flags().BoolVar(&waitNewBackup, "wait-new-backup", false,
		"wait until the availability command reports a new backup id")
	root.AddCommand(availabilityCmd)
}

// switchoverCmd represents the switchover command.
var switchoverCmd = &cobra.Command{
	Use:   "switchover",
	Short: "Promote the passive site",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.GetLogger(ctx)
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		o := switchover.NewOrchestrator(s.dm, s.pair)

		var outcome *switchover.Outcome
		switch {
		case disruptPod != "":
			watcher, err := newWatcher(cmd, s, disruptPod)
			if err != nil {
				return err
			}
			if outcome, err = disruption.RunSwitchoverWithWatcher(ctx, o, backupID, watcher); err != nil {
				return err
			}
		case background:
			task := o.RunInBackground(ctx, backupID, switchover.TaskName)
			outcome, err = task.JoinWithResult(joinTimeout)
			if errors.Is(err, runner.ErrTaskTimeout) {
				log.Warnf("Switchover is still running after %v", joinTimeout)
			}
			if err != nil {
				return err
			}
		default:
			task := o.RunAsync(ctx, backupID)
			if outcome, err = task.JoinWithResult(0); err != nil {
				return err
			}
		}

		cls := outcome.Classify()
		fmt.Fprintf(cmd.OutOrStdout(), "Switchover %s\n", cls)
		if id, ok := outcome.BackupID(); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Backup Id: %s\n", id)
		}
		switch {
		case outcome.NoFreeMemory():
			log.Error("Backup target has no free memory")
		case outcome.NoHealthyUpstream():
			log.Error("Secondary site switchover process has failed")
		}
		expected := patterns.SwitchoverSuccess
		if expectStatus == string(switchover.Failure) {
			expected = patterns.SwitchoverFailure
		}
		if !outcome.Matches(expected) {
			return fmt.Errorf("switchover finished with unexpected status %s:\n%s", cls, outcome.Output)
		}
		return nil
	},
}

// newWatcher builds the pod disruption run alongside the switchover. Pods
// are killed on the passive site, the one being promoted.
func newWatcher(cmd *cobra.Command, s *session, name string) (disruption.Watcher, error) {
	cluster, err := s.pair.Passive.Cluster(cmd.Context())
	if err != nil {
		return nil, err
	}
	switch name {
	case "bur":
		roster := pods.HealthCheckRoster(s.pair.Passive.VMVNFMInstalled())
		return func(ctx context.Context, tracker disruption.TaskTracker, taskName string) error {
			return disruption.KillPodWhenPodsUp(ctx, tracker, taskName, cluster, roster, pods.GRBurOrchestrator, !disruptLax)
		}, nil
	case "bro":
		return func(ctx context.Context, tracker disruption.TaskTracker, taskName string) error {
			return disruption.KillPodWhenPodRecreates(ctx, tracker, taskName, cluster, pods.VNFLCMDB, pods.CtrlBRO, !disruptLax)
		}, nil
	}
	return nil, fmt.Errorf("unknown pod disruption %q", name)
}

// InitSwitchover helps initialize switchoverCmd.
func InitSwitchover(root *cobra.Command) {
	switchoverCmd.Flags().StringVar(&backupID, "backup-id", "", "backup to switch over with, latest when empty")
	switchoverCmd.Flags().BoolVar(&background, "background", false,
		"run the switchover without time bound and stop waiting after --join-timeout")
	switchoverCmd.Flags().DurationVar(&joinTimeout, "join-timeout", switchover.DefaultTimeout,
		"how long to wait for a background switchover")
	switchoverCmd.Flags().StringVar(&expectStatus, "expect", string(switchover.Success), "expected status, success or failure")
	switchoverCmd.Flags().StringVar(&disruptPod, "disrupt", "",
		"kill a passive site pod during the switchover: bur (once GR pods are up) or bro (once vnflcm db restarts)")
	switchoverCmd.Flags().BoolVar(&disruptLax, "disrupt-optional", false,
		"do not fail when the switchover ends before the --disrupt trigger was met")
	root.AddCommand(switchoverCmd)
}

// recoveryCmd represents the recovery command.
var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Recovery state of the passive site",
}

var recoveryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the recovery state",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newRecovery(cmd)
		if err != nil {
			return err
		}
		st, err := o.GetStatus(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), st)
		return nil
	},
}

var recoveryWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a recovery state",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newRecovery(cmd)
		if err != nil {
			return err
		}
		ok, err := o.WaitForStatus(cmd.Context(), recovery.Status(recoveryExpected), recoveryTimeout)
		return checkResult(ok, err, "recovery state "+recoveryExpected+" not reached")
	},
}

var recoveryUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the recovery state and check the site became recoverable",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newRecovery(cmd)
		if err != nil {
			return err
		}
		ok, err := o.UpdateAndVerify(cmd.Context())
		return checkResult(ok, err, "site is not recoverable after update-recovery-state")
	},
}

func newRecovery(cmd *cobra.Command) (*recovery.Orchestrator, error) {
	s, err := newSession(cmd.Context())
	if err != nil {
		return nil, err
	}
	return recovery.NewOrchestrator(s.dm, s.pair.Passive.GRHost()), nil
}

// InitRecovery helps initialize recoveryCmd.
func InitRecovery(root *cobra.Command) {
	recoveryWaitCmd.Flags().StringVar(&recoveryExpected, "expected", string(recovery.Recoverable),
		"expected state: RECOVERABLE, NOT_RECOVERABLE or RECOVERY_IN_PROGRESS")
	recoveryWaitCmd.Flags().DurationVar(&recoveryTimeout, "timeout", recovery.DefaultTimeout, "how long to wait")
	recoveryCmd.AddCommand(recoveryStatusCmd, recoveryWaitCmd, recoveryUpdateCmd)
	root.AddCommand(recoveryCmd)
}

// registrySyncCmd represents the registry-sync command.
var registrySyncCmd = &cobra.Command{
	Use:   "registry-sync",
	Short: "Wait for both GR docker registries to hold the same images",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		active, err := s.pair.Active.Registry(s.env.PrettyAPILogs)
		if err != nil {
			return err
		}
		passive, err := s.pair.Passive.Registry(s.env.PrettyAPILogs)
		if err != nil {
			return err
		}
		ok, err := availability.NewChecker(s.dm, s.pair, active, passive).VerifyRegistriesInSync(ctx)
		return checkResult(ok, err, "GR docker registries are not in sync")
	},
}

// InitRegistrySync helps initialize registrySyncCmd.
func InitRegistrySync(root *cobra.Command) {
	root.AddCommand(registrySyncCmd)
}
