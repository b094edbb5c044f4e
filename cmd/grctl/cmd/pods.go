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
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/dm"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/health"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
)

var (
	checkPassive bool

	logsDir    string
	onlyFailed bool

	onPassive bool
)

func siteChecker(ctx context.Context, s *session, passive bool) (*health.SiteChecker, error) {
	st := s.siteByName(passive)
	cluster, err := st.Cluster(ctx)
	if err != nil {
		return nil, err
	}
	return health.NewSiteChecker(st.EnvName(), cluster, st.VMVNFMInstalled()), nil
}

func newHealthChecker(ctx context.Context, s *session, passive bool) (*health.Checker, error) {
	active, err := siteChecker(ctx, s, false)
	if err != nil {
		return nil, err
	}
	c := &health.Checker{Active: active}
	if passive {
		if c.Passive, err = siteChecker(ctx, s, true); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// healthcheckCmd represents the healthcheck command.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check EO pods run on the active site only and none has failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		c, err := newHealthChecker(ctx, s, checkPassive)
		if err != nil {
			return err
		}
		return c.Healthcheck(ctx)
	},
}

// InitHealthcheck helps initialize healthcheckCmd.
func InitHealthcheck(root *cobra.Command) {
	healthcheckCmd.Flags().BoolVar(&checkPassive, "passive", false, "also check pods are absent on the passive site")
	root.AddCommand(healthcheckCmd)
}

// collectLogsCmd represents the collect-logs command.
var collectLogsCmd = &cobra.Command{
	Use:   "collect-logs",
	Short: "Collect EO logs of a site with the Deployment Manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.GetLogger(ctx)
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		if s.eoNode == nil {
			return fmt.Errorf("collect-logs needs the EO node, run it in %s mode", dm.ModeRV)
		}
		st := s.siteByName(onPassive)
		if err := os.MkdirAll(logsDir, 0o750); err != nil {
			return err
		}
		collector := dm.NewLogCollector(s.dm, s.eoNode, s.workdirEnv, st.Namespace(), logsDir, s.env.LogPrefix)
		defer func() {
			if err := collector.Cleanup(ctx); err != nil {
				log.Errorf("failed to remove logs from EO node. err=%v", err)
			}
		}()
		var files []string
		if onlyFailed {
			cluster, err := st.Cluster(ctx)
			if err != nil {
				return err
			}
			files, err = collector.CollectIfFailedPods(ctx, cluster, st.Namespace())
			if err != nil {
				return err
			}
		} else if files, err = collector.Collect(ctx, st.Namespace()); err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

// InitCollectLogs helps initialize collectLogsCmd.
func InitCollectLogs(root *cobra.Command) {
	collectLogsCmd.Flags().StringVar(&logsDir, "dir", "logs", "local directory receiving the log archives")
	collectLogsCmd.Flags().BoolVar(&onlyFailed, "only-failed", false, "collect only when the site has failed pods")
	collectLogsCmd.Flags().BoolVar(&onPassive, "passive", false, "collect logs of the passive site")
	root.AddCommand(collectLogsCmd)
}

// burEnvCmd represents the bur-env command.
var burEnvCmd = &cobra.Command{
	Use:   "bur-env NAME VALUE",
	Short: "Set an environment variable of the GR BUR orchestrator",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.GetLogger(ctx)
		name, value := args[0], args[1]
		if !slices.Contains(pods.BurEnvVars, name) {
			return fmt.Errorf("%s is not one of %v", name, pods.BurEnvVars)
		}
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		cluster, err := s.siteByName(onPassive).Cluster(ctx)
		if err != nil {
			return err
		}
		d := pods.GRBurOrchestrator
		changed, err := cluster.UpdateDeploymentEnv(ctx, d.Name, d.Container, name, value)
		if err != nil {
			return err
		}
		if changed {
			log.Infof("%s set to %q on %s", name, value, d.Name)
		} else {
			log.Infof("%s already set to %q on %s", name, value, d.Name)
		}
		return nil
	},
}

// InitBurEnv helps initialize burEnvCmd.
func InitBurEnv(root *cobra.Command) {
	burEnvCmd.Flags().BoolVar(&onPassive, "passive", false, "update the passive site")
	root.AddCommand(burEnvCmd)
}
