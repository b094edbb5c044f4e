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
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/config"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/status"
	"github.com/consultant-1379/eo-gr-testing/pkg/kubernetes"
)

var monitorEvery time.Duration

// monitorCmd represents the monitor command.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Periodically check geo status and pods health",
	Long: "Periodically check geo status and pods health of both sites. Results are logged and exposed " +
		"as metrics. The GR config is reloaded when the file changes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.GetLogger(ctx)
		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		if err := watchPassivePods(ctx, s); err != nil {
			return err
		}

		var mu sync.Mutex
		current := s
		scheduler := gocron.NewScheduler(time.UTC)
		scheduler.SingletonModeAll()
		_, err = scheduler.Every(monitorEvery).Do(func() {
			mu.Lock()
			s := current
			mu.Unlock()
			monitorCycle(ctx, s)
		})
		if err != nil {
			return err
		}
		scheduler.StartAsync()
		defer scheduler.Stop()

		return config.Watch(ctx, s.cfgPath, func(cfg *config.Config) {
			next := &session{env: s.env, cfgPath: s.cfgPath}
			if err := next.load(ctx, cfg); err != nil {
				log.Errorf("keeping previous configuration. err=%v", err)
				return
			}
			mu.Lock()
			current = next
			mu.Unlock()
		})
	},
}

// watchPassivePods warns as soon as a roster pod shows up on the passive
// site. The watch stays on the site the monitor started with.
func watchPassivePods(ctx context.Context, s *session) error {
	log := logger.GetLogger(ctx)
	passive := s.pair.Passive
	cluster, err := passive.Cluster(ctx)
	if err != nil {
		return err
	}
	informer := kubernetes.NewPodInformer(cluster.Client(), cluster.Namespace())
	for _, d := range pods.HealthCheckRoster(passive.VMVNFMInstalled()) {
		err := informer.AddDescriptorListener(d, func(pod *corev1.Pod) {
			log.Warnf("Pod %s is present on passive site %s", pod.Name, passive.Name)
		})
		if err != nil {
			return err
		}
	}
	return informer.Listen(ctx)
}

// monitorCycle runs one round of checks. Failures are only logged.
func monitorCycle(ctx context.Context, s *session) {
	log := logger.GetLogger(ctx)
	snapshot, err := status.NewChecker(s.dm).Snapshot(ctx)
	if err == nil {
		var ok bool
		if ok, err = status.Evaluate(ctx, snapshot); err == nil {
			log.Infof("GR status meets switchover conditions: %t", ok)
		}
	}
	if err != nil {
		log.Errorf("GR status check failed. err=%v", err)
	}

	c, err := newHealthChecker(ctx, s, true)
	if err != nil {
		log.Errorf("failed to create health checker. err=%v", err)
		return
	}
	// One failed pods listing per cycle.
	c.Active.FailedPodsTimeout = c.Active.FailedPodsInterval
	c.Passive.FailedPodsTimeout = c.Passive.FailedPodsInterval
	if err := c.Healthcheck(ctx); err != nil {
		log.Errorf("pods health check failed. err=%v", err)
	}
}

// InitMonitor helps initialize monitorCmd.
func InitMonitor(root *cobra.Command) {
	monitorCmd.Flags().DurationVar(&monitorEvery, "every", 5*time.Minute, "interval between two checks")
	root.AddCommand(monitorCmd)
}
