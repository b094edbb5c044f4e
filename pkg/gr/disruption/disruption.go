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

// Package disruption deletes pods while a switchover is in flight, once the
// site reached a given state.
package disruption

import (
	"context"
	"time"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/runner"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/switchover"
)

// PollInterval is the delay between two checks of the awaited pod state.
var PollInterval = 5 * time.Second

// PodCluster is the view of a site cluster the watchers need.
type PodCluster interface {
	PodExists(ctx context.Context, d pods.Descriptor) (bool, error)
	IsPodRunning(ctx context.Context, d pods.Descriptor) (bool, error)
	DeletePods(ctx context.Context, d pods.Descriptor) ([]string, error)
}

// TaskTracker tells whether a named task still runs. *runner.Group
// implements it.
type TaskTracker interface {
	IsAlive(name string) bool
}

// Watcher waits for its trigger while the task called taskName is alive and
// then disrupts the site.
type Watcher func(ctx context.Context, tracker TaskTracker, taskName string) error

// waitWhileAlive polls done while the task called taskName is alive and
// reports whether it held before the task returned.
func waitWhileAlive(ctx context.Context, tracker TaskTracker, taskName string,
	done func(ctx context.Context) (bool, error), raise bool) (bool, error) {
	return runner.WaitWhileAlive(ctx, taskName, func() bool { return tracker.IsAlive(taskName) }, nil,
		done, PollInterval, raise)
}

func deletePods(ctx context.Context, cluster PodCluster, victim pods.Descriptor) error {
	deleted, err := cluster.DeletePods(ctx, victim)
	if err != nil {
		return err
	}
	logger.GetLogger(ctx).Infof("Pods %v deleted", deleted)
	return nil
}

// KillPodWhenPodsUp waits until every roster pod exists, then deletes victim.
// Nothing is deleted when the task returns first: the call fails with
// runner.ErrConditionNotMetWhileAlive, or returns nil when raise is not set.
func KillPodWhenPodsUp(ctx context.Context, tracker TaskTracker, taskName string, cluster PodCluster,
	roster []pods.Descriptor, victim pods.Descriptor, raise bool) error {
	log := logger.GetLogger(ctx)
	log.Infof("Start to wait condition for restart %q pod", victim.Name)
	ok, err := waitWhileAlive(ctx, tracker, taskName, func(ctx context.Context) (bool, error) {
		for _, d := range roster {
			exists, err := cluster.PodExists(ctx, d)
			if err != nil || !exists {
				return false, err
			}
		}
		return true, nil
	}, raise)
	if err != nil || !ok {
		return err
	}
	return deletePods(ctx, cluster, victim)
}

// KillPodWhenPodRecreates waits until watched stops running, then deletes
// victim. It gives up the same way as KillPodWhenPodsUp.
func KillPodWhenPodRecreates(ctx context.Context, tracker TaskTracker, taskName string, cluster PodCluster,
	watched, victim pods.Descriptor, raise bool) error {
	log := logger.GetLogger(ctx)
	log.Infof("Start to wait condition for restart %q pod", victim.Name)
	ok, err := waitWhileAlive(ctx, tracker, taskName, func(ctx context.Context) (bool, error) {
		running, err := cluster.IsPodRunning(ctx, watched)
		return !running, err
	}, raise)
	if err != nil || !ok {
		return err
	}
	return deletePods(ctx, cluster, victim)
}

// RunSwitchoverWithWatcher runs the switchover and watcher side by side and
// returns the switchover outcome once both are over.
func RunSwitchoverWithWatcher(ctx context.Context, o *switchover.Orchestrator, backupID string,
	watcher Watcher) (*switchover.Outcome, error) {
	var outcome *switchover.Outcome
	g := runner.NewGroup(ctx)
	g.Go(switchover.TaskName, func(ctx context.Context) error {
		var err error
		outcome, err = o.Run(ctx, backupID)
		return err
	})
	g.Go(runner.TaskName("WATCHER", switchover.TaskName), func(ctx context.Context) error {
		return watcher(ctx, g, switchover.TaskName)
	})
	if err := g.Wait(); err != nil {
		return outcome, err
	}
	return outcome, nil
}
