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

// Package health verifies that EO pods run where a GR pair expects them to.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	corev1 "k8s.io/api/core/v1"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/poll"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/prometheus"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
	"github.com/consultant-1379/eo-gr-testing/pkg/kubernetes"
)

const (
	// FailedPodsTimeout is how long pods get to settle after a switchover.
	FailedPodsTimeout = 30 * time.Minute
	// FailedPodsInterval is the delay between two failed pod listings.
	FailedPodsInterval = 15 * time.Second
)

// PodCluster is the view of a site cluster the checks need.
type PodCluster interface {
	ListPods(ctx context.Context, d pods.Descriptor) ([]corev1.Pod, error)
	StatefulSetName(ctx context.Context, d pods.Descriptor) (string, error)
	FailedPods(ctx context.Context, excludeTerminated bool) ([]corev1.Pod, error)
}

// CheckFailedError lists every failure found by a health check.
type CheckFailedError struct {
	Failures []string
}

func (e *CheckFailedError) Error() string {
	return "pods status check failed:" + strings.Join(e.Failures, "")
}

// SiteChecker checks the pods of one site.
type SiteChecker struct {
	name            string
	cluster         PodCluster
	vmvnfmInstalled bool

	FailedPodsInterval time.Duration
	FailedPodsTimeout  time.Duration
}

// NewSiteChecker returns a checker for the site called name.
func NewSiteChecker(name string, cluster PodCluster, vmvnfmInstalled bool) *SiteChecker {
	return &SiteChecker{
		name:               name,
		cluster:            cluster,
		vmvnfmInstalled:    vmvnfmInstalled,
		FailedPodsInterval: FailedPodsInterval,
		FailedPodsTimeout:  FailedPodsTimeout,
	}
}

// Name returns the site name.
func (s *SiteChecker) Name() string {
	return s.name
}

// Roster returns the pods checked on the site.
func (s *SiteChecker) Roster() []pods.Descriptor {
	return pods.HealthCheckRoster(s.vmvnfmInstalled)
}

// isHAEnabled reports whether d runs in HA mode on the site. A missing
// stateful set means HA is off.
func (s *SiteChecker) isHAEnabled(ctx context.Context, d pods.Descriptor) (bool, error) {
	if !s.vmvnfmInstalled || !d.HACapable {
		return false, nil
	}
	name := d.Name
	if d.StatefulSet != "" {
		var err error
		name, err = s.cluster.StatefulSetName(ctx, d)
		if errors.Is(err, kubernetes.ErrStatefulSetNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	if strings.Contains(name, patterns.HAStatefulSetMarker) {
		logger.GetLogger(ctx).Debugf("HA is enabled for %q pod", name)
		return true, nil
	}
	return false, nil
}

// CheckPresence returns the roster pods whose presence disagrees with
// expectPresent. Pods being torn down are never reported.
func (s *SiteChecker) CheckPresence(ctx context.Context, roster []pods.Descriptor, expectPresent bool) ([]string, error) {
	log := logger.GetLogger(ctx)
	log.Infof("Make a health check of pods on site: %s", s.name)
	var unhealthy []string
	for _, d := range roster {
		list, err := s.cluster.ListPods(ctx, d)
		if err != nil {
			return nil, err
		}
		ha, err := s.isHAEnabled(ctx, d)
		if err != nil {
			return nil, err
		}
		if ha {
			unhealthy = append(unhealthy, checkHAPresence(d, list, expectPresent)...)
			continue
		}
		if checkPresence(list, expectPresent) {
			unhealthy = append(unhealthy, d.Name)
		}
	}
	if len(unhealthy) > 0 {
		log.Warnf("Unhealthy pods on site %s found: %v", s.name, unhealthy)
	} else {
		log.Infof("Pods health check on site %s successfully finished.", s.name)
	}
	return unhealthy, nil
}

// checkPresence reports whether a non HA pod is unhealthy.
func checkPresence(list []corev1.Pod, expectPresent bool) bool {
	live := false
	for i := range list {
		if !kubernetes.IsPodTerminated(&list[i]) {
			live = true
			break
		}
	}
	if live == expectPresent {
		return false
	}
	// Only terminating pods are left, the pod is on its way out.
	return len(list) == 0 || live
}

// checkHAPresence compares the replica count of an HA pod with what the
// site role requires.
func checkHAPresence(d pods.Descriptor, list []corev1.Pod, expectPresent bool) []string {
	expected := 0
	if expectPresent {
		expected = pods.HAReplicas
	}
	if len(list) == expected {
		return nil
	}
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.Name)
	}
	msg := fmt.Sprintf("%s: expected: %d / actual: %v", d.Name, expected, names)
	if len(list) == 0 {
		return []string{msg}
	}
	var unhealthy []string
	for i := range list {
		if !kubernetes.IsPodTerminated(&list[i]) {
			unhealthy = append(unhealthy, msg)
		}
	}
	return unhealthy
}

// PresenceMessage renders the result of CheckPresence, "" when healthy.
func (s *SiteChecker) PresenceMessage(unhealthy []string, expectPresent bool) string {
	if len(unhealthy) == 0 {
		return ""
	}
	not := ""
	if !expectPresent {
		not = "not "
	}
	return fmt.Sprintf("\nPods healthcheck on site %q failed. Failed pods are: %v Those pods should %sbe present.",
		s.name, unhealthy, not)
}

// CheckFailedPods waits for failed pods to recover and returns those still
// failed once the wait is over.
func (s *SiteChecker) CheckFailedPods(ctx context.Context) ([]corev1.Pod, error) {
	log := logger.GetLogger(ctx)
	log.Debugf("Start waiting %v for pods up according to GR Controller.", s.FailedPodsTimeout)
	var failed []corev1.Pod
	ok, err := poll.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		var err error
		failed, err = s.cluster.FailedPods(ctx, true)
		if err != nil {
			return false, err
		}
		if len(failed) > 0 {
			log.Debugf("Failed pods found: %v.", podNames(failed))
			return false, nil
		}
		log.Debug("No failed pods found.")
		return true, nil
	},
		poll.WithName("failed pods "+s.name),
		poll.WithInterval(s.FailedPodsInterval),
		poll.WithTimeout(s.FailedPodsTimeout),
		poll.WithoutRaise(),
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Errorf("GR Controller timeout %v exited. Some pods are not up.", s.FailedPodsTimeout)
		for i := range failed {
			log.Debugf("Container statuses of %s:\n%s", failed[i].Name, spew.Sdump(failed[i].Status.ContainerStatuses))
		}
	}
	return failed, nil
}

// FailedPodsMessage renders failed pods, "" when there are none.
func (s *SiteChecker) FailedPodsMessage(failed []corev1.Pod) string {
	if len(failed) == 0 {
		return ""
	}
	return fmt.Sprintf("Found failed pods on site %q.\nFailed pods are: %s", s.name, FormatFailedPods(failed))
}

// FormatFailedPods renders one line per pod: name, phase and ready
// containers.
func FormatFailedPods(failed []corev1.Pod) string {
	var b strings.Builder
	for i := range failed {
		p := &failed[i]
		total := len(p.Status.ContainerStatuses)
		ready := total - len(kubernetes.NotReadyContainers(p))
		fmt.Fprintf(&b, "%-70s \t%s \t%d/%d\n", p.Name, p.Status.Phase, ready, total)
	}
	return b.String()
}

func podNames(list []corev1.Pod) []string {
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.Name)
	}
	return names
}

// Checker runs the health check of a pair: roster pods run on the active
// site and are gone from the passive one.
type Checker struct {
	Active *SiteChecker
	// Passive is optional.
	Passive *SiteChecker
}

// Healthcheck runs the presence and failed pod checks on every configured
// site and reports all failures in one *CheckFailedError.
func (c *Checker) Healthcheck(ctx context.Context) error {
	log := logger.GetLogger(ctx)
	type siteCheck struct {
		site          *SiteChecker
		expectPresent bool
	}
	checks := []siteCheck{{c.Active, true}}
	if c.Passive != nil {
		checks = append(checks, siteCheck{c.Passive, false})
	}

	var failures []string
	counts := map[string]int{}
	for _, chk := range checks {
		siteCtx := logger.WithSite(ctx, chk.site.Name())
		unhealthy, err := chk.site.CheckPresence(siteCtx, chk.site.Roster(), chk.expectPresent)
		if err != nil {
			return err
		}
		if msg := chk.site.PresenceMessage(unhealthy, chk.expectPresent); msg != "" {
			failures = append(failures, msg)
		}
		counts[chk.site.Name()] += len(unhealthy)
	}
	for _, chk := range checks {
		siteCtx := logger.WithSite(ctx, chk.site.Name())
		log := logger.GetLogger(siteCtx)
		log.Infof("Get failed pods on %q", chk.site.Name())
		failed, err := chk.site.CheckFailedPods(siteCtx)
		if err != nil {
			return err
		}
		if msg := chk.site.FailedPodsMessage(failed); msg != "" {
			log.Warn(msg)
			failures = append(failures, msg)
		} else {
			log.Infof("No failed pods on site %s found.", chk.site.Name())
		}
		counts[chk.site.Name()] += len(failed)
	}
	for name, n := range counts {
		prometheus.HealthCheckFailuresGaugeVec.WithLabelValues(name).Set(float64(n))
	}

	if len(failures) > 0 {
		return logger.LogError(log, &CheckFailedError{Failures: failures})
	}
	log.Info("Completed. Pods healthcheck and failed pods check passed successfully.")
	return nil
}
