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

// Package poll blocks on a condition until it holds or a timeout elapses.
package poll

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/prometheus"
)

const (
	// DefaultInterval is used when no interval is given.
	DefaultInterval = 5 * time.Second
	// DefaultTimeout is used when no timeout is given.
	DefaultTimeout = 60 * time.Second
)

// ConditionFunc reports whether the awaited state has been reached. A
// non-nil error aborts the wait.
type ConditionFunc func(ctx context.Context) (bool, error)

// TimeoutError is returned when a condition did not hold within the timeout.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
	Message string
	err     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("condition %q not met within %v", e.Name, e.Timeout)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.err
}

type options struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	raise    bool
	message  func() string
}

// Option configures WaitFor.
type Option func(*options)

// WithName names the condition in logs, errors and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithInterval sets the pause between two evaluations.
func WithInterval(interval time.Duration) Option {
	return func(o *options) { o.interval = interval }
}

// WithTimeout sets how long WaitFor keeps polling.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// WithMessage sets a fixed diagnostic attached to the timeout error.
func WithMessage(msg string) Option {
	return func(o *options) { o.message = func() string { return msg } }
}

// WithMessageFunc sets a diagnostic builder. It is only called once the wait
// has timed out, so it may run expensive queries.
func WithMessageFunc(fn func() string) Option {
	return func(o *options) { o.message = fn }
}

// WithoutRaise makes WaitFor return (false, nil) on timeout.
func WithoutRaise() Option {
	return func(o *options) { o.raise = false }
}

// WaitFor evaluates condition immediately and then on every interval until it
// returns true or the timeout elapses. A condition that blocks is not
// preempted, so the total wait may exceed the timeout.
func WaitFor(ctx context.Context, condition ConditionFunc, opts ...Option) (bool, error) {
	o := options{
		name:     "condition",
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		raise:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.GetLogger(ctx)
	log.Debugf("Waiting for %q: interval %v, timeout %v", o.name, o.interval, o.timeout)

	start := time.Now()
	err := wait.PollUntilContextTimeout(ctx, o.interval, o.timeout, true, wait.ConditionWithContextFunc(condition))
	elapsed := time.Since(start).Seconds()
	if err == nil {
		prometheus.PollWaitHistVec.WithLabelValues(o.name, prometheus.PrometheusPassStatus).Observe(elapsed)
		log.Debugf("Condition %q met after %.1fs", o.name, elapsed)
		return true, nil
	}
	if !wait.Interrupted(err) || ctx.Err() != nil {
		// Either the condition failed or the caller gave up.
		prometheus.PollWaitHistVec.WithLabelValues(o.name, prometheus.PrometheusFailStatus).Observe(elapsed)
		return false, err
	}

	prometheus.PollWaitHistVec.WithLabelValues(o.name, prometheus.PrometheusTimeoutStatus).Observe(elapsed)
	if !o.raise {
		log.Infof("Condition %q not met within %v", o.name, o.timeout)
		return false, nil
	}
	timeoutErr := &TimeoutError{Name: o.name, Timeout: o.timeout, err: err}
	if o.message != nil {
		timeoutErr.Message = o.message()
	}
	return false, logger.LogError(log, timeoutErr)
}
