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

// Package runner runs long operations in the background while the caller
// keeps observing or disrupting the cluster.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

var (
	// ErrTaskTimeout is returned by JoinWithResult when the task is still
	// running once the timeout elapsed.
	ErrTaskTimeout = errors.New("task is still running after join timeout")

	// ErrConditionNotMetWhileAlive is returned by WaitForConditionWhileAlive
	// when the task finished before the condition ever held.
	ErrConditionNotMetWhileAlive = errors.New("condition was not met while task was running")
)

// PanicError carries a panic recovered from a task body.
type PanicError struct {
	Task  string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked: %v", e.Task, e.Value)
}

// TaskName builds the diagnostic name of a task acting on target.
func TaskName(name, target string) string {
	return fmt.Sprintf("%s: %s", name, target)
}

// Task is a handle on a function running in its own goroutine.
type Task[T any] struct {
	name   string
	done   chan struct{}
	result T
	err    error
}

// Start runs fn in a new goroutine and returns its handle. The context passed
// to fn carries a logger tagged with the task name.
func Start[T any](ctx context.Context, name string, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{name: name, done: make(chan struct{})}
	taskCtx := logger.WithTask(ctx, name)
	logger.GetLogger(taskCtx).Infof("Starting task %q", name)
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = &PanicError{Task: name, Value: r, Stack: debug.Stack()}
			}
		}()
		t.result, t.err = fn(taskCtx)
	}()
	return t
}

// Name returns the task name.
func (t *Task[T]) Name() string {
	return t.name
}

// Done is closed once the task returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// IsAlive reports whether the task is still running.
func (t *Task[T]) IsAlive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// JoinWithResult waits for the task and returns its result and error. If the
// task is still running after timeout it returns ErrTaskTimeout and leaves the
// goroutine running. A zero timeout waits forever.
func (t *Task[T]) JoinWithResult(timeout time.Duration) (T, error) {
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-t.done:
		case <-timer.C:
			var zero T
			return zero, fmt.Errorf("task %q, timeout %v: %w", t.name, timeout, ErrTaskTimeout)
		}
	} else {
		<-t.done
	}
	return t.result, t.err
}

// WaitForConditionWhileAlive evaluates condition every interval for as long as
// the task is running. If the task returns first, the call fails with
// ErrConditionNotMetWhileAlive, or returns false when raise is not set.
func (t *Task[T]) WaitForConditionWhileAlive(ctx context.Context, condition func(ctx context.Context) (bool, error),
	interval time.Duration, raise bool) (bool, error) {
	return WaitWhileAlive(ctx, t.name, t.IsAlive, t.done, condition, interval, raise)
}

// WaitWhileAlive evaluates condition every interval for as long as isAlive
// reports the task called name as running. Liveness is checked before every
// evaluation and again once the condition holds, so true is only returned when
// the condition held while the task was running. done, when not nil, is
// closed once the task returned and cuts the wait short. If the task returns
// first, the call fails with ErrConditionNotMetWhileAlive, or returns false
// when raise is not set.
func WaitWhileAlive(ctx context.Context, name string, isAlive func() bool, done <-chan struct{},
	condition func(ctx context.Context) (bool, error), interval time.Duration, raise bool) (bool, error) {
	log := logger.GetLogger(ctx)
	for isAlive() {
		ok, err := condition(ctx)
		if err != nil {
			return false, err
		}
		if ok && isAlive() {
			log.Infof("Condition met while task %q is running", name)
			return true, nil
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-done:
		case <-time.After(interval):
		}
	}
	if raise {
		return false, logger.LogError(log, fmt.Errorf("task %q: %w", name, ErrConditionNotMetWhileAlive))
	}
	log.Infof("Task %q finished before condition was met", name)
	return false, nil
}
