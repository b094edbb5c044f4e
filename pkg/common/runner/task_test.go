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

package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskName(t *testing.T) {
	assert.Equal(t, "switchover: site2", TaskName("switchover", "site2"))
}

func TestJoinWithResult(t *testing.T) {
	task := Start(context.Background(), "ok", func(context.Context) (string, error) {
		return "done", nil
	})
	res, err := task.JoinWithResult(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "done", res)
	assert.False(t, task.IsAlive())
	assert.Equal(t, "ok", task.Name())
}

func TestJoinWithResultPropagatesTaskError(t *testing.T) {
	boom := errors.New("boom")
	task := Start(context.Background(), "failing", func(context.Context) (int, error) {
		return 0, boom
	})
	_, err := task.JoinWithResult(time.Second)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTaskTimeout)
}

func TestJoinWithResultRecoversPanic(t *testing.T) {
	task := Start(context.Background(), "panicking", func(context.Context) (int, error) {
		panic("kaboom")
	})
	_, err := task.JoinWithResult(0)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "panicking", panicErr.Task)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestJoinWithResultTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	task := Start(context.Background(), "slow", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	_, err := task.JoinWithResult(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.True(t, task.IsAlive())
}

func TestWaitForConditionWhileAliveMet(t *testing.T) {
	release := make(chan struct{})
	task := Start(context.Background(), "running", func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	defer close(release)
	var calls int32
	ok, err := task.WaitForConditionWhileAlive(context.Background(), func(context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) == 3, nil
	}, 5*time.Millisecond, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWaitForConditionWhileAliveTaskFinishesFirst(t *testing.T) {
	for _, raise := range []bool{true, false} {
		task := Start(context.Background(), "short", func(context.Context) (int, error) {
			time.Sleep(30 * time.Millisecond)
			return 0, nil
		})
		ok, err := task.WaitForConditionWhileAlive(context.Background(), func(context.Context) (bool, error) {
			return false, nil
		}, 5*time.Millisecond, raise)
		assert.False(t, ok)
		if raise {
			assert.ErrorIs(t, err, ErrConditionNotMetWhileAlive)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestWaitForConditionNeverEvaluatedAfterTaskFinished(t *testing.T) {
	task := Start(context.Background(), "instant", func(context.Context) (int, error) {
		return 0, nil
	})
	<-task.Done()
	evaluated := false
	ok, err := task.WaitForConditionWhileAlive(context.Background(), func(context.Context) (bool, error) {
		evaluated = true
		return true, nil
	}, time.Millisecond, true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrConditionNotMetWhileAlive)
	assert.False(t, evaluated)
}

func TestWaitWhileAliveTaskEndsDuringEvaluation(t *testing.T) {
	var alive atomic.Bool
	alive.Store(true)
	ok, err := WaitWhileAlive(context.Background(), "switchover", alive.Load, nil,
		func(context.Context) (bool, error) {
			alive.Store(false)
			return true, nil
		}, time.Millisecond, true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrConditionNotMetWhileAlive)
}

func TestWaitWhileAliveWithoutDoneChannel(t *testing.T) {
	var calls atomic.Int32
	ok, err := WaitWhileAlive(context.Background(), "switchover", func() bool { return true }, nil,
		func(context.Context) (bool, error) {
			return calls.Add(1) == 2, nil
		}, time.Millisecond, true)
	require.NoError(t, err)
	assert.True(t, ok)
}
