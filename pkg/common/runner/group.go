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
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

// Group runs named tasks side by side. A failing task does not cancel the
// others; Wait returns once every task returned.
type Group struct {
	ctx   context.Context
	eg    errgroup.Group
	mu    sync.RWMutex
	alive map[string]bool
}

// NewGroup returns an empty group whose tasks receive ctx.
func NewGroup(ctx context.Context) *Group {
	return &Group{ctx: ctx, alive: make(map[string]bool)}
}

// Go starts fn under name.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.mu.Lock()
	g.alive[name] = true
	g.mu.Unlock()

	taskCtx := logger.WithTask(g.ctx, name)
	g.eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Task: name, Value: r, Stack: debug.Stack()}
			}
			g.mu.Lock()
			g.alive[name] = false
			g.mu.Unlock()
		}()
		return fn(taskCtx)
	})
}

// IsAlive reports whether the task started under name is still running.
func (g *Group) IsAlive(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.alive[name]
}

// Wait blocks until all tasks returned and gives the first error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
