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

// Package unittestcommon holds fakes and fixture builders shared by unit
// tests.
package unittestcommon

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NewFakeDMRunner returns a runner with no scripted answers.
func NewFakeDMRunner() *FakeDMRunner {
	return &FakeDMRunner{responses: map[string][]FakeResponse{}}
}

// On queues outputs for cmd.
func (f *FakeDMRunner) On(cmd string, outputs ...string) *FakeDMRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, out := range outputs {
		f.responses[cmd] = append(f.responses[cmd], FakeResponse{Output: out})
	}
	return f
}

// OnError queues a failure for cmd.
func (f *FakeDMRunner) OnError(cmd string, err error) *FakeDMRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmd] = append(f.responses[cmd], FakeResponse{Err: err})
	return f
}

// RunCommand returns the next scripted answer for cmd.
func (f *FakeDMRunner) RunCommand(ctx context.Context, cmd string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	queue, ok := f.responses[cmd]
	var resp FakeResponse
	if ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.responses[cmd] = queue[1:]
		}
	}
	delay := f.Delay
	f.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("unexpected Deployment Manager cmd %q", cmd)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return resp.Output, resp.Err
}

// Calls returns the commands run so far.
func (f *FakeDMRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times cmd was run.
func (f *FakeDMRunner) CallCount(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

func writeBlock(b *strings.Builder, header string, fields []StatusField) {
	b.WriteString(header + "\n")
	for _, f := range fields {
		fmt.Fprintf(b, "    %-40s: %s\n", f.Key, f.Value)
	}
}

// GeoStatus renders a geo status report with the given DNS match state and
// details blocks.
func GeoStatus(hostMatch string, primary, secondary []StatusField) string {
	var b strings.Builder
	b.WriteString("Site Information\n")
	fmt.Fprintf(&b, "    %-40s: %s\n", "Primary GR Host matches DNS Entry", hostMatch)
	writeBlock(&b, "Primary Details", primary)
	writeBlock(&b, "Secondary Details", secondary)
	return b.String()
}
