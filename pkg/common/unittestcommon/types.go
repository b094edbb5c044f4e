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

package unittestcommon

import (
	"sync"
	"time"
)

// FakeResponse is one scripted Deployment Manager answer.
type FakeResponse struct {
	Output string
	Err    error
}

// FakeDMRunner is a scripted Deployment Manager command runner. Answers are
// queued per command; the last one repeats once the queue is drained.
type FakeDMRunner struct {
	mu        sync.Mutex
	responses map[string][]FakeResponse
	calls     []string
	// Delay is applied before every answer, bounded by the context.
	Delay time.Duration
}

// StatusField is a key and value of a geo status details block.
type StatusField struct {
	Key   string
	Value string
}
