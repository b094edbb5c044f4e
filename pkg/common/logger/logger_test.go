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

package logger

import (
	"context"
	"errors"
	"testing"
)

func TestLogNewError(t *testing.T) {
	log := GetLoggerWithNoContext()
	e := LogNewError(log, "Error Test")
	if e == nil {
		t.Error("Failed to create an error")
	}
}

func TestLogNewErrorf(t *testing.T) {
	log := GetLoggerWithNoContext()
	e := LogNewErrorf(log, "%s", "Error Test")
	if e == nil || e.Error() != "Error Test" {
		t.Errorf("unexpected error %v", e)
	}
}

func TestLogErrorReturnsSameError(t *testing.T) {
	sentinel := errors.New("sentinel")
	if err := LogError(GetLoggerWithNoContext(), sentinel); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel, got %v", err)
	}
}

func TestContextLoggerIsReused(t *testing.T) {
	ctx := NewContextWithLogger(context.Background())
	ctx = WithSite(ctx, "site1")
	ctx = WithTask(ctx, "switchover: site2")
	if GetLogger(ctx) == nil {
		t.Error("expected a logger bound to the context")
	}
	if ctx.Value(loggerKey{}) == nil {
		t.Error("expected logger stored in context")
	}
}
