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

package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		current, target string
		comparator      Comparator
		want            bool
	}{
		{"1.10.0", "1.9.0", GreaterThan, true},
		{"1.9.0", "1.10.0", GreaterThan, false},
		{"2.0.0", "2.0.0", GreaterThanOrEqual, true},
		{"2.0.0", "2.0.1", LessThan, true},
		{"2.0.1", "2.0.1", LessThanOrEqual, true},
		{"2.0", "2.0.0", Equal, true},
		{"2.0.0", "2.0.1", NotEqual, true},
	}
	for _, tc := range tests {
		got, err := CompareVersions(ctx, tc.current, tc.target, tc.comparator)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %s %s", tc.current, tc.comparator, tc.target)
	}
}

func TestCompareVersionsErrors(t *testing.T) {
	ctx := context.Background()
	_, err := CompareVersions(ctx, "1.0.0", "1.0.0", "=>")
	assert.Error(t, err)
	_, err = CompareVersions(ctx, "not-a-version", "1.0.0", Equal)
	assert.Error(t, err)
}

func TestJoinCmds(t *testing.T) {
	assert.Equal(t, "cd /tmp && ls", JoinCmds("cd /tmp", "ls"))
	assert.Equal(t, "ls", JoinCmds("ls"))
}
