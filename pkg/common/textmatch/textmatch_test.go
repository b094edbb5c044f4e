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

package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		text    string
		opts    []Option
		want    string
		wantOk  bool
	}{
		{name: "capture", pattern: `Id\s*:\s*(\w+)`, text: "Id : abc", want: "abc", wantOk: true},
		{name: "absent", pattern: `Id\s*:\s*(\w+)`, text: "nothing here", wantOk: false},
		{name: "present but empty", pattern: `Id:(.*)`, text: "Id:", want: "", wantOk: true},
		{name: "no dotall stops at newline", pattern: `A(.*)B`, text: "A\nx\nB", wantOk: false},
		{name: "dotall spans lines", pattern: `A(.*)B`, text: "A\nx\nB", opts: []Option{DotAll()}, want: "\nx\n", wantOk: true},
		{name: "group zero", pattern: `b+`, text: "abbbc", opts: []Option{Group(0)}, want: "bbb", wantOk: true},
		{name: "group out of range", pattern: `b+`, text: "abbbc", opts: []Option{Group(2)}, wantOk: false},
		{name: "negative group", pattern: `b+`, text: "abbbc", opts: []Option{Group(-1)}, wantOk: false},
		{name: "invalid pattern", pattern: `Id:(\w+`, text: "Id:abc", wantOk: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Search(tc.pattern, tc.text, tc.opts...)
			assert.Equal(t, tc.wantOk, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(`Switchover\sStatus.*:\sSUCCESS`, "Switchover Status : SUCCESS"))
	assert.False(t, Matches(`Switchover\sStatus.*:\sSUCCESS`, "Switchover Status : FAILURE"))
	assert.True(t, Matches(`start.*end`, "start\nend", DotAll()))
	assert.False(t, Matches(`start.*end`, "start\nend"))
}

func TestFindAll(t *testing.T) {
	text := "deployment-manager-1.2.3.zip\nother\ndeployment-manager-1.10.0.zip\n"
	assert.Equal(t, []string{"1.2.3", "1.10.0"}, FindAll(`deployment-manager-(\d*\.\d*\.\d*).zip`, text))
	assert.Empty(t, FindAll(`deployment-manager-(\d*\.\d*\.\d*).zip`, "empty"))
}

func TestInvalidPattern(t *testing.T) {
	assert.Error(t, Validate(`Status(`))
	assert.NoError(t, Validate(`Status\s*:\s*(\w+)`))
	assert.False(t, Matches(`Status(`, "Status("))
	assert.Nil(t, FindAll(`[a-`, "a-b"))
}
