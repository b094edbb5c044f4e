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

package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/poll"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/unittestcommon"
)

const (
	passiveHost = "gr.site-b.example.com"
	statusCmd   = "geo recovery-status --recover-site gr.site-b.example.com"
	updateCmd   = "geo update-recovery-state --recover-site gr.site-b.example.com"
)

func recoveryOutput(status string) string {
	return "2024-05-01 12:40:01 INFO     Recovery status: {'clusterName': 'gr.site-b.example.com', 'clusterStatus': '" +
		status + "', 'lastUpdated': '2024-05-01T12:39:58Z'}\n"
}

func newTestOrchestrator(fake *unittestcommon.FakeDMRunner) *Orchestrator {
	o := NewOrchestrator(fake, passiveHost)
	o.Interval = 10 * time.Millisecond
	return o
}

func TestGetStatus(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(statusCmd, recoveryOutput("NOT_RECOVERABLE"))
	status, err := newTestOrchestrator(fake).GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NotRecoverable, status)
}

func TestGetStatusNotFound(t *testing.T) {
	for _, out := range []string{"Error: cluster is not reachable\n", recoveryOutput("")} {
		fake := unittestcommon.NewFakeDMRunner().On(statusCmd, out)
		_, err := newTestOrchestrator(fake).GetStatus(context.Background())
		assert.True(t, errors.Is(err, ErrStatusNotFound), out)
	}
}

func TestWaitForStatus(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(statusCmd,
		recoveryOutput("NOT_RECOVERABLE"),
		recoveryOutput("RECOVERY_IN_PROGRESS"),
		recoveryOutput("RECOVERABLE"))
	ok, err := newTestOrchestrator(fake).WaitForStatus(context.Background(), Recoverable, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, fake.CallCount(statusCmd))
}

func TestWaitForStatusTimeout(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(statusCmd, recoveryOutput("NOT_RECOVERABLE"))
	_, err := newTestOrchestrator(fake).WaitForStatus(context.Background(), Recoverable, 100*time.Millisecond)
	var timeout *poll.TimeoutError
	assert.True(t, errors.As(err, &timeout))
}

func TestWaitForStatusStopsOnMissingStatus(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(statusCmd, "no status here\n")
	_, err := newTestOrchestrator(fake).WaitForStatus(context.Background(), Recoverable, time.Second)
	assert.True(t, errors.Is(err, ErrStatusNotFound))
	assert.Equal(t, 1, fake.CallCount(statusCmd))
}

func TestUpdateAndVerify(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(updateCmd,
		"Cluster gr.site-a.example.com status after update-recovery-state is RECOVERABLE\n",
		"Cluster gr.site-b.example.com status after update-recovery-state is RECOVERABLE\n")
	o := newTestOrchestrator(fake)

	ok, err := o.UpdateAndVerify(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "message about the other site must not count")

	ok, err = o.UpdateAndVerify(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateAndVerifyHostIsQuoted(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(updateCmd,
		"Cluster grXsite-bXexampleXcom status after update-recovery-state is RECOVERABLE\n")
	ok, err := newTestOrchestrator(fake).UpdateAndVerify(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
