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

package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/config"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/poll"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/unittestcommon"
	"github.com/consultant-1379/eo-gr-testing/pkg/registry"
	"github.com/consultant-1379/eo-gr-testing/pkg/site"
)

const availabilityCmd = "geo availability  --new-primary=gr.site-b.example.com --new-secondary=gr.site-a.example.com"

func availabilityOutput(state, backupID string) string {
	return "Site Availability Check\n" +
		"    Availability                : " + state + "\n" +
		"    Backup Id                   : " + backupID + "\n"
}

type fakeLister struct {
	mu     sync.Mutex
	images [][]registry.Image
	calls  int
}

func (f *fakeLister) CollectImagesWithTags(_ context.Context) ([]registry.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.images) {
		i = len(f.images) - 1
	}
	f.calls++
	return f.images[i], nil
}

func testPair(t *testing.T) *site.Pair {
	cfg := &config.Config{Site: map[string]*config.SiteConfig{
		"site-a": {EnvName: "eoenv-a", GRHost: "gr.site-a.example.com"},
		"site-b": {EnvName: "eoenv-b", GRHost: "gr.site-b.example.com"},
	}}
	pair, err := site.NewPair(cfg, "site-a", "site-b")
	require.NoError(t, err)
	return pair
}

func newTestChecker(t *testing.T, fake *unittestcommon.FakeDMRunner, active, passive ImageLister) *Checker {
	c := NewChecker(fake, testPair(t), active, passive)
	c.Interval = 10 * time.Millisecond
	c.Timeout = 500 * time.Millisecond
	c.RegistrySyncInterval = 10 * time.Millisecond
	c.RegistrySyncTimeout = 500 * time.Millisecond
	return c
}

func TestVerifyAvailability(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(availabilityCmd,
		availabilityOutput("Unavailable", "GR-BACKUP-1"),
		availabilityOutput("Available", "GR-BACKUP-1"))
	ok, err := newTestChecker(t, fake, nil, nil).VerifyAvailability(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, fake.CallCount(availabilityCmd))
}

func TestVerifyAvailabilityTimeout(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(availabilityCmd, availabilityOutput("Unavailable", "GR-BACKUP-1"))
	_, err := newTestChecker(t, fake, nil, nil).VerifyAvailability(context.Background(), "")
	var timeout *poll.TimeoutError
	assert.True(t, errors.As(err, &timeout))
}

func TestVerifyAvailabilityInvalidPattern(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner()
	ok, err := newTestChecker(t, fake, nil, nil).VerifyAvailability(context.Background(), "Availability(")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, fake.Calls())
}

func TestBackupID(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(availabilityCmd,
		availabilityOutput("Available", "GR-BACKUP-2024-05-01T11:30:02.417Z"),
		"Availability : Available\n")
	c := newTestChecker(t, fake, nil, nil)

	id, err := c.BackupID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GR-BACKUP-2024-05-01T11:30:02.417Z", id)

	_, err = c.BackupID(context.Background())
	assert.True(t, errors.Is(err, ErrBackupIDNotFound))
}

func TestWaitForNewBackupID(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(availabilityCmd,
		availabilityOutput("Available", "GR-BACKUP-1"),
		availabilityOutput("Available", "GR-BACKUP-1"),
		availabilityOutput("Available", "GR-BACKUP-1"),
		availabilityOutput("Available", "GR-BACKUP-2"))
	ok, err := newTestChecker(t, fake, nil, nil).WaitForNewBackupID(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, fake.CallCount(availabilityCmd))
}

func TestWaitForNewBackupIDIdenticalReads(t *testing.T) {
	fake := unittestcommon.NewFakeDMRunner().On(availabilityCmd, availabilityOutput("Available", "GR-BACKUP-1"))
	c := newTestChecker(t, fake, nil, nil)
	c.Timeout = 100 * time.Millisecond
	ok, err := c.WaitForNewBackupID(context.Background(), time.Millisecond)
	assert.False(t, ok)
	var timeout *poll.TimeoutError
	assert.True(t, errors.As(err, &timeout))
	assert.Greater(t, fake.CallCount(availabilityCmd), 2)
}

func TestRegistriesInSyncIgnoresOrder(t *testing.T) {
	active := &fakeLister{images: [][]registry.Image{{
		{Name: "proj/alpha", Tags: []string{"1", "2"}},
		{Name: "proj/beta", Tags: []string{"a"}},
	}}}
	passive := &fakeLister{images: [][]registry.Image{{
		{Name: "proj/beta", Tags: []string{"a"}},
		{Name: "proj/alpha", Tags: []string{"2", "1"}},
	}}}
	ok, err := newTestChecker(t, unittestcommon.NewFakeDMRunner(), active, passive).RegistriesInSync(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRegistriesInSyncWaits(t *testing.T) {
	active := &fakeLister{images: [][]registry.Image{{{Name: "proj/alpha", Tags: []string{"1", "2"}}}}}
	passive := &fakeLister{images: [][]registry.Image{
		{{Name: "proj/alpha", Tags: []string{"1"}}},
		{{Name: "proj/alpha", Tags: []string{"2", "1"}}},
	}}
	ok, err := newTestChecker(t, unittestcommon.NewFakeDMRunner(), active, passive).VerifyRegistriesInSync(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, passive.calls)
}

func TestVerifyRegistriesInSyncTimeout(t *testing.T) {
	active := &fakeLister{images: [][]registry.Image{{{Name: "proj/alpha", Tags: []string{"1"}}}}}
	passive := &fakeLister{images: [][]registry.Image{{}}}
	_, err := newTestChecker(t, unittestcommon.NewFakeDMRunner(), active, passive).VerifyRegistriesInSync(context.Background())
	var timeout *poll.TimeoutError
	assert.True(t, errors.As(err, &timeout))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t,
		normalize([]registry.Image{{Name: "b"}, {Name: "a", Tags: []string{"2", "1"}}}),
		normalize([]registry.Image{{Name: "a", Tags: []string{"1", "2"}}, {Name: "b", Tags: []string{}}}))
}
