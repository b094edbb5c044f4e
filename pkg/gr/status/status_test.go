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

package status

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/poll"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/textmatch"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/unittestcommon"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/utils"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func block(fields ...string) []unittestcommon.StatusField {
	var out []unittestcommon.StatusField
	for i := 0; i+1 < len(fields); i += 2 {
		out = append(out, unittestcommon.StatusField{Key: fields[i], Value: fields[i+1]})
	}
	return out
}

func newTestChecker(runner *unittestcommon.FakeDMRunner) *Checker {
	c := NewChecker(runner)
	c.Interval = 10 * time.Millisecond
	c.Timeout = time.Second
	return c
}

func TestParseSnapshotGolden(t *testing.T) {
	s, err := ParseSnapshot(readFixture(t, "geo_status_ok.txt"))
	require.NoError(t, err)

	apps, err := ExtractField(patterns.ActiveApplications, s.Primary)
	require.NoError(t, err)
	assert.Equal(t, "evnfm, vmvnfm", apps)
	version, err := ExtractField(patterns.ClusterVersion, s.Secondary)
	require.NoError(t, err)
	assert.Equal(t, "2.29.0-110", version)
	_, err = ExtractField(patterns.LastImportedBackup, s.Primary)
	var missing *FieldMissingError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, patterns.LastImportedBackup, missing.Key)

	ok, err := Evaluate(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractEmptyFieldGolden(t *testing.T) {
	s, err := ParseSnapshot(readFixture(t, "geo_status_empty_field.txt"))
	require.NoError(t, err)

	apps, err := ExtractField(patterns.ActiveApplications, s.Primary)
	require.NoError(t, err)
	assert.Equal(t, "", apps)
	version, err := ExtractField(patterns.ClusterVersion, s.Primary)
	require.NoError(t, err)
	assert.Equal(t, "2.29.0-110", version)

	// Allowing newlines around the colon would read the next line as the value.
	next, ok := textmatch.Search(regexp.QuoteMeta(patterns.ActiveApplications)+`\s*:\s*(.*)`, s.Primary)
	require.True(t, ok)
	assert.Contains(t, next, patterns.ClusterVersion)

	err = VerifyActiveAppsMatch(context.Background(), s.Primary, s.Secondary)
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "", mismatch.Primary)
	assert.Equal(t, "evnfm, vmvnfm", mismatch.Secondary)
}

func TestParseSnapshotMissingBlock(t *testing.T) {
	_, err := ParseSnapshot("Primary Details\n    Active Applications : evnfm\n")
	var missing *FieldMissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, patterns.PrimaryDetails, missing.Key)
}

func TestExtractFieldRoundTrip(t *testing.T) {
	for _, value := range []string{"evnfm", "", "2024-05-01 09:15:02 AM", "a : b", "GR-BACKUP-2024-05-01T09:30:02.417Z"} {
		raw := unittestcommon.GeoStatus(patterns.SiteInfoStateOK,
			block(patterns.ActiveApplications, value, patterns.ClusterVersion, "1.0"),
			block(patterns.ActiveApplications, "other"))
		s, err := ParseSnapshot(raw)
		require.NoError(t, err)
		got, err := ExtractField(patterns.ActiveApplications, s.Primary)
		require.NoError(t, err)
		assert.Equal(t, value, got)
	}
}

func TestVerifyActiveAppsMatch(t *testing.T) {
	ctx := context.Background()
	s, err := ParseSnapshot(unittestcommon.GeoStatus(patterns.SiteInfoStateOK,
		block(patterns.ActiveApplications, "evnfm"),
		block(patterns.ActiveApplications, "evnfm")))
	require.NoError(t, err)
	assert.NoError(t, VerifyActiveAppsMatch(ctx, s.Primary, s.Secondary))

	s, err = ParseSnapshot(unittestcommon.GeoStatus(patterns.SiteInfoStateOK,
		block(patterns.ActiveApplications, "evnfm"),
		block(patterns.ActiveApplications, "vmvnfm")))
	require.NoError(t, err)
	err = VerifyActiveAppsMatch(ctx, s.Primary, s.Secondary)
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "evnfm", mismatch.Primary)
	assert.Equal(t, "vmvnfm", mismatch.Secondary)
}

func TestVerifyClusterVersionMatch(t *testing.T) {
	ctx := context.Background()
	err := VerifyClusterVersionMatch(ctx,
		"Cluster Version of EO : 2.29.0-110\n", "Cluster Version of EO : 2.28.0-90\n")
	var mismatch *MismatchError
	assert.True(t, errors.As(err, &mismatch))

	err = VerifyClusterVersionMatch(ctx, "Cluster Version of EO : 2.29.0-110\n", "Site Name : site-b\n")
	var missing *FieldMissingError
	assert.True(t, errors.As(err, &missing))
}

func TestIsBackupInSync(t *testing.T) {
	ctx := context.Background()
	s, err := ParseSnapshot(readFixture(t, "geo_status_pending.txt"))
	require.NoError(t, err)
	ok, err := IsBackupInSync(ctx, s.Primary, s.Secondary)
	require.NoError(t, err)
	assert.False(t, ok)

	s, err = ParseSnapshot(readFixture(t, "geo_status_ok.txt"))
	require.NoError(t, err)
	ok, err = IsBackupInSync(ctx, s.Primary, s.Secondary)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsBackupInSyncExportedNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := ParseSnapshot(readFixture(t, "geo_status_no_backup.txt"))
	require.NoError(t, err)
	for _, secondary := range []string{s.Secondary, "", "Last Imported Backup : Backup Id not found\n"} {
		_, err = IsBackupInSync(ctx, s.Primary, secondary)
		var mismatch *MismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, patterns.LastExportedBackup, mismatch.Field)
	}
}

func TestIsImageSyncAhead(t *testing.T) {
	ctx := context.Background()
	field := func(v string) string { return patterns.LastImageSync + " : " + v + "\n" }
	tests := []struct {
		name      string
		primary   string
		secondary string
		want      bool
	}{
		{"secondary later", "2024-05-01 09:15:02 AM", "2024-05-01 09:20:11 AM", true},
		{"equal", "2024-05-01 09:15:02 AM", "2024-05-01 09:15:02 AM", true},
		{"primary later", "2024-05-01 09:15:02 PM", "2024-05-01 09:20:11 AM", false},
		{"primary never executed", "never executed", "2024-05-01 09:20:11 AM", false},
		{"primary never executed any case", "Never Executed", "garbage", false},
		{"secondary never executed", "2024-05-01 09:15:02 AM", "NEVER EXECUTED", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsImageSyncAhead(ctx, field(tt.primary), field(tt.secondary))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := IsImageSyncAhead(ctx, field("yesterday"), field("2024-05-01 09:20:11 AM"))
	assert.Error(t, err)
}

func TestVerifyHostMatchesDNS(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, VerifyHostMatchesDNS(ctx, readFixture(t, "geo_status_ok.txt"), patterns.SiteInfoStateOK))
	assert.NoError(t, VerifyHostMatchesDNS(ctx, readFixture(t, "geo_status_primary_down.txt"), patterns.SiteInfoStateFailed))

	err := VerifyHostMatchesDNS(ctx, readFixture(t, "geo_status_ok.txt"), patterns.SiteInfoStateFailed)
	var mismatch *MismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestFullStatusCheckWaitsForSync(t *testing.T) {
	runner := unittestcommon.NewFakeDMRunner().
		On(patterns.StatusCmd, readFixture(t, "geo_status_pending.txt"), readFixture(t, "geo_status_ok.txt"))
	ok, err := newTestChecker(runner).FullStatusCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, runner.CallCount(patterns.StatusCmd))
}

func TestFullStatusCheckMismatchIsNotRetried(t *testing.T) {
	raw := unittestcommon.GeoStatus(patterns.SiteInfoStateOK,
		block(patterns.ActiveApplications, "evnfm"),
		block(patterns.ActiveApplications, "vmvnfm"))
	runner := unittestcommon.NewFakeDMRunner().On(patterns.StatusCmd, raw)
	_, err := newTestChecker(runner).FullStatusCheck(context.Background())
	var mismatch *MismatchError
	assert.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 1, runner.CallCount(patterns.StatusCmd))
}

func TestFullStatusCheckTimeout(t *testing.T) {
	runner := unittestcommon.NewFakeDMRunner().On(patterns.StatusCmd, readFixture(t, "geo_status_pending.txt"))
	c := newTestChecker(runner)
	c.Timeout = 100 * time.Millisecond
	_, err := c.FullStatusCheck(context.Background())
	var timeout *poll.TimeoutError
	assert.True(t, errors.As(err, &timeout))
}

func TestPrimaryUnreachableCheck(t *testing.T) {
	runner := unittestcommon.NewFakeDMRunner().On(patterns.StatusCmd, readFixture(t, "geo_status_primary_down.txt"))
	ok, err := newTestChecker(runner).PrimaryUnreachableCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	runner = unittestcommon.NewFakeDMRunner().On(patterns.StatusCmd, readFixture(t, "geo_status_ok.txt"))
	_, err = newTestChecker(runner).PrimaryUnreachableCheck(context.Background())
	var mismatch *MismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestSnapshotCommandError(t *testing.T) {
	runner := unittestcommon.NewFakeDMRunner().OnError(patterns.StatusCmd, errors.New("docker: not found"))
	_, err := newTestChecker(runner).Snapshot(context.Background())
	assert.EqualError(t, err, "docker: not found")
}

func TestCompareEOVersion(t *testing.T) {
	ctx := context.Background()
	s, err := ParseSnapshot(readFixture(t, "geo_status_ok.txt"))
	require.NoError(t, err)

	ok, err := CompareEOVersion(ctx, s, "2.28.0", utils.GreaterThanOrEqual)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CompareEOVersion(ctx, s, "2.30.0", utils.GreaterThanOrEqual)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CompareEOVersion(ctx, &Snapshot{}, "2.28.0", utils.GreaterThanOrEqual)
	var missing *FieldMissingError
	assert.True(t, errors.As(err, &missing))
}
