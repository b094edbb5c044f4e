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

package switchover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onsi/gomega"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/config"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/runner"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/unittestcommon"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
	"github.com/consultant-1379/eo-gr-testing/pkg/site"
)

const (
	successOutput = `2024-05-01 12:01:15 INFO     Switchover started
Backup Id          : GR-BACKUP-2024-05-01T11:30:02.417Z
Switchover Status  : SUCCESS
`
	failureOutput = `Switchover Status  : FAILURE
Error Message      : upstream connect error or disconnect/reset before headers. Secondary site switchover process has failed
`
	noFreeMemoryOutput = `Switchover Status  : FAILURE
Error Message      : {"statusCode":500,"message":"Error handling persisted file"}
`
)

func testPair(t *testing.T) *site.Pair {
	cfg := &config.Config{Site: map[string]*config.SiteConfig{
		"site-a": {GRHost: "gr.site-a.example.com"},
		"site-b": {GRHost: "gr.site-b.example.com"},
	}}
	pair, err := site.NewPair(cfg, "site-a", "site-b")
	if err != nil {
		t.Fatal(err)
	}
	return pair
}

func TestBuildCommand(t *testing.T) {
	g := gomega.NewWithT(t)
	o := NewOrchestrator(unittestcommon.NewFakeDMRunner(), testPair(t))
	g.Expect(o.BuildCommand("")).To(gomega.Equal(
		"geo switchover --new-primary=gr.site-b.example.com --new-secondary=gr.site-a.example.com"))
	g.Expect(o.BuildCommand("GR-BACKUP-1")).To(gomega.Equal(
		"geo switchover --new-primary=gr.site-b.example.com --new-secondary=gr.site-a.example.com --backup-id=GR-BACKUP-1"))
}

func TestClassify(t *testing.T) {
	g := gomega.NewWithT(t)
	tests := []struct {
		output            string
		want              Classification
		noHealthyUpstream bool
		noFreeMemory      bool
	}{
		{"Switchover Status : SUCCESS\n", Success, false, false},
		{successOutput, Success, false, false},
		{failureOutput, Failure, true, false},
		{noFreeMemoryOutput, Failure, false, true},
		{"docker: Error response from daemon\n", Unknown, false, false},
		{"Switchover Status : SUCCESS\nSwitchover Status : FAILURE\n", Ambiguous, false, false},
	}
	for _, tt := range tests {
		o := &Outcome{Output: tt.output}
		g.Expect(o.Classify()).To(gomega.Equal(tt.want), tt.output)
		g.Expect(o.NoHealthyUpstream()).To(gomega.Equal(tt.noHealthyUpstream), tt.output)
		g.Expect(o.NoFreeMemory()).To(gomega.Equal(tt.noFreeMemory), tt.output)
	}
}

func TestOutcomeBackupID(t *testing.T) {
	g := gomega.NewWithT(t)
	id, ok := (&Outcome{Output: successOutput}).BackupID()
	g.Expect(ok).To(gomega.BeTrue())
	g.Expect(id).To(gomega.Equal("GR-BACKUP-2024-05-01T11:30:02.417Z"))

	_, ok = (&Outcome{Output: failureOutput}).BackupID()
	g.Expect(ok).To(gomega.BeFalse())
}

func TestRunAndClassify(t *testing.T) {
	g := gomega.NewWithT(t)
	pair := testPair(t)
	fake := unittestcommon.NewFakeDMRunner()
	o := NewOrchestrator(fake, pair)
	fake.On(o.BuildCommand(""), successOutput)
	fake.On(o.BuildCommand("GR-BACKUP-1"), failureOutput)

	ok, outcome, err := o.RunAndClassify(context.Background(), "", "")
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(ok).To(gomega.BeTrue())
	g.Expect(outcome.Classify()).To(gomega.Equal(Success))

	ok, outcome, err = o.RunAndClassify(context.Background(), "GR-BACKUP-1", "")
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(ok).To(gomega.BeFalse())
	g.Expect(outcome.Classify()).To(gomega.Equal(Failure))
	g.Expect(outcome.NoHealthyUpstream()).To(gomega.BeTrue())

	ok, _, err = o.RunAndClassify(context.Background(), "GR-BACKUP-1", patterns.SwitchoverFailure)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(ok).To(gomega.BeTrue())
}

func TestRunAndClassifyInvalidPattern(t *testing.T) {
	g := gomega.NewWithT(t)
	fake := unittestcommon.NewFakeDMRunner()
	o := NewOrchestrator(fake, testPair(t))
	fake.On(o.BuildCommand(""), successOutput)

	ok, outcome, err := o.RunAndClassify(context.Background(), "", "Switchover Status(")
	g.Expect(err).To(gomega.HaveOccurred())
	g.Expect(ok).To(gomega.BeFalse())
	g.Expect(outcome).To(gomega.BeNil())
	g.Expect(fake.Calls()).To(gomega.BeEmpty())
}

func TestRunCommandError(t *testing.T) {
	g := gomega.NewWithT(t)
	fake := unittestcommon.NewFakeDMRunner()
	o := NewOrchestrator(fake, testPair(t))
	fake.OnError(o.BuildCommand(""), errors.New("ssh: handshake failed"))

	_, outcome, err := o.RunAndClassify(context.Background(), "", "")
	g.Expect(err).To(gomega.MatchError("ssh: handshake failed"))
	g.Expect(outcome).To(gomega.BeNil())
}

func TestRunAsyncTimeout(t *testing.T) {
	g := gomega.NewWithT(t)
	fake := unittestcommon.NewFakeDMRunner()
	fake.Delay = time.Minute
	o := NewOrchestrator(fake, testPair(t))
	fake.On(o.BuildCommand(""), successOutput)
	o.Timeout = 50 * time.Millisecond

	task := o.RunAsync(context.Background(), "")
	_, err := task.JoinWithResult(5 * time.Second)
	g.Expect(errors.Is(err, context.DeadlineExceeded)).To(gomega.BeTrue())
	g.Expect(errors.Is(err, runner.ErrTaskTimeout)).To(gomega.BeFalse())
}

func TestRunInBackground(t *testing.T) {
	g := gomega.NewWithT(t)
	fake := unittestcommon.NewFakeDMRunner()
	fake.Delay = 100 * time.Millisecond
	o := NewOrchestrator(fake, testPair(t))
	fake.On(o.BuildCommand(""), successOutput)

	task := o.RunInBackground(context.Background(), "", "")
	g.Expect(task.Name()).To(gomega.Equal(TaskName))
	g.Expect(task.IsAlive()).To(gomega.BeTrue())
	outcome, err := task.JoinWithResult(5 * time.Second)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(outcome.Classify()).To(gomega.Equal(Success))
	g.Expect(task.IsAlive()).To(gomega.BeFalse())
}
