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

package e2e

import (
	"context"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/disruption"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/recovery"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/status"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/switchover"
)

var _ = ginkgo.Describe("[gr-switchover] Geographical Redundancy switchover", func() {
	var (
		ctx context.Context
		gr  *grEnv
	)

	ginkgo.BeforeEach(func() {
		skipWithoutEnvironment()
		ctx = logger.NewContextWithLogger(context.Background())
		gr = bootstrap(ctx)

		ginkgo.By("Verifying GR is available")
		ok, err := gr.availability().VerifyAvailability(ctx, "")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())

		ginkgo.By("Verifying GR status meets switchover conditions")
		ok, err = status.NewChecker(gr.dm).FullStatusCheck(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())
	})

	/*
		Switchover to the passive site
		Steps:
			1. Check pods of both sites
			2. Run switchover
			3. Check pods of both sites with swapped roles
			4. Check GR docker registries are in sync
	*/
	ginkgo.It("promotes the passive site", ginkgo.Label("disruptive"), func() {
		ginkgo.By("Checking pods before switchover")
		gomega.Expect(gr.healthcheck(ctx)).To(gomega.Succeed())

		ginkgo.By("Running switchover")
		ok, outcome, err := switchover.NewOrchestrator(gr.dm, gr.pair).RunAndClassify(ctx, "", "")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue(), "Switchover failed:\n%s", outcome.Output)

		ginkgo.By("Checking pods after switchover")
		gr = gr.swapped()
		gomega.Expect(gr.healthcheck(ctx)).To(gomega.Succeed())

		ginkgo.By("Checking GR docker registries are in sync")
		ok, err = gr.availability().VerifyRegistriesInSync(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())
	})

	/*
		Switchover rollback when the BUR orchestrator restarts
		Steps:
			1. Run switchover
			2. Delete the BUR orchestrator pod of the passive site once GR pods are up there
			3. Expect the switchover to fail and roll back
	*/
	ginkgo.It("rolls back when the BUR orchestrator restarts", ginkgo.Label("disruptive", "rv"), func() {
		cluster, err := gr.pair.Passive.Cluster(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		roster := pods.HealthCheckRoster(gr.pair.Passive.VMVNFMInstalled())

		outcome, err := disruption.RunSwitchoverWithWatcher(ctx, switchover.NewOrchestrator(gr.dm, gr.pair), "",
			func(ctx context.Context, tracker disruption.TaskTracker, taskName string) error {
				return disruption.KillPodWhenPodsUp(ctx, tracker, taskName, cluster, roster, pods.GRBurOrchestrator, true)
			})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(outcome.Classify()).To(gomega.Equal(switchover.Failure),
			"Switchover rollback operation finished with unexpected status")
		gomega.Expect(outcome.NoHealthyUpstream()).To(gomega.BeTrue(), "Wrong switchover rollback operation error text")

		ginkgo.By("Checking pods stay on the active site")
		gomega.Expect(gr.healthcheck(ctx)).To(gomega.Succeed())
	})

	/*
		Switchover rollback when the backup and restore orchestrator restarts
		Steps:
			1. Run switchover
			2. Delete the ctrl-bro pod of the passive site once vnflcm db starts to recreate
			3. Expect the switchover to fail and roll back
	*/
	ginkgo.It("rolls back when the backup and restore orchestrator restarts", ginkgo.Label("disruptive", "rv"), func() {
		if !gr.pair.Passive.VMVNFMInstalled() {
			ginkgo.Skip("VM VNFM is not installed on " + gr.pair.Passive.Name)
		}
		cluster, err := gr.pair.Passive.Cluster(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		outcome, err := disruption.RunSwitchoverWithWatcher(ctx, switchover.NewOrchestrator(gr.dm, gr.pair), "",
			func(ctx context.Context, tracker disruption.TaskTracker, taskName string) error {
				return disruption.KillPodWhenPodRecreates(ctx, tracker, taskName, cluster, pods.VNFLCMDB, pods.CtrlBRO, true)
			})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(outcome.Classify()).To(gomega.Equal(switchover.Failure))
		gomega.Expect(outcome.NoHealthyUpstream()).To(gomega.BeTrue())
	})
})

var _ = ginkgo.Describe("[gr-recovery] Geographical Redundancy recovery", func() {
	var (
		ctx context.Context
		gr  *grEnv
	)

	ginkgo.BeforeEach(func() {
		skipWithoutEnvironment()
		ctx = logger.NewContextWithLogger(context.Background())
		gr = bootstrap(ctx)
	})

	ginkgo.It("reports the passive site recoverable after update", func() {
		o := recovery.NewOrchestrator(gr.dm, gr.pair.Passive.GRHost())

		ginkgo.By("Updating the recovery state")
		ok, err := o.UpdateAndVerify(ctx)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())

		ginkgo.By("Waiting for the site to be recoverable")
		ok, err = o.WaitForStatus(ctx, recovery.Recoverable, 0)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())
	})
})
