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

package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onsi/gomega"
)

func TestGroupFailureDoesNotCancelSibling(t *testing.T) {
	g := gomega.NewWithT(t)
	boom := errors.New("boom")
	group := NewGroup(context.Background())
	siblingFinished := false

	group.Go("failing", func(context.Context) error {
		return boom
	})
	group.Go("sibling", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Millisecond):
		}
		siblingFinished = true
		return nil
	})

	err := group.Wait()
	g.Expect(err).To(gomega.MatchError(boom))
	g.Expect(siblingFinished).To(gomega.BeTrue())
	g.Expect(group.IsAlive("failing")).To(gomega.BeFalse())
	g.Expect(group.IsAlive("sibling")).To(gomega.BeFalse())
}

func TestGroupIsAlive(t *testing.T) {
	g := gomega.NewWithT(t)
	group := NewGroup(context.Background())
	release := make(chan struct{})
	group.Go("switchover", func(context.Context) error {
		<-release
		return nil
	})
	g.Expect(group.IsAlive("switchover")).To(gomega.BeTrue())
	g.Expect(group.IsAlive("unknown")).To(gomega.BeFalse())
	close(release)
	g.Expect(group.Wait()).To(gomega.Succeed())
	g.Expect(group.IsAlive("switchover")).To(gomega.BeFalse())
}

func TestGroupRecoversPanic(t *testing.T) {
	g := gomega.NewWithT(t)
	group := NewGroup(context.Background())
	group.Go("panicking", func(context.Context) error {
		panic("kaboom")
	})
	var panicErr *PanicError
	g.Expect(errors.As(group.Wait(), &panicErr)).To(gomega.BeTrue())
}
