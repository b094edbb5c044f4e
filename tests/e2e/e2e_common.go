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
	"errors"
	"os"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/config"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/env"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/dm"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/availability"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/health"
	"github.com/consultant-1379/eo-gr-testing/pkg/site"
)

const (
	envActiveSite  = "ACTIVE_SITE"
	envPassiveSite = "PASSIVE_SITE"
	envGRConfig    = "GR_CONFIG"
)

// grEnv is what the specs share about the environment under test.
type grEnv struct {
	startup env.StartupEnv
	cfg     *config.Config
	pair    *site.Pair
	dm      *dm.Client
}

// GetAndExpectStringEnvVar parses a string from env variable.
func GetAndExpectStringEnvVar(varName string) string {
	varValue := os.Getenv(varName)
	gomega.Expect(varValue).NotTo(gomega.BeEmpty(), "ENV "+varName+" is not set")
	return varValue
}

// skipWithoutEnvironment skips the spec unless a GR environment is
// configured.
func skipWithoutEnvironment() {
	for _, name := range []string{envActiveSite, envPassiveSite, envGRConfig} {
		if os.Getenv(name) == "" {
			ginkgo.Skip("ENV " + name + " is not set, no GR environment to test")
		}
	}
}

// bootstrap reads the GR configuration of the environment under test.
func bootstrap(ctx context.Context) *grEnv {
	startup, err := env.Load(ctx)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	cfg, err := config.GetConfig(ctx, GetAndExpectStringEnvVar(envGRConfig))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	pair, err := site.NewPair(cfg, startup.ActiveSite, startup.PassiveSite)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	opts := dm.Options{
		Mode:         dm.ModeAppStaging,
		LogLevel:     cfg.DMLogLevel(),
		DockerImage:  cfg.DeploymentManager.DockerImage,
		HostLocalPwd: cfg.DeploymentManager.HostLocalPwd,
		DNSServerIP:  cfg.DeploymentManager.DNSServerIP,
		Version:      cfg.DeploymentManager.Version,
	}
	if cfg.DeploymentManager.RVSetup {
		opts.Mode = dm.ModeRV
		opts.EnvName, err = site.OriginalPrimaryEnvName(cfg)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		eoNode, err := pair.Active.EONode()
		if errors.Is(err, site.ErrNoEONode) {
			eoNode, err = pair.Passive.EONode()
		}
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		opts.Node = eoNode
	}
	client, err := dm.NewClient(opts)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	logger.GetLogger(ctx).Infof("GR environment: active %s, passive %s, mode %s", pair.Active, pair.Passive, client.Mode())
	return &grEnv{startup: startup, cfg: cfg, pair: pair, dm: client}
}

// swapped returns the environment after a successful switchover.
func (e *grEnv) swapped() *grEnv {
	pair, err := site.NewPair(e.cfg, e.pair.Passive.Name, e.pair.Active.Name)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return &grEnv{startup: e.startup, cfg: e.cfg, pair: pair, dm: e.dm}
}

func (e *grEnv) siteChecker(ctx context.Context, s *site.Site) *health.SiteChecker {
	cluster, err := s.Cluster(ctx)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return health.NewSiteChecker(s.EnvName(), cluster, s.VMVNFMInstalled())
}

func (e *grEnv) healthcheck(ctx context.Context) error {
	c := &health.Checker{
		Active:  e.siteChecker(ctx, e.pair.Active),
		Passive: e.siteChecker(ctx, e.pair.Passive),
	}
	return c.Healthcheck(ctx)
}

func (e *grEnv) availability() *availability.Checker {
	active, err := e.pair.Active.Registry(e.startup.PrettyAPILogs)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	passive, err := e.pair.Passive.Registry(e.startup.PrettyAPILogs)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return availability.NewChecker(e.dm, e.pair, active, passive)
}
