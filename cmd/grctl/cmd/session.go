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

package cmd

import (
	"context"
	"errors"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/config"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/env"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/dm"
	"github.com/consultant-1379/eo-gr-testing/pkg/node"
	"github.com/consultant-1379/eo-gr-testing/pkg/site"
)

// session holds what every command needs to act on a GR pair.
type session struct {
	cfgPath string
	cfg     *config.Config
	env     env.StartupEnv
	pair    *site.Pair
	dm      *dm.Client
	// eoNode and workdirEnv are only set in RV mode.
	eoNode     *node.Client
	workdirEnv string
}

func newSession(ctx context.Context) (*session, error) {
	log := logger.GetLogger(ctx)
	startup, err := env.Load(ctx)
	if err != nil && !(errors.Is(err, env.ErrMandatoryNotProvided) && activeSite != "") {
		return nil, err
	}
	s := &session{env: startup, cfgPath: cfgFile}
	if s.cfgPath == "" {
		s.cfgPath = startup.ConfigPath
	}
	if s.cfgPath == "" {
		s.cfgPath = config.GetConfigPath(ctx)
	}
	cfg, err := config.GetConfig(ctx, s.cfgPath)
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx, cfg); err != nil {
		return nil, err
	}
	log.Infof("Session ready. Active site: %s, passive site: %s, mode: %s", s.pair.Active, s.pair.Passive, s.dm.Mode())
	return s, nil
}

// load binds the session to cfg.
func (s *session) load(ctx context.Context, cfg *config.Config) error {
	pair, err := site.NewPair(cfg, activeSite, passiveSite)
	if err != nil {
		return err
	}
	opts := dm.Options{
		Mode:         dm.ModeAppStaging,
		LogLevel:     cfg.DMLogLevel(),
		DockerImage:  cfg.DeploymentManager.DockerImage,
		HostLocalPwd: cfg.DeploymentManager.HostLocalPwd,
		DNSServerIP:  cfg.DeploymentManager.DNSServerIP,
		Version:      cfg.DeploymentManager.Version,
	}
	var eoNode *node.Client
	if cfg.DeploymentManager.RVSetup {
		opts.Mode = dm.ModeRV
		// The Deployment Manager workdir on the EO node is named after the
		// original primary site.
		if opts.EnvName, err = site.OriginalPrimaryEnvName(cfg); err != nil {
			return err
		}
		if eoNode, err = pair.Active.EONode(); errors.Is(err, site.ErrNoEONode) {
			eoNode, err = pair.Passive.EONode()
		}
		if err != nil {
			return err
		}
		opts.Node = eoNode
	}
	client, err := dm.NewClient(opts)
	if err != nil {
		return err
	}
	s.cfg, s.pair, s.dm, s.eoNode, s.workdirEnv = cfg, pair, client, eoNode, opts.EnvName
	logger.GetLogger(ctx).Debugf("Deployment Manager client created in %s mode", client.Mode())
	return nil
}

// siteByName returns the active or passive site of the pair.
func (s *session) siteByName(passive bool) *site.Site {
	if passive {
		return s.pair.Passive
	}
	return s.pair.Active
}
