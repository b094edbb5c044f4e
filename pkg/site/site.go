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

// Package site describes the two sites of a GR session and builds the
// clients reaching them.
package site

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/config"
	"github.com/consultant-1379/eo-gr-testing/pkg/kubernetes"
	"github.com/consultant-1379/eo-gr-testing/pkg/node"
	"github.com/consultant-1379/eo-gr-testing/pkg/registry"
)

// Role of a site in a GR session.
type Role string

const (
	// RoleActive is the site currently primary.
	RoleActive Role = "active"
	// RolePassive is the site currently secondary, the promotion target.
	RolePassive Role = "passive"
)

var (
	// ErrNoPassiveSite is returned when a pair is requested without a
	// passive site.
	ErrNoPassiveSite = errors.New("passive site is not set")
	// ErrNoOriginalPrimary is returned when no site is flagged as the
	// original primary.
	ErrNoOriginalPrimary = errors.New("no site is flagged as original primary")
	// ErrNoEONode is returned when a site has no EO node configured.
	ErrNoEONode = errors.New("site has no EO node")
)

// Site is the identity of one GR site.
type Site struct {
	Name string
	Role Role
	cfg  config.SiteConfig
}

// New returns the site called name with the given role.
func New(cfg *config.Config, name string, role Role) (*Site, error) {
	sc, ok := cfg.Site[name]
	if !ok || sc == nil {
		return nil, fmt.Errorf("%w: %q", config.ErrMissingSite, name)
	}
	return &Site{Name: name, Role: role, cfg: *sc}, nil
}

// GRHost returns the GR host of the site.
func (s *Site) GRHost() string {
	return s.cfg.GRHost
}

// EnvName returns the environment name of the site.
func (s *Site) EnvName() string {
	return s.cfg.EnvName
}

// Namespace returns the EO namespace of the site.
func (s *Site) Namespace() string {
	return s.cfg.Namespace
}

// VMVNFMInstalled reports whether VM VNFM is installed on the site.
func (s *Site) VMVNFMInstalled() bool {
	return s.cfg.VMVNFMInstalled
}

func (s *Site) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.Name, s.Role, s.cfg.GRHost)
}

// Cluster returns a Cluster bound to the EO namespace of the site.
func (s *Site) Cluster(ctx context.Context) (*kubernetes.Cluster, error) {
	client, err := kubernetes.NewClient(ctx, s.cfg.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create k8s client for site %s: %w", s.Name, err)
	}
	return kubernetes.NewCluster(client, s.cfg.Namespace), nil
}

// Registry returns a client for the GR docker registry of the site.
func (s *Site) Registry(prettyLogs bool) (*registry.Client, error) {
	return registry.NewClient(registry.Options{
		Host:       s.cfg.GRHost,
		Username:   s.cfg.RegistryUser,
		Password:   s.cfg.RegistryPassword,
		Insecure:   s.cfg.RegistryInsecure,
		PrettyLogs: prettyLogs,
	})
}

// EONode returns an SSH client for the EO node of the site.
func (s *Site) EONode() (*node.Client, error) {
	if s.cfg.EONodeHost == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEONode, s.Name)
	}
	return node.NewClient(s.cfg.EONodeHost, s.cfg.EONodeUser, s.cfg.EONodePassword), nil
}

// Pair holds the two sites of a session. Passive is always the promotion
// target.
type Pair struct {
	Active  *Site
	Passive *Site
}

// NewPair builds the pair from the configured site names. Empty names fall
// back to the [Global] section.
func NewPair(cfg *config.Config, active, passive string) (*Pair, error) {
	if active == "" {
		active = cfg.Global.ActiveSite
	}
	if passive == "" {
		passive = cfg.Global.PassiveSite
	}
	if active == "" {
		return nil, config.ErrActiveSiteMissing
	}
	if passive == "" {
		return nil, ErrNoPassiveSite
	}
	if active == passive {
		return nil, config.ErrSameSite
	}
	a, err := New(cfg, active, RoleActive)
	if err != nil {
		return nil, err
	}
	p, err := New(cfg, passive, RolePassive)
	if err != nil {
		return nil, err
	}
	return &Pair{Active: a, Passive: p}, nil
}

// OriginalPrimaryEnvName returns the environment name of the site flagged
// as original primary. The Deployment Manager workdir on the EO node is named
// after it.
func OriginalPrimaryEnvName(cfg *config.Config) (string, error) {
	names := make([]string, 0, len(cfg.Site))
	for name := range cfg.Site {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if sc := cfg.Site[name]; sc != nil && sc.OriginalPrimary {
			return sc.EnvName, nil
		}
	}
	return "", ErrNoOriginalPrimary
}
