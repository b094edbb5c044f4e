/*
Copyright 2019 The Kubernetes Authors.

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

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v2"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

const (
	// DefaultConfigPath is the default path of the GR testing config file.
	DefaultConfigPath = "/etc/eo-gr/gr.conf"
	// EnvGRConfig contains the path to the GR testing config file.
	EnvGRConfig = "GR_CONFIG"
	// envSitePrefix prefixes per site environment overrides,
	// e.g. GR_SITE_SITE1_GR_HOST.
	envSitePrefix = "GR_SITE_"
	// siteFilePattern is the name of a per site YAML file.
	siteFilePattern = "env_%s.yaml"
)

// Errors
var (
	// ErrMissingSite is returned when a configured site has no definition.
	ErrMissingSite = errors.New("site is not defined in GR config")

	// ErrMissingGRHost is returned when a site has no GR host.
	ErrMissingGRHost = errors.New("site has no GR host")

	// ErrActiveSiteMissing is returned when no active site is configured.
	ErrActiveSiteMissing = errors.New("active site is not set")

	// ErrSameSite is returned when active and passive sites are the same.
	ErrSameSite = errors.New("active and passive sites must differ")

	// ErrInvalidDMLogLevel is returned for an unknown Deployment Manager log
	// level.
	ErrInvalidDMLogLevel = errors.New("invalid Deployment Manager log level")
)

// dmLogLevels maps Deployment Manager log level names to its -v values.
var dmLogLevels = map[string]int{
	"CRITICAL": 0,
	"ERROR":    1,
	"WARNING":  2,
	"INFO":     3,
	"DEBUG":    4,
}

// DMLogLevel returns the numeric Deployment Manager verbosity. Empty means
// INFO.
func (c *Config) DMLogLevel() int {
	if lvl, ok := dmLogLevels[strings.ToUpper(c.DeploymentManager.LogLevel)]; ok {
		return lvl
	}
	return dmLogLevels["INFO"]
}

// FromEnv initializes the provided configuration object with values
// obtained from environment variables. If an environment variable is set
// for a property that's already initialized, the environment variable's value
// takes precedence.
func FromEnv(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config object cannot be nil")
	}
	log := logger.GetLogger(ctx)
	if cfg.Site == nil {
		cfg.Site = make(map[string]*SiteConfig)
	}

	if v := os.Getenv("ACTIVE_SITE"); v != "" {
		cfg.Global.ActiveSite = v
	}
	if v := os.Getenv("PASSIVE_SITE"); v != "" {
		cfg.Global.PassiveSite = v
	}
	if v := os.Getenv("DEPLOYMENT_MANAGER_DOCKER_IMAGE"); v != "" {
		cfg.DeploymentManager.DockerImage = v
	}
	if v := os.Getenv("DEPLOYMENT_MANAGER_VERSION"); v != "" {
		cfg.DeploymentManager.Version = v
	}
	if v := os.Getenv("HOST_LOCAL_PWD"); v != "" {
		cfg.DeploymentManager.HostLocalPwd = v
	}
	if v := os.Getenv("DM_LOG_LEVEL"); v != "" {
		cfg.DeploymentManager.LogLevel = v
	}
	if v := os.Getenv("DNS_SERVER_IP"); v != "" {
		cfg.DeploymentManager.DNSServerIP = v
	}
	if v := os.Getenv("RV_SETUP"); v != "" {
		rv, err := strconv.ParseBool(v)
		if err != nil {
			log.Errorf("failed to parse RV_SETUP=%q. err=%v", v, err)
			return err
		}
		cfg.DeploymentManager.RVSetup = rv
	}

	for _, e := range os.Environ() {
		key, value, found := strings.Cut(e, "=")
		if !found || !strings.HasPrefix(key, envSitePrefix) || value == "" {
			continue
		}
		if err := setSiteField(cfg, strings.TrimPrefix(key, envSitePrefix), value); err != nil {
			log.Debugf("Ignoring %s: %v", key, err)
		}
	}
	return nil
}

// setSiteField applies one "<SITE>_<FIELD>" override. Site names are matched
// case-insensitively against configured sites.
func setSiteField(cfg *Config, key, value string) error {
	for name, site := range cfg.Site {
		prefix := strings.ToUpper(name) + "_"
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		field := strings.TrimPrefix(key, prefix)
		switch field {
		case "ENV_NAME":
			site.EnvName = value
		case "GR_HOST":
			site.GRHost = value
		case "GR_USER_NAME":
			site.GRUser = value
		case "GR_USER_PASSWORD":
			site.GRPassword = value
		case "CODEPLOY_NAMESPACE":
			site.Namespace = value
		case "CCD_KUBECONFIG_PATH":
			site.Kubeconfig = value
		case "REGISTRY_USER_NAME":
			site.RegistryUser = value
		case "REGISTRY_USER_PASSWORD":
			site.RegistryPassword = value
		case "EO_NODE_HOST":
			site.EONodeHost = value
		case "EO_NODE_USER":
			site.EONodeUser = value
		case "EO_NODE_PASSWORD":
			site.EONodePassword = value
		default:
			return fmt.Errorf("unknown site field %q", field)
		}
		return nil
	}
	return fmt.Errorf("no configured site matches %q", key)
}

func validateConfig(ctx context.Context, cfg *Config) error {
	log := logger.GetLogger(ctx)
	if cfg.DeploymentManager.LogLevel != "" {
		if _, ok := dmLogLevels[strings.ToUpper(cfg.DeploymentManager.LogLevel)]; !ok {
			log.Errorf("%v: %q", ErrInvalidDMLogLevel, cfg.DeploymentManager.LogLevel)
			return ErrInvalidDMLogLevel
		}
	}
	for name, site := range cfg.Site {
		if site.EnvName == "" {
			site.EnvName = name
		}
	}
	if cfg.Global.ActiveSite == "" {
		log.Error(ErrActiveSiteMissing)
		return ErrActiveSiteMissing
	}
	sites := []string{cfg.Global.ActiveSite}
	if cfg.Global.PassiveSite != "" {
		if cfg.Global.PassiveSite == cfg.Global.ActiveSite {
			log.Error(ErrSameSite)
			return ErrSameSite
		}
		sites = append(sites, cfg.Global.PassiveSite)
	}
	for _, name := range sites {
		site, ok := cfg.Site[name]
		if !ok {
			log.Errorf("%v: %q", ErrMissingSite, name)
			return fmt.Errorf("%w: %q", ErrMissingSite, name)
		}
		if site.GRHost == "" {
			log.Errorf("%v: %q", ErrMissingGRHost, name)
			return fmt.Errorf("%w: %q", ErrMissingGRHost, name)
		}
	}
	return nil
}

// ReadConfig parses GR testing config from the provided reader.
func ReadConfig(ctx context.Context, config io.Reader) (*Config, error) {
	log := logger.GetLogger(ctx)
	if config == nil {
		return nil, fmt.Errorf("no GR config file given")
	}
	cfg := &Config{}
	if err := gcfg.FatalOnly(gcfg.ReadInto(cfg, config)); err != nil {
		log.Errorf("error while reading config file: %+v", err)
		return nil, err
	}
	return cfg, nil
}

// ReadSiteFile reads one env_<site>.yaml file.
func ReadSiteFile(ctx context.Context, path string) (*SiteConfig, error) {
	log := logger.GetLogger(ctx)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("failed to read site file %q. err=%v", path, err)
		return nil, err
	}
	site := &SiteConfig{}
	if err := yaml.Unmarshal(data, site); err != nil {
		log.Errorf("failed to parse site file %q. err=%v", path, err)
		return nil, err
	}
	return site, nil
}

// loadSiteFiles merges env_<site>.yaml files of the active and passive sites.
// Sections already present in the INI file win.
func loadSiteFiles(ctx context.Context, cfg *Config) error {
	if cfg.Global.SitesDir == "" {
		return nil
	}
	if cfg.Site == nil {
		cfg.Site = make(map[string]*SiteConfig)
	}
	for _, name := range []string{cfg.Global.ActiveSite, cfg.Global.PassiveSite} {
		if name == "" {
			continue
		}
		if _, ok := cfg.Site[name]; ok {
			continue
		}
		path := filepath.Join(cfg.Global.SitesDir, fmt.Sprintf(siteFilePattern, name))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		site, err := ReadSiteFile(ctx, path)
		if err != nil {
			return err
		}
		cfg.Site[name] = site
	}
	return nil
}

// GetConfig returns GR testing config read from cfgPath, site files and
// environment overrides, validated.
func GetConfig(ctx context.Context, cfgPath string) (*Config, error) {
	log := logger.GetLogger(ctx)
	log.Debugf("GetConfig called with cfgPath: %s", cfgPath)
	var cfg *Config
	f, err := os.Open(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Errorf("failed to open %s. Err: %v", cfgPath, err)
			return nil, err
		}
		log.Infof("Config file %q not found, using environment only", cfgPath)
		cfg = &Config{}
	} else {
		defer f.Close()
		if cfg, err = ReadConfig(ctx, f); err != nil {
			return nil, err
		}
	}
	if err = FromEnv(ctx, cfg); err != nil {
		return nil, err
	}
	if err = loadSiteFiles(ctx, cfg); err != nil {
		return nil, err
	}
	// Site overrides only apply to sites that exist, so run them again once
	// site files are loaded.
	if err = FromEnv(ctx, cfg); err != nil {
		return nil, err
	}
	if err = validateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigPath returns the config path from GR_CONFIG or the default.
func GetConfigPath(ctx context.Context) string {
	cfgPath := os.Getenv(EnvGRConfig)
	if cfgPath == "" {
		cfgPath = DefaultConfigPath
	}
	logger.GetLogger(ctx).Debugf("GR config path: %s", cfgPath)
	return cfgPath
}
