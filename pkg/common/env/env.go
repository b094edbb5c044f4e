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

package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

// ErrMandatoryNotProvided is returned when a mandatory variable is unset.
var ErrMandatoryNotProvided = errors.New("mandatory environment variable is not provided")

// StartupEnv holds all environment variables read at process startup.
type StartupEnv struct {
	// LoggerLevel specifies the logging level (PRODUCTION or DEVELOPMENT)
	LoggerLevel string

	// ActiveSite is the name of the currently active site. Mandatory.
	ActiveSite string

	// PassiveSite is the name of the currently passive site.
	PassiveSite string

	// ConfigPath is the path of the GR config file
	ConfigPath string

	// RVSetup selects running Deployment Manager on the EO node
	RVSetup bool

	// DMLogLevel is the Deployment Manager log level name
	DMLogLevel string

	// HostLocalPwd is the host workdir mounted into the Deployment Manager container
	HostLocalPwd string

	// DMDockerImage is the Deployment Manager image for local runs
	DMDockerImage string

	// DMVersion pins the Deployment Manager version on the EO node
	DMVersion string

	// DNSServerIP is passed to docker on the EO node
	DNSServerIP string

	// LogPrefix prefixes downloaded log file names
	LogPrefix string

	// PrettyAPILogs indents JSON bodies in API debug logs
	PrettyAPILogs bool
}

var (
	// globalStartupEnv holds the loaded startup environment variables
	globalStartupEnv StartupEnv
)

// Load reads and validates all startup environment variables.
// This should be called once at process initialization.
func Load(ctx context.Context) (StartupEnv, error) {
	log := logger.GetLogger(ctx)

	env := StartupEnv{
		LoggerLevel:   os.Getenv("LOGGER_LEVEL"),
		ActiveSite:    os.Getenv("ACTIVE_SITE"),
		PassiveSite:   os.Getenv("PASSIVE_SITE"),
		ConfigPath:    os.Getenv("GR_CONFIG"),
		DMLogLevel:    os.Getenv("DM_LOG_LEVEL"),
		HostLocalPwd:  os.Getenv("HOST_LOCAL_PWD"),
		DMDockerImage: os.Getenv("DEPLOYMENT_MANAGER_DOCKER_IMAGE"),
		DMVersion:     os.Getenv("DEPLOYMENT_MANAGER_VERSION"),
		DNSServerIP:   os.Getenv("DNS_SERVER_IP"),
		LogPrefix:     os.Getenv("LOG_PREFIX"),
	}
	var err error
	if env.RVSetup, err = getBool("RV_SETUP"); err != nil {
		return env, err
	}
	if env.PrettyAPILogs, err = getBool("PRETTY_API_LOGS"); err != nil {
		return env, err
	}
	if env.DMLogLevel == "" {
		env.DMLogLevel = "INFO"
	}
	if env.ActiveSite == "" {
		return env, logger.LogError(log, fmt.Errorf("%w: ACTIVE_SITE", ErrMandatoryNotProvided))
	}

	// Store globally for access by the command entry points
	globalStartupEnv = env

	// Log loaded configuration (without sensitive values)
	log.Infof("Loaded startup environment: LoggerLevel=%q, ActiveSite=%q, PassiveSite=%q, RVSetup=%t, "+
		"DMLogLevel=%q, HostLocalPwd=%q, DMDockerImage=%q, DMVersion=%q, DNSServerIP=%q",
		env.LoggerLevel, env.ActiveSite, env.PassiveSite, env.RVSetup, env.DMLogLevel,
		maskValue(env.HostLocalPwd), env.DMDockerImage, env.DMVersion, env.DNSServerIP)

	return env, nil
}

// GetStartupEnv returns the globally loaded startup environment.
func GetStartupEnv() StartupEnv {
	return globalStartupEnv
}

// getBool parses a boolean variable; unset means false.
func getBool(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid value %q for %s: %w", v, name, err)
	}
	return b, nil
}

// maskValue masks a value for logging, showing only the first few characters.
func maskValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 10 {
		return "***"
	}
	return value[:10] + "***"
}
