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

// Package dm runs Deployment Manager commands, either through a local docker
// daemon or on the EO node over SSH.
package dm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/prometheus"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/runner"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/textmatch"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
)

var (
	// ErrVersionNotFound is returned when the EO node workdir holds no
	// Deployment Manager archive.
	ErrVersionNotFound = errors.New("deployment manager version is not found")

	// ErrMultipleVersions is returned when the EO node workdir holds more
	// than one Deployment Manager archive.
	ErrMultipleVersions = errors.New("multiple deployment manager versions are found")
)

// ExecutionMode selects where Deployment Manager commands run.
type ExecutionMode int

const (
	// ModeAppStaging runs the Deployment Manager image through the local
	// docker daemon.
	ModeAppStaging ExecutionMode = iota
	// ModeRV runs the Deployment Manager image on the EO node over SSH, from
	// the environment workdir.
	ModeRV
)

func (m ExecutionMode) String() string {
	if m == ModeRV {
		return "RV"
	}
	return "AppStaging"
}

// CommandRunner runs a Deployment Manager command and returns its textual
// output. Success and failure look alike, callers classify the text.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd string) (string, error)
}

// RemoteHost is the EO node as seen by the Deployment Manager client.
type RemoteHost interface {
	Output(ctx context.Context, cmd string) (string, error)
	Download(ctx context.Context, remotePath, localPath string) error
}

// Options configures a Client.
type Options struct {
	Mode ExecutionMode
	// LogLevel is the numeric Deployment Manager verbosity.
	LogLevel int
	// DockerImage and HostLocalPwd are used in ModeAppStaging.
	DockerImage  string
	HostLocalPwd string
	// EnvName names the EO node workdir, used in ModeRV.
	EnvName string
	// DNSServerIP is optional, used in ModeRV.
	DNSServerIP string
	// Version pins the Deployment Manager version in ModeRV. Discovered from
	// the workdir when empty.
	Version string
	// Node is the EO node, required in ModeRV.
	Node RemoteHost
}

// commandBuilder wraps a Deployment Manager command into the shell command
// that runs it.
type commandBuilder interface {
	build(ctx context.Context, cmd string) (string, error)
}

// executor runs a shell command and returns its output.
type executor interface {
	run(ctx context.Context, cmd string) (string, error)
}

// Client runs Deployment Manager commands. It is safe for concurrent use.
type Client struct {
	mode     ExecutionMode
	builder  commandBuilder
	executor executor
}

// NewClient returns a Client for the configured mode.
func NewClient(opts Options) (*Client, error) {
	switch opts.Mode {
	case ModeAppStaging:
		if opts.DockerImage == "" || opts.HostLocalPwd == "" {
			return nil, fmt.Errorf("docker image and host local pwd are required in %s mode", opts.Mode)
		}
		return &Client{
			mode:     opts.Mode,
			builder:  &localBuilder{image: opts.DockerImage, hostPwd: opts.HostLocalPwd, logLevel: opts.LogLevel},
			executor: localExecutor{},
		}, nil
	case ModeRV:
		if opts.Node == nil || opts.EnvName == "" {
			return nil, fmt.Errorf("EO node and env name are required in %s mode", opts.Mode)
		}
		return &Client{
			mode: opts.Mode,
			builder: &remoteBuilder{
				envName:  opts.EnvName,
				dnsIP:    opts.DNSServerIP,
				logLevel: opts.LogLevel,
				node:     opts.Node,
				version:  opts.Version,
			},
			executor: remoteExecutor{node: opts.Node},
		}, nil
	}
	return nil, fmt.Errorf("unknown execution mode %d", opts.Mode)
}

// Mode returns the execution mode of the client.
func (c *Client) Mode() ExecutionMode {
	return c.mode
}

// RunCommand runs cmd and returns stdout, or stderr on failure.
func (c *Client) RunCommand(ctx context.Context, cmd string) (string, error) {
	log := logger.GetLogger(ctx)
	log.Infof("Running Deployment Manager cmd=%q ...", cmd)
	shellCmd, err := c.builder.build(ctx, cmd)
	if err != nil {
		return "", err
	}
	start := time.Now()
	out, err := c.executor.run(ctx, shellCmd)
	status := prometheus.PrometheusPassStatus
	if err != nil {
		status = prometheus.PrometheusFailStatus
	}
	prometheus.DMCommandOpsHistVec.WithLabelValues(opType(cmd), status).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("Deployment Manager cmd=%q failed. err=%v", cmd, err)
		return out, err
	}
	log.Debugf("Deployment Manager cmd=%q output:\n%s", cmd, out)
	return out, nil
}

// RunCommandAsync runs cmd in a background task. A positive timeout bounds
// the command itself.
func (c *Client) RunCommandAsync(ctx context.Context, name, cmd string, timeout time.Duration) *runner.Task[string] {
	return runner.Start(ctx, name, func(ctx context.Context) (string, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return c.RunCommand(ctx, cmd)
	})
}

// Version returns the Deployment Manager version used on the EO node.
func (c *Client) Version(ctx context.Context) (string, error) {
	b, ok := c.builder.(*remoteBuilder)
	if !ok {
		return "", fmt.Errorf("deployment manager version is only tracked in %s mode", ModeRV)
	}
	return b.dmVersion(ctx)
}

func opType(cmd string) string {
	for prefix, op := range map[string]string{
		"geo switchover":            prometheus.PrometheusSwitchoverOpType,
		"geo status":                prometheus.PrometheusStatusOpType,
		"geo availability":          prometheus.PrometheusAvailabilityOpType,
		"geo recovery-status":       prometheus.PrometheusRecoveryStatusOpType,
		"geo update-recovery-state": prometheus.PrometheusUpdateRecoveryStateOpType,
		"collect-logs":              prometheus.PrometheusCollectLogsOpType,
	} {
		if strings.HasPrefix(cmd, prefix) {
			return op
		}
	}
	return "other"
}

type localBuilder struct {
	image    string
	hostPwd  string
	logLevel int
}

func (b *localBuilder) build(_ context.Context, cmd string) (string, error) {
	return fmt.Sprintf(patterns.DMLocalDockerCmd, b.hostPwd, b.image, cmd, b.logLevel), nil
}

type remoteBuilder struct {
	envName  string
	dnsIP    string
	logLevel int
	node     RemoteHost

	mu      sync.Mutex
	version string
}

func (b *remoteBuilder) build(ctx context.Context, cmd string) (string, error) {
	v, err := b.dmVersion(ctx)
	if err != nil {
		return "", err
	}
	dnsFlag := ""
	if b.dnsIP != "" {
		dnsFlag = fmt.Sprintf(patterns.DNSFlag, b.dnsIP)
	}
	workdir := strings.TrimSuffix(fmt.Sprintf(patterns.EONodeWorkdir, b.envName), "/")
	return fmt.Sprintf(patterns.DMRemoteDockerCmd, workdir, dnsFlag, v, cmd, b.logLevel), nil
}

// dmVersion returns the pinned version or discovers it once from the
// workdir.
func (b *remoteBuilder) dmVersion(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.version != "" {
		return b.version, nil
	}
	v, err := DiscoverVersion(ctx, b.node, b.envName)
	if err != nil {
		return "", err
	}
	b.version = v
	return v, nil
}

// DiscoverVersion lists the EO node workdir of envName and returns the
// version of the single Deployment Manager archive found there.
func DiscoverVersion(ctx context.Context, node RemoteHost, envName string) (string, error) {
	log := logger.GetLogger(ctx)
	workdir := fmt.Sprintf(patterns.EONodeWorkdir, envName)
	log.Infof("Defining Deployment Manager version from EO Node %s", workdir)
	files, err := node.Output(ctx, fmt.Sprintf(patterns.ListWorkdirCmd, workdir))
	if err != nil {
		return "", err
	}
	found := textmatch.FindAll(patterns.DMVersionInFile, files)
	switch {
	case len(found) == 0:
		return "", logger.LogError(log, fmt.Errorf("%w in %s, workdir content:\n%s", ErrVersionNotFound, workdir, files))
	case len(found) > 1:
		return "", logger.LogError(log, fmt.Errorf("%w in %s: %v", ErrMultipleVersions, workdir, found))
	}
	if _, err := version.NewVersion(found[0]); err != nil {
		return "", fmt.Errorf("invalid deployment manager version %q: %w", found[0], err)
	}
	log.Infof("Deployment Manager version is defined: %s", found[0])
	return found[0], nil
}

// localExecutor runs commands through the local shell. stderr is merged into
// stdout and a non-zero exit status is not an error.
type localExecutor struct{}

func (localExecutor) run(ctx context.Context, cmd string) (string, error) {
	log := logger.GetLogger(ctx)
	log.Infof("Executing cmd=%q", cmd)
	out, err := exec.CommandContext(ctx, "sh", "-c", cmd).CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		log.Warnf("cmd=%q exited with code %d", cmd, exitErr.ExitCode())
		err = nil
	}
	return string(out), err
}

type remoteExecutor struct {
	node RemoteHost
}

func (e remoteExecutor) run(ctx context.Context, cmd string) (string, error) {
	logger.GetLogger(ctx).Infof("Executing cmd=%q on EO Node", cmd)
	return e.node.Output(ctx, cmd)
}
