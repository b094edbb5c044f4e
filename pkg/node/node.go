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

// Package node runs commands on and copies files from remote hosts over SSH.
package node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

const (
	sshdPort       = "22"
	defaultTimeout = 30 * time.Second
)

// Result holds the outcome of a remote command.
type Result struct {
	Host   string
	Cmd    string
	Stdout string
	Stderr string
	Code   int
}

// Output returns stdout, or stderr when stdout is empty.
func (r Result) Output() string {
	if r.Stdout != "" {
		return r.Stdout
	}
	return r.Stderr
}

// Client executes commands on one host. Each call opens its own connection,
// so a Client may be shared by concurrent callers.
type Client struct {
	addr   string
	config *ssh.ClientConfig
}

// NewClient returns a password authenticated client for host. host may carry
// a port; 22 is used otherwise.
func NewClient(host, user, password string) *Client {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, sshdPort)
	}
	return &Client{
		addr: addr,
		config: &ssh.ClientConfig{
			User: user,
			Auth: []ssh.AuthMethod{
				ssh.Password(password),
			},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         defaultTimeout,
		},
	}
}

// Host returns the address the client connects to.
func (c *Client) Host() string {
	return c.addr
}

func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	d := net.Dialer{Timeout: c.config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.addr, c.config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Exec runs cmd on the host. A non-zero exit status is reported in
// Result.Code, not as an error. Cancelling ctx closes the session.
func (c *Client) Exec(ctx context.Context, cmd string) (Result, error) {
	log := logger.GetLogger(ctx)
	result := Result{Host: c.addr, Cmd: cmd}
	log.Debugf("Executing %q on %s", cmd, c.addr)

	sshClient, err := c.dial(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to connect to %s@%s: %w", c.config.User, c.addr, err)
	}
	defer sshClient.Close()
	sshSession, err := sshClient.NewSession()
	if err != nil {
		return result, err
	}
	defer sshSession.Close()

	var bytesStdout, bytesStderr bytes.Buffer
	sshSession.Stdout, sshSession.Stderr = &bytesStdout, &bytesStderr
	done := make(chan error, 1)
	go func() {
		done <- sshSession.Run(cmd)
	}()
	select {
	case <-ctx.Done():
		sshSession.Close()
		sshClient.Close()
		return result, fmt.Errorf("running `%s` on %s: %w", cmd, c.addr, ctx.Err())
	case err = <-done:
	}

	code := 0
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			// If we got an ExitError and the exit code is nonzero, we'll
			// consider the SSH itself successful but cmd failed on the host.
			if code = exitErr.ExitStatus(); code != 0 {
				err = nil
			}
		} else {
			err = fmt.Errorf("failed running `%s` on %s@%s: '%v'", cmd, c.config.User, c.addr, err)
		}
	}
	result.Stdout = bytesStdout.String()
	result.Stderr = bytesStderr.String()
	result.Code = code
	log.Debugf("Command %q on %s exited with code %d", cmd, c.addr, code)
	return result, err
}

// Output runs cmd and returns its stdout, or its stderr when stdout is empty.
func (c *Client) Output(ctx context.Context, cmd string) (string, error) {
	result, err := c.Exec(ctx, cmd)
	if err != nil {
		return "", err
	}
	return result.Output(), nil
}

// Download copies remotePath from the host to localPath, creating missing
// local directories.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	log := logger.GetLogger(ctx)
	log.Infof("Download file %s from %s to %s", remotePath, c.addr, localPath)
	sshClient, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s@%s: %w", c.config.User, c.addr, err)
	}
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open %s on %s: %w", remotePath, c.addr, err)
	}
	defer remoteFile.Close()

	if err = os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	localFile, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer localFile.Close()

	n, err := io.Copy(localFile, remoteFile)
	if err != nil {
		return err
	}
	log.Debugf("Read %d bytes", n)
	return nil
}
