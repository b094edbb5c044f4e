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

package dm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/textmatch"
	"github.com/consultant-1379/eo-gr-testing/pkg/common/utils"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
)

const collectLogsTimeout = 5 * time.Minute

// FailedPodLister lists pods that are not healthy.
type FailedPodLister interface {
	FailedPods(ctx context.Context, excludeTerminated bool) ([]corev1.Pod, error)
}

// LogCollector runs the collect-logs command on the EO node and downloads
// what it produced.
type LogCollector struct {
	client    *Client
	node      RemoteHost
	envName   string
	namespace string
	localDir  string
	logPrefix string

	// remote files downloaded so far, removed by Cleanup.
	remoteLogs []string
}

// NewLogCollector returns a collector storing logs under localDir. client
// must run in ModeRV against node.
func NewLogCollector(client *Client, node RemoteHost, envName, namespace, localDir, logPrefix string) *LogCollector {
	return &LogCollector{
		client:    client,
		node:      node,
		envName:   envName,
		namespace: namespace,
		localDir:  localDir,
		logPrefix: logPrefix,
	}
}

func (l *LogCollector) remoteLogDir() string {
	return fmt.Sprintf(patterns.EONodeLogsDir, l.envName)
}

// localName is the name a remote log gets once downloaded.
func (l *LogCollector) localName(remoteName string) string {
	name := l.envName + "_" + remoteName
	if l.logPrefix != "" {
		name = l.logPrefix + "_" + name
	}
	return name
}

// Collect runs collect-logs for namespace (the configured one when empty)
// and downloads the archive and the execution log it reports. It returns the
// local paths.
func (l *LogCollector) Collect(ctx context.Context, namespace string) ([]string, error) {
	log := logger.GetLogger(ctx)
	if namespace == "" {
		namespace = l.namespace
	}
	log.Info("Executing DM 'collect-logs' cmd on EO Node")
	task := l.client.RunCommandAsync(ctx, "collect-logs: "+namespace,
		fmt.Sprintf(patterns.CollectLogsCmd, namespace), collectLogsTimeout)
	output, err := task.JoinWithResult(0)
	if err != nil {
		return nil, err
	}

	var downloaded []string
	for _, pattern := range []string{patterns.ArchiveLog, patterns.ExecutionLog} {
		name, ok := textmatch.Search(pattern, output)
		if !ok {
			log.Errorf("Log file name is not found in DM output:\n%s", output)
			continue
		}
		log.Infof("Log file name found: %s", name)
		remotePath := l.remoteLogDir() + name
		localPath := filepath.Join(l.localDir, l.localName(name))
		if err := l.node.Download(ctx, remotePath, localPath); err != nil {
			return downloaded, err
		}
		l.remoteLogs = append(l.remoteLogs, remotePath)
		downloaded = append(downloaded, localPath)
	}
	log.Infof("Downloaded following logs: %v", downloaded)
	return downloaded, nil
}

// DownloadAll downloads every file of the EO node log directory.
func (l *LogCollector) DownloadAll(ctx context.Context) ([]string, error) {
	log := logger.GetLogger(ctx)
	dir := l.remoteLogDir()
	log.Infof("Get all files from %s", dir)
	files, err := l.node.Output(ctx, fmt.Sprintf(patterns.ListWorkdirCmd, dir))
	if err != nil {
		return nil, err
	}
	var downloaded []string
	for _, name := range strings.Fields(files) {
		localPath := filepath.Join(l.localDir, name)
		if err := l.node.Download(ctx, dir+name, localPath); err != nil {
			return downloaded, err
		}
		downloaded = append(downloaded, localPath)
	}
	if len(downloaded) == 0 {
		log.Info("No available logs in workdir!")
	}
	return downloaded, nil
}

// Cleanup removes the downloaded logs from the EO node.
func (l *LogCollector) Cleanup(ctx context.Context) error {
	log := logger.GetLogger(ctx)
	if len(l.remoteLogs) == 0 {
		return nil
	}
	cmds := make([]string, 0, len(l.remoteLogs))
	for _, remotePath := range l.remoteLogs {
		log.Infof("Deleting log file %q on EO Node", remotePath)
		cmds = append(cmds, fmt.Sprintf(patterns.RemoveFileCmd, remotePath))
	}
	if _, err := l.node.Output(ctx, utils.JoinCmds(cmds...)); err != nil {
		return err
	}
	l.remoteLogs = nil
	return nil
}

// CollectIfFailedPods collects logs only when lister reports failed pods.
func (l *LogCollector) CollectIfFailedPods(ctx context.Context, lister FailedPodLister, namespace string) ([]string, error) {
	log := logger.GetLogger(ctx)
	failed, err := lister.FailedPods(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(failed) == 0 {
		log.Infof("No failed pods found. Skipping the log collection for namespace %q", namespace)
		return nil, nil
	}
	names := make([]string, 0, len(failed))
	for _, p := range failed {
		names = append(names, p.Name)
	}
	log.Warnf("Found the following failed pods in %s: %v", namespace, names)
	return l.Collect(ctx, namespace)
}
