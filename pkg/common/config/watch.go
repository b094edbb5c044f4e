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

package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

// Watch re-reads the config whenever the file at cfgPath is written or
// replaced and hands every valid result to onChange. Invalid configs are
// logged and skipped. Watch returns once ctx is done.
func Watch(ctx context.Context, cfgPath string, onChange func(*Config)) error {
	log := logger.GetLogger(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Errorf("failed to create fsnotify watcher. err=%v", err)
		return err
	}
	defer watcher.Close()

	// Editors and config map mounts replace the file, so watch the directory.
	cfgDirPath := filepath.Dir(cfgPath)
	log.Infof("Adding watch on path: %q", cfgDirPath)
	if err = watcher.Add(cfgDirPath); err != nil {
		log.Errorf("failed to watch on path: %q. err=%v", cfgDirPath, err)
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(cfgPath) ||
				!(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			log.Debugf("fsnotify event: %q", event.String())
			cfg, err := GetConfig(ctx, cfgPath)
			if err != nil {
				log.Errorf("failed to reload configuration from %q. err=%v", cfgPath, err)
				continue
			}
			log.Infof("Successfully reloaded configuration from: %q", cfgPath)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("fsnotify error: %+v", err)
		}
	}
}
