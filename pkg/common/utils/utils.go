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

package utils

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

// Comparator is a relational operator understood by CompareVersions.
type Comparator string

const (
	GreaterThan        Comparator = ">"
	GreaterThanOrEqual Comparator = ">="
	LessThan           Comparator = "<"
	LessThanOrEqual    Comparator = "<="
	Equal              Comparator = "=="
	NotEqual           Comparator = "!="
)

// CompareVersions reports whether "current comparator target" holds.
func CompareVersions(ctx context.Context, current, target string, comparator Comparator) (bool, error) {
	log := logger.GetLogger(ctx)
	log.Infof("Verifying if %q %s %q", current, comparator, target)
	cur, err := version.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", current, err)
	}
	tgt, err := version.NewVersion(target)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", target, err)
	}
	c := cur.Compare(tgt)
	switch comparator {
	case GreaterThan:
		return c > 0, nil
	case GreaterThanOrEqual:
		return c >= 0, nil
	case LessThan:
		return c < 0, nil
	case LessThanOrEqual:
		return c <= 0, nil
	case Equal:
		return c == 0, nil
	case NotEqual:
		return c != 0, nil
	}
	return false, logger.LogNewErrorf(log, "invalid comparator %q, use one of > >= < <= == !=", comparator)
}

// JoinCmds joins shell commands with "&&".
func JoinCmds(cmds ...string) string {
	return strings.Join(cmds, " && ")
}
