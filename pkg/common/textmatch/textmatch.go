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

// Package textmatch searches free-form command output with regular
// expressions.
package textmatch

import (
	"fmt"
	"regexp"
	"sync"
)

type options struct {
	dotAll bool
	group  int
}

// Option configures a search.
type Option func(*options)

// DotAll lets "." match newlines, for multi-line blocks.
func DotAll() Option {
	return func(o *options) { o.dotAll = true }
}

// Group selects the capture group Search returns. Defaults to 1.
func Group(n int) Option {
	return func(o *options) { o.group = n }
}

var cache sync.Map

func compile(pattern string, dotAll bool) (*regexp.Regexp, error) {
	if dotAll {
		pattern = "(?s)" + pattern
	}
	if re, ok := cache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	cache.Store(pattern, re)
	return re, nil
}

// Validate reports a pattern that does not compile. Search, Matches and
// FindAll treat such a pattern as matching nothing.
func Validate(pattern string) error {
	if _, err := compile(pattern, false); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return nil
}

// Search returns the selected capture group of the first match of pattern in
// text. ok is false when there is no match, so an absent value can be told
// apart from an empty one.
func Search(pattern, text string, opts ...Option) (string, bool) {
	o := options{group: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.group < 0 {
		return "", false
	}
	re, err := compile(pattern, o.dotAll)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil || o.group >= len(m) {
		return "", false
	}
	return m[o.group], true
}

// Matches reports whether pattern matches anywhere in text.
func Matches(pattern, text string, opts ...Option) bool {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	re, err := compile(pattern, o.dotAll)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// FindAll returns the first capture group of every match of pattern in text.
func FindAll(pattern, text string) []string {
	re, err := compile(pattern, false)
	if err != nil {
		return nil
	}
	var found []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if len(m) > 1 {
			found = append(found, m[1])
		}
	}
	return found
}
