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

// Package registry reads image inventories through the Docker Registry HTTP
// API V2.
package registry

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"k8s.io/client-go/util/retry"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

const (
	repositoriesPath = "v2/_catalog"
	tagsPath         = "v2/%s/tags/list"
	requestTimeout   = 10 * time.Second
)

// ErrNotFound is returned when the registry answers 404.
var ErrNotFound = errors.New("registry resource is not found")

// Image is a repository with its tags.
type Image struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Options configures a Client.
type Options struct {
	Host     string
	Username string
	Password string
	// Insecure disables TLS certificate verification.
	Insecure bool
	// PrettyLogs indents JSON responses in debug logs.
	PrettyLogs bool
	// Transport overrides the default transport, used by tests.
	Transport http.RoundTripper
}

// Client is a Docker Registry V2 API client using basic authentication.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	prettyLogs bool
	httpClient *http.Client
}

// NewClient returns a client for opts.Host. A host without scheme gets
// https.
func NewClient(opts Options) (*Client, error) {
	host := opts.Host
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}
	baseURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid registry host %q: %w", opts.Host, err)
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		//nolint:gosec
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.Insecure}
		transport = t
	}
	return &Client{
		baseURL:    baseURL,
		username:   opts.Username,
		password:   opts.Password,
		prettyLogs: opts.PrettyLogs,
		httpClient: &http.Client{Transport: transport, Timeout: requestTimeout},
	}, nil
}

// Host returns the registry base URL.
func (c *Client) Host() string {
	return c.baseURL.String()
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	log := logger.GetLogger(ctx)
	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	u := c.baseURL.ResolveReference(ref)
	log.Debugf("Sending GET request to %s", u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response of GET %s: %w", u, err)
	}
	log.Debugf("Status code: %d\nContent: %s", resp.StatusCode, c.formatBody(body))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s: %s", ErrNotFound, u, strings.TrimSpace(string(body)))
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("GET %s returned %s", u, resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response of GET %s: %w", u, err)
	}
	return nil
}

func (c *Client) formatBody(body []byte) string {
	if !c.prettyLogs {
		return string(body)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "    "); err != nil {
		return string(body)
	}
	return buf.String()
}

// Repositories returns all repositories of the registry.
func (c *Client) Repositories(ctx context.Context) ([]string, error) {
	logger.GetLogger(ctx).Infof("Getting all repositories from the %q registry", c.Host())
	var catalog struct {
		Repositories []string `json:"repositories"`
	}
	if err := c.get(ctx, repositoriesPath, &catalog); err != nil {
		return nil, err
	}
	return catalog.Repositories, nil
}

// Tags returns the tags of repository.
func (c *Client) Tags(ctx context.Context, repository string) (Image, error) {
	logger.GetLogger(ctx).Infof("Getting tags for repository (image) %q", repository)
	var image Image
	if err := c.get(ctx, fmt.Sprintf(tagsPath, repository), &image); err != nil {
		return Image{}, err
	}
	if image.Name == "" {
		image.Name = repository
	}
	return image, nil
}

// CollectImagesWithTags returns every repository with its sorted tags,
// sorted by name. The whole collection is retried when a repository
// disappears while being read.
func (c *Client) CollectImagesWithTags(ctx context.Context) ([]Image, error) {
	log := logger.GetLogger(ctx)
	var images []Image
	err := retry.OnError(retry.DefaultBackoff, func(err error) bool {
		if errors.Is(err, ErrNotFound) {
			log.Warnf("Registry %q changed while collecting images, retrying: %v", c.Host(), err)
			return true
		}
		return false
	}, func() error {
		images = nil
		repositories, err := c.Repositories(ctx)
		if err != nil {
			return err
		}
		for _, repo := range repositories {
			image, err := c.Tags(ctx, repo)
			if err != nil {
				return err
			}
			sort.Strings(image.Tags)
			images = append(images, image)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}
