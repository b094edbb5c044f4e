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

package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{
		Host:       srv.URL,
		Username:   "admin",
		Password:   "secret",
		Insecure:   true,
		PrettyLogs: true,
	})
	require.NoError(t, err)
	return c
}

func TestCollectImagesWithTagsSorted(t *testing.T) {
	c := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/_catalog":
			_, _ = w.Write([]byte(`{"repositories":["proj/zeta","proj/alpha"]}`))
		case "/v2/proj/zeta/tags/list":
			_, _ = w.Write([]byte(`{"name":"proj/zeta","tags":["2.0.0","1.0.0"]}`))
		case "/v2/proj/alpha/tags/list":
			_, _ = w.Write([]byte(`{"name":"proj/alpha","tags":["b","a","c"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	images, err := c.CollectImagesWithTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Image{
		{Name: "proj/alpha", Tags: []string{"a", "b", "c"}},
		{Name: "proj/zeta", Tags: []string{"1.0.0", "2.0.0"}},
	}, images)
}

func TestCollectImagesWithTagsRetriesNotFound(t *testing.T) {
	var calls int32
	c := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/_catalog":
			if atomic.AddInt32(&calls, 1) == 1 {
				_, _ = w.Write([]byte(`{"repositories":["gone","kept"]}`))
				return
			}
			_, _ = w.Write([]byte(`{"repositories":["kept"]}`))
		case "/v2/kept/tags/list":
			_, _ = w.Write([]byte(`{"name":"kept","tags":["1"]}`))
		default:
			http.Error(w, `{"errors":[{"code":"NAME_UNKNOWN"}]}`, http.StatusNotFound)
		}
	})

	images, err := c.CollectImagesWithTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Image{{Name: "kept", Tags: []string{"1"}}}, images)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTagsNotFound(t *testing.T) {
	c := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.Tags(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.CollectImagesWithTags(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUnauthorized(t *testing.T) {
	c := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {})
	c.password = "wrong"
	_, err := c.Repositories(context.Background())
	assert.Error(t, err)
}

func TestNewClientDefaultsToHTTPS(t *testing.T) {
	c, err := NewClient(Options{Host: "registry.eo-site-a.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://registry.eo-site-a.example.com/", c.Host())
}
