package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/gitsync/common/cache"
	"github.com/appforge/gitsync/common/logger"
)

func TestBrowserURLFromRemote(t *testing.T) {
	cases := map[string]string{
		"git@github.com:acme/storefront.git":        "https://github.com/acme/storefront",
		"git@gitlab.com:acme/nested/storefront.git": "https://gitlab.com/acme/nested/storefront",
		"ssh://git@bitbucket.org:22/acme/app.git":   "https://bitbucket.org/acme/app",
		"https://github.com/acme/storefront.git":    "https://github.com/acme/storefront",
	}
	for remote, want := range cases {
		assert.Equal(t, want, browserURLFromRemote(remote), "remote %s", remote)
	}
}

func TestRepoNameFromRemote(t *testing.T) {
	cases := map[string]string{
		"git@github.com:acme/storefront.git":     "storefront",
		"https://github.com/acme/storefront.git": "storefront",
		"git@gitlab.com:acme/nested/deep.git":    "deep",
	}
	for remote, want := range cases {
		assert.Equal(t, want, repoNameFromRemote(remote), "remote %s", remote)
	}
}

func TestHTTPRemoteProbe(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/acme/private" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log := logger.New("error", "json")
	probe := NewHTTPRemoteProbe(2*time.Second, cache.New(time.Minute, log), log)

	private, err := probe.IsRepoPrivate(context.Background(), srv.URL+"/acme/public")
	require.NoError(t, err)
	assert.False(t, private)

	private, err = probe.IsRepoPrivate(context.Background(), srv.URL+"/acme/private")
	require.NoError(t, err)
	assert.True(t, private)

	// Second probe of the same url is served from the cache.
	before := hits
	_, err = probe.IsRepoPrivate(context.Background(), srv.URL+"/acme/private")
	require.NoError(t, err)
	assert.Equal(t, before, hits)
}

func TestHTTPRemoteProbe_Unreachable(t *testing.T) {
	log := logger.New("error", "json")
	probe := NewHTTPRemoteProbe(200*time.Millisecond, nil, log)

	_, err := probe.IsRepoPrivate(context.Background(), "http://127.0.0.1:1/acme/app")
	assert.Error(t, err)
}
