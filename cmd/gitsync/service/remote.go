package service

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/appforge/gitsync/common/cache"
	"github.com/appforge/gitsync/common/logger"
)

var sshRemotePattern = regexp.MustCompile(`^(ssh://)?([\w-]+)@([\w.-]+):(?:\d+/)?(.+?)(\.git)?$`)

// browserURLFromRemote converts an SSH remote url into its browser-visitable
// HTTPS form: git@github.com:org/repo.git -> https://github.com/org/repo
func browserURLFromRemote(remoteURL string) string {
	m := sshRemotePattern.FindStringSubmatch(strings.TrimSpace(remoteURL))
	if m == nil {
		return strings.TrimSuffix(remoteURL, ".git")
	}
	return fmt.Sprintf("https://%s/%s", m[3], m[4])
}

// repoNameFromRemote extracts the repository name from a remote url
func repoNameFromRemote(remoteURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(remoteURL), ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if idx := strings.LastIndexAny(trimmed, "/:"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// HTTPRemoteProbe detects repository visibility through a protocol-level
// HTTP request against the browser-facing url. A response that is not OK is
// treated as private: private repositories answer with 404 to anonymous
// requests on the major forges.
type HTTPRemoteProbe struct {
	client *http.Client
	cache  *cache.Cache
	log    *logger.Logger
}

// NewHTTPRemoteProbe creates a probe with the given timeout and result cache
func NewHTTPRemoteProbe(timeout time.Duration, cache *cache.Cache, log *logger.Logger) *HTTPRemoteProbe {
	return &HTTPRemoteProbe{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cache: cache,
		log:   log,
	}
}

// IsRepoPrivate probes the remote's visibility, caching results briefly so
// repeated drift checks during a burst of operations stay cheap.
func (p *HTTPRemoteProbe) IsRepoPrivate(ctx context.Context, browserURL string) (bool, error) {
	cacheKey := "repo_visibility:" + browserURL
	if p.cache != nil {
		if cached, ok := p.cache.Get(cacheKey); ok {
			return cached.(bool), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, browserURL, nil)
	if err != nil {
		return false, fmt.Errorf("build visibility probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe remote visibility: %w", err)
	}
	defer resp.Body.Close()

	isPrivate := resp.StatusCode != http.StatusOK
	p.log.Debug("probed remote visibility",
		"url", browserURL,
		"status", resp.StatusCode,
		"is_private", isPrivate)

	if p.cache != nil {
		p.cache.SetWithTTL(cacheKey, isPrivate, 5*time.Minute)
	}

	return isPrivate, nil
}
