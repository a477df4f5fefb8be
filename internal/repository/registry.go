package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultRegistryURL is the PyPI JSON API root.
	DefaultRegistryURL = "https://pypi.org/pypi"
	registryRetries    = 3
	registryRetryDelay = 500 * time.Millisecond
)

// PackageInfo is what the registry knows about one package.
type PackageInfo struct {
	Exists   bool
	Versions []string
}

// numericRelease is a release segment with nothing PEP 440 could reorder.
var numericRelease = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Published reports whether version was uploaded. The registry lists
// normalized versions (2027.00001 appears as 2027.1), so purely numeric
// versions compare by value.
func (p PackageInfo) Published(version string) bool {
	want, err := domain.NewVersion(version)
	numeric := err == nil && numericRelease.MatchString(want.String())
	for _, v := range p.Versions {
		if v == version {
			return true
		}
		if !numeric || !numericRelease.MatchString(v) {
			continue
		}
		if got, err := domain.NewVersion(v); err == nil && got.Equal(want) {
			return true
		}
	}
	return false
}

// RegistryRepository queries the package registry.
type RegistryRepository interface {
	Package(ctx context.Context, name string) (PackageInfo, error)
}

type registryRepository struct {
	baseURL string
	client  *http.Client
	delay   time.Duration
}

// NewRegistryRepository creates a client for a PyPI-compatible JSON API.
func NewRegistryRepository(baseURL string, client *http.Client) RegistryRepository {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &registryRepository{baseURL: strings.TrimRight(baseURL, "/"), client: client, delay: registryRetryDelay}
}

type registryDocument struct {
	Releases map[string]json.RawMessage `json:"releases"`
}

// Package fetches {base}/{name}/json. A 404 means the package was never published.
func (r *registryRepository) Package(ctx context.Context, name string) (PackageInfo, error) {
	var info PackageInfo
	backoff := retry.WithMaxRetries(registryRetries, retry.NewExponential(r.delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		info, err = r.fetch(ctx, name)
		return err
	})
	if err != nil {
		return PackageInfo{}, fmt.Errorf("failed to query registry for %s: %w", name, err)
	}
	return info, nil
}

func (r *registryRepository) fetch(ctx context.Context, name string) (PackageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+name+"/json", nil)
	if err != nil {
		return PackageInfo{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return PackageInfo{}, retry.RetryableError(err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return PackageInfo{}, nil
	case resp.StatusCode >= 500:
		return PackageInfo{}, retry.RetryableError(fmt.Errorf("registry returned %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return PackageInfo{}, fmt.Errorf("registry returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PackageInfo{}, retry.RetryableError(err)
	}
	var doc registryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return PackageInfo{}, fmt.Errorf("failed to decode registry response: %w", err)
	}
	info := PackageInfo{Exists: true}
	for v := range doc.Releases {
		info.Versions = append(info.Versions, v)
	}
	return info, nil
}
