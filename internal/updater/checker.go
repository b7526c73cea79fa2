// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package updater notifies about newer fwsign releases. Signing keys
// and service contracts evolve with the build infrastructure, so stale
// tool versions are worth flagging — but never at the cost of blocking
// or failing a signing run.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/dotandev/fwsign/internal/config"
)

const (
	// ReleaseAPIURL is the endpoint for fetching the latest release.
	ReleaseAPIURL = "https://api.github.com/repos/dotandev/fwsign/releases/latest"
	// CheckInterval is how often we check for updates.
	CheckInterval = 24 * time.Hour
	// RequestTimeout is the maximum time to wait for the release API.
	RequestTimeout = 5 * time.Second
)

// Checker handles update checking logic.
type Checker struct {
	currentVersion string
	apiURL         string
	cacheDir       string
}

// GitHubRelease is the slice of the release API response we read.
type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

// CacheData stores the last check timestamp and latest version.
type CacheData struct {
	LastCheck     time.Time `json:"last_check"`
	LatestVersion string    `json:"latest_version"`
}

// NewChecker creates an update checker for the given running version.
func NewChecker(currentVersion string) *Checker {
	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	return &Checker{currentVersion: currentVersion, apiURL: ReleaseAPIURL, cacheDir: dir}
}

// CheckForUpdates checks at most once per CheckInterval and prints a
// notice to stderr when a newer release exists. Every failure is
// silent; an update check must never interfere with signing.
func (c *Checker) CheckForUpdates() {
	if os.Getenv("FWSIGN_NO_UPDATE_CHECK") != "" {
		return
	}
	if !c.shouldCheck() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	latest, err := c.fetchLatestVersion(ctx)
	if err != nil {
		return
	}
	_ = c.updateCache(latest)

	newer, err := c.isNewer(latest)
	if err != nil || !newer {
		return
	}
	fmt.Fprintf(os.Stderr, "\nA new fwsign version (%s) is available. Run 'go install github.com/dotandev/fwsign/cmd/fwsign@latest' to update.\n\n", latest)
}

func (c *Checker) shouldCheck() bool {
	data, err := os.ReadFile(filepath.Join(c.cacheDir, "last_update_check"))
	if err != nil {
		return true
	}
	var cache CacheData
	if err := json.Unmarshal(data, &cache); err != nil {
		return true
	}
	return time.Since(cache.LastCheck) >= CheckInterval
}

func (c *Checker) fetchLatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "fwsign-cli")
	req.Header.Set("Accept", "application/vnd.github+json")

	client := &http.Client{Timeout: RequestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", err
	}
	return release.TagName, nil
}

// isNewer reports whether latest is strictly greater than the running
// version. Dev builds never prompt.
func (c *Checker) isNewer(latest string) (bool, error) {
	current := strings.TrimPrefix(c.currentVersion, "v")
	latest = strings.TrimPrefix(latest, "v")

	if current == "dev" || current == "" {
		return false, nil
	}

	currentVer, err := version.NewVersion(current)
	if err != nil {
		return false, err
	}
	latestVer, err := version.NewVersion(latest)
	if err != nil {
		return false, err
	}
	return latestVer.GreaterThan(currentVer), nil
}

func (c *Checker) updateCache(latest string) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(CacheData{LastCheck: time.Now(), LatestVersion: latest})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.cacheDir, "last_update_check"), data, 0o644)
}
