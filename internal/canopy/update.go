package canopy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	updateCheckInterval = 24 * time.Hour
	updateCheckTimeout  = 2 * time.Second
	updateRepo          = "canopy-tools/canopy"
)

type semver struct {
	major, minor, patch int
}

// parseSemver accepts v-prefixed tags and ignores prerelease/build suffixes.
func parseSemver(value string) (semver, bool) {
	raw := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(value)), "v")
	if idx := strings.IndexAny(raw, "+-"); idx >= 0 {
		raw = raw[:idx]
	}
	parts := strings.Split(raw, ".")
	if len(parts) < 3 {
		return semver{}, false
	}
	nums := make([]int, 3)
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return semver{}, false
		}
		nums[i] = n
	}
	return semver{major: nums[0], minor: nums[1], patch: nums[2]}, true
}

func (v semver) newerThan(o semver) bool {
	if v.major != o.major {
		return v.major > o.major
	}
	if v.minor != o.minor {
		return v.minor > o.minor
	}
	return v.patch > o.patch
}

// isNewerVersion reports whether latest is a strictly newer release than
// current. Unparseable inputs never report newer.
func isNewerVersion(latest, current string) bool {
	l, ok := parseSemver(latest)
	if !ok {
		return false
	}
	c, ok := parseSemver(current)
	if !ok {
		return false
	}
	return l.newerThan(c)
}

type releaseCache struct {
	CheckedAt time.Time `json:"checked_at"`
	Latest    string    `json:"latest"`
}

func releaseCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "canopy", "update.json"), nil
}

// cachedRelease returns the remembered latest tag and whether the cache is
// still fresh enough to skip a network round trip.
func cachedRelease() (string, bool) {
	path, err := releaseCachePath()
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var cache releaseCache
	if err := json.Unmarshal(data, &cache); err != nil {
		debugLogf("update cache unreadable path=%q: %v", path, err)
		return "", false
	}
	return cache.Latest, time.Since(cache.CheckedAt) < updateCheckInterval
}

func rememberRelease(tag string) {
	path, err := releaseCachePath()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	data, err := json.Marshal(releaseCache{CheckedAt: time.Now(), Latest: tag})
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		debugLogf("update cache write failed path=%q: %v", path, err)
	}
}

func fetchLatestRelease(ctx context.Context) (string, error) {
	url := "https://api.github.com/repos/" + updateRepo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "canopy-update-check")
	resp, err := (&http.Client{Timeout: updateCheckTimeout}).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("release lookup returned %s", resp.Status)
	}

	var payload struct {
		TagName string `json:"tag_name"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	tag := strings.TrimSpace(payload.TagName)
	if tag == "" {
		return "", errors.New("release lookup returned no tag name")
	}
	return tag, nil
}

// checkForUpdate returns the latest release tag when it is newer than the
// running version. Dev builds and disabled configs never check; network
// results are cached for a day so only the first invocation pays the round
// trip.
func checkForUpdate(current string, cfg Config) (string, bool) {
	if !cfg.UpdateCheck {
		return "", false
	}
	trimmed := strings.TrimSpace(current)
	if trimmed == "" || strings.EqualFold(trimmed, "dev") {
		return "", false
	}

	latest, fresh := cachedRelease()
	if !fresh {
		ctx, cancel := context.WithTimeout(context.Background(), updateCheckTimeout)
		defer cancel()
		fetched, err := fetchLatestRelease(ctx)
		if err != nil {
			debugLogf("update check failed: %v", err)
			return "", false
		}
		latest = fetched
		rememberRelease(latest)
	}

	if latest != "" && isNewerVersion(latest, trimmed) {
		return latest, true
	}
	return "", false
}
