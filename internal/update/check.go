// Package update checks GitHub for a newer bastet release.
package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Repo is the GitHub repository bastet is released from.
const Repo = "mewbotorg/bastet"

// Result holds the outcome of a version check.
type Result struct {
	Latest    string // e.g. "v0.4.0"
	Current   string
	UpdateURL string // "go install github.com/mewbotorg/bastet/cmd/bastet@latest"
}

// NeedsUpdate reports whether Latest differs from Current, ignoring a
// leading "v". Development builds never need an update.
func (r *Result) NeedsUpdate() bool {
	if r.Current == "dev" {
		return false
	}
	return strings.TrimPrefix(r.Latest, "v") != strings.TrimPrefix(r.Current, "v")
}

// defaultBaseURL is the GitHub API base URL, overridable for testing.
var defaultBaseURL = "https://api.github.com"

// CheckLatest asks the GitHub Releases API for the latest release of repo.
// It returns nil for development builds and on any failure; the check must
// never get in the way of a run.
func CheckLatest(ctx context.Context, currentVersion, repo string) *Result {
	if currentVersion == "dev" {
		return nil
	}
	return checkLatestWithBase(ctx, defaultBaseURL, currentVersion, repo)
}

func checkLatestWithBase(ctx context.Context, baseURL, currentVersion, repo string) *Result {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/releases/latest", baseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || !gjson.ValidBytes(body) {
		return nil
	}
	tag := gjson.GetBytes(body, "tag_name").String()
	if tag == "" {
		return nil
	}

	return &Result{
		Latest:    tag,
		Current:   currentVersion,
		UpdateURL: fmt.Sprintf("go install github.com/%s/cmd/bastet@latest", repo),
	}
}
