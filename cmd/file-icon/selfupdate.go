package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"

	"github.com/minio/selfupdate"
	"github.com/ulikunitz/xz"
	"golang.org/x/mod/semver"
)

// releaseAssetURL returns the download URL of the compressed binary for the
// current platform.
func releaseAssetURL(release string) string {
	ext := "xz"
	if runtime.GOOS == "windows" {
		ext = "exe.xz"
	}
	return fmt.Sprintf(
		"https://github.com/%s/releases/download/%s/file-icon-%s-%s.%s",
		GithubRepo, release, runtime.GOOS, runtime.GOARCH, ext,
	)
}

func httpGet(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s returned HTTP %d", url, resp.StatusCode)
	}
	return resp, nil
}

func selfUpdate(ctx context.Context, out io.Writer) error {
	fmt.Fprintf(out, "Current version: %s-%s\n", Version, CommitHash)

	// Fetch latest release from GitHub API.
	resp, err := httpGet(ctx, fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", GithubRepo))
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}
	defer resp.Body.Close()

	var release struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return fmt.Errorf("parse release info: %w", err)
	}

	latestRelease := release.Name
	fmt.Fprintf(out, "Latest release: %s\n", latestRelease)

	switch semver.Compare(latestRelease, Version) {
	case -1:
		fmt.Fprintln(out, "You have a newer version than the latest release.")
		return nil
	case 0:
		fmt.Fprintln(out, "Already up to date.")
		return nil
	case 1:
		fmt.Fprintln(out, "New version available, upgrading...")
		if Version == "v0.0.0" {
			fmt.Fprint(out, "Development build detected, press Enter to proceed: ")
			bufio.NewReader(os.Stdin).ReadBytes('\n')
		}
	}

	downloadURL := releaseAssetURL(latestRelease)

	opts := selfupdate.Options{}
	if err := opts.CheckPermissions(); err != nil {
		fmt.Fprintf(out, "Cannot update in place (permission denied).\nDownload manually: %s\n", downloadURL)
		return nil
	}

	fmt.Fprintf(out, "Downloading %s...\n", downloadURL)
	dlResp, err := httpGet(ctx, downloadURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer dlResp.Body.Close()

	r, err := xz.NewReader(dlResp.Body)
	if err != nil {
		return fmt.Errorf("xz decompression: %w", err)
	}

	if err := selfupdate.Apply(r, opts); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	fmt.Fprintf(out, "Updated to %s successfully.\n", latestRelease)
	return nil
}
