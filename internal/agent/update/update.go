// SPDX-License-Identifier: BSD-3-Clause

// Package update implements the agent side of the self-update flow
// (spec.md §4.7): pull a staged binary from the hub over the LAN, verify
// its sha256 against the hash the hub commanded, and swap it into place
// for the service manager to restart. The HTTP client is wrapped with
// otelhttp, matching u-bmc's instrumented-transport convention for any
// outbound HTTP call.
package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request is the decoded selfUpdate command payload plus the resolved
// download URL (the hub's LAN address, not the public release source,
// per spec.md §4.7).
type Request struct {
	Channel      string
	Version      string
	ExpectedHash string
	BinaryURL    string
}

// Manager executes the download-verify-swap flow for the running binary.
type Manager struct {
	client       *http.Client
	binaryPath   string
	stagingDir   string
}

// NewManager creates a Manager that will replace the binary at binaryPath.
// Downloads are staged under stagingDir before the verified swap.
func NewManager(binaryPath, stagingDir string) *Manager {
	return &Manager{
		client:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		binaryPath: binaryPath,
		stagingDir: stagingDir,
	}
}

// Apply downloads the binary named by req, verifies its hash, and swaps it
// into place. On any failure before the swap the running binary is left
// untouched, matching the "running binary is never replaced on partial
// failure" contract in spec.md §4.7.
func (m *Manager) Apply(ctx context.Context, req Request) error {
	if err := os.MkdirAll(m.stagingDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStagingDir, err)
	}

	staged := filepath.Join(m.stagingDir, fmt.Sprintf("pankha-agent-%s.download", req.Version))
	hash, err := m.download(ctx, req.BinaryURL, staged)
	if err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	if hash != req.ExpectedHash {
		_ = os.Remove(staged)
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, req.ExpectedHash, hash)
	}

	if err := m.swap(staged); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("%w: %w", ErrSwapFailed, err)
	}

	return nil
}

// download streams url into destPath, returning the hex sha256 of the
// bytes written. The destination file is created with executable
// permissions so the subsequent rename needs no further chmod.
func (m *Manager) download(ctx context.Context, url, destPath string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return "", err
	}
	defer out.Close()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), resp.Body); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// swap renames the currently running binary to "<name>.old" and moves the
// staged, verified binary into its place. Re-exec/restart is left to the
// service manager, per spec.md §4.7's "the exact mechanism is
// platform-specific" note.
func (m *Manager) swap(stagedPath string) error {
	oldPath := m.binaryPath + ".old"
	if err := os.Rename(m.binaryPath, oldPath); err != nil {
		return err
	}
	if err := os.Rename(stagedPath, m.binaryPath); err != nil {
		_ = os.Rename(oldPath, m.binaryPath)
		return err
	}
	return nil
}
