// SPDX-License-Identifier: BSD-3-Clause

package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRunningBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pankha-agent")
	require.NoError(t, os.WriteFile(path, []byte("old-binary-contents"), 0o755))
	return path
}

func TestManagerApplySwapsOnHashMatch(t *testing.T) {
	dir := t.TempDir()
	binaryPath := writeRunningBinary(t, dir)

	payload := []byte("new-binary-contents")
	sum := sha256.Sum256(payload)
	expectedHash := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	mgr := NewManager(binaryPath, filepath.Join(dir, "staging"))
	err := mgr.Apply(context.Background(), Request{
		Channel:      "stable",
		Version:      "1.2.3",
		ExpectedHash: expectedHash,
		BinaryURL:    srv.URL,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(binaryPath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	oldContents, err := os.ReadFile(binaryPath + ".old")
	require.NoError(t, err)
	assert.Equal(t, []byte("old-binary-contents"), oldContents)
}

func TestManagerApplyRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	binaryPath := writeRunningBinary(t, dir)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("new-binary-contents"))
	}))
	defer srv.Close()

	mgr := NewManager(binaryPath, filepath.Join(dir, "staging"))
	err := mgr.Apply(context.Background(), Request{
		ExpectedHash: "0000000000000000000000000000000000000000000000000000000000000",
		BinaryURL:    srv.URL,
	})

	require.ErrorIs(t, err, ErrHashMismatch)

	got, err := os.ReadFile(binaryPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("old-binary-contents"), got)
	_, err = os.Stat(binaryPath + ".old")
	assert.True(t, os.IsNotExist(err))
}

func TestManagerApplyReportsDownloadFailure(t *testing.T) {
	dir := t.TempDir()
	binaryPath := writeRunningBinary(t, dir)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mgr := NewManager(binaryPath, filepath.Join(dir, "staging"))
	err := mgr.Apply(context.Background(), Request{
		ExpectedHash: "deadbeef",
		BinaryURL:    srv.URL,
	})

	require.ErrorIs(t, err, ErrDownloadFailed)
}
