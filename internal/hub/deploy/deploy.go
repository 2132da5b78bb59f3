// SPDX-License-Identifier: BSD-3-Clause

// Package deploy implements the hub's deployment service (spec.md §4.7):
// content-addressed staging of release binaries, one current staging slot
// per release channel, and signed 24h deployment tokens embedding an agent
// bootstrap config for the LAN install flow. Staging and the self-update
// download/verify contract share the same sha256 discipline as
// internal/agent/update, grounded on the same cudascope atomic-write-then-
// swap habit generalized from a single host-local file to a hub-served
// content store.
package deploy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel names a release track.
type Channel string

const (
	ChannelStable   Channel = "stable"
	ChannelUnstable Channel = "unstable"
)

const tokenTTL = 24 * time.Hour

// StagedBinary records one staged release artifact.
type StagedBinary struct {
	Channel  Channel `json:"channel"`
	Version  string  `json:"version"`
	Hash     string  `json:"hash"` // hex sha256, matches wire.SelfUpdatePayload.Hash
	Platform string  `json:"platform"`
	Arch     string  `json:"arch"`
	Path     string  `json:"-"`
	StagedAt int64   `json:"stagedAt"`
}

// BootstrapConfig is the agent configuration embedded in a deployment token,
// letting a fresh install reach the hub without any manual config step.
type BootstrapConfig struct {
	ServerURL string `json:"serverUrl"`
	AgentName string `json:"agentName,omitempty"`
}

// tokenPayload is the signed portion of a deployment token.
type tokenPayload struct {
	Bootstrap BootstrapConfig `json:"bootstrap"`
	IssuedAt  int64           `json:"issuedAt"`
	ExpiresAt int64           `json:"expiresAt"`
	Nonce     string          `json:"nonce"`
}

// Service is the hub's deployment service: binary staging plus token
// issuance/verification.
type Service struct {
	stagingDir string
	signingKey []byte

	mu     sync.RWMutex
	staged map[Channel]StagedBinary
}

// New creates a Service rooted at stagingDir (created if missing), signing
// deployment tokens with signingKey.
func New(stagingDir string, signingKey []byte) (*Service, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %w", ErrStageFailed, err)
	}
	return &Service{
		stagingDir: stagingDir,
		signingKey: signingKey,
		staged:     make(map[Channel]StagedBinary),
	}, nil
}

// Stage reads a release artifact from r, writes it under a content-addressed
// path, and records it as the current staged binary for channel — replacing
// whatever was staged there before (spec.md §4.7 "one current-staged binary
// per channel; staging another replaces the previous").
func (s *Service) Stage(channel Channel, platform, arch, version string, r io.Reader) (StagedBinary, error) {
	tmp, err := os.CreateTemp(s.stagingDir, "stage-*.tmp")
	if err != nil {
		return StagedBinary{}, fmt.Errorf("%w: create temp file: %w", ErrStageFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		tmp.Close()
		return StagedBinary{}, fmt.Errorf("%w: write artifact: %w", ErrStageFailed, err)
	}
	tmp.Close()

	hash := fmt.Sprintf("%x", hasher.Sum(nil))
	finalPath := filepath.Join(s.stagingDir, hash+".bin")
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		if err := os.Rename(tmpPath, finalPath); err != nil {
			return StagedBinary{}, fmt.Errorf("%w: move into place: %w", ErrStageFailed, err)
		}
	}

	staged := StagedBinary{
		Channel: channel, Version: version, Hash: hash,
		Platform: platform, Arch: arch, Path: finalPath, StagedAt: time.Now().Unix(),
	}

	s.mu.Lock()
	prev, hadPrev := s.staged[channel]
	s.staged[channel] = staged
	s.mu.Unlock()

	if hadPrev && prev.Hash != staged.Hash {
		s.pruneIfUnreferenced(prev.Hash)
	}

	return staged, nil
}

// pruneIfUnreferenced removes a content-addressed file no channel points to
// anymore.
func (s *Service) pruneIfUnreferenced(hash string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, staged := range s.staged {
		if staged.Hash == hash {
			return
		}
	}
	os.Remove(filepath.Join(s.stagingDir, hash+".bin"))
}

// Current returns the binary currently staged for channel.
func (s *Service) Current(channel Channel) (StagedBinary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	staged, ok := s.staged[channel]
	if !ok {
		return StagedBinary{}, fmt.Errorf("%w: %s", ErrChannelUnknown, channel)
	}
	return staged, nil
}

// Open returns a reader over the binary staged for channel, alongside its
// metadata, for the hub's /api/deploy/binary handler.
func (s *Service) Open(channel Channel) (io.ReadCloser, StagedBinary, error) {
	staged, err := s.Current(channel)
	if err != nil {
		return nil, StagedBinary{}, err
	}
	f, err := os.Open(staged.Path)
	if err != nil {
		return nil, StagedBinary{}, fmt.Errorf("%w: open staged binary: %w", ErrStageFailed, err)
	}
	return f, staged, nil
}

// IssueToken signs a deployment token embedding bootstrap, valid for 24h.
// A plain HMAC-signed payload is the narrower, dependency-free fit for a
// single-signer, single-audience token than a JWT library would be: there
// is no operator/nkey identity model here to justify one, just a hub
// signing a token for an agent it already trusts.
func (s *Service) IssueToken(bootstrap BootstrapConfig) (string, error) {
	now := time.Now()
	payload := tokenPayload{
		Bootstrap: bootstrap,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenTTL).Unix(),
		Nonce:     uuid.NewString(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}
	encodedBody := base64.RawURLEncoding.EncodeToString(body)

	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(encodedBody))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return encodedBody + "." + sig, nil
}

// VerifyToken checks a token's signature and expiry, returning the embedded
// bootstrap config.
func (s *Service) VerifyToken(token string) (BootstrapConfig, error) {
	dot := -1
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return BootstrapConfig{}, ErrTokenInvalid
	}
	encodedBody, sig := token[:dot], token[dot+1:]

	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(encodedBody))
	expectedSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expectedSig)) {
		return BootstrapConfig{}, ErrTokenInvalid
	}

	body, err := base64.RawURLEncoding.DecodeString(encodedBody)
	if err != nil {
		return BootstrapConfig{}, fmt.Errorf("%w: decode payload: %w", ErrTokenInvalid, err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return BootstrapConfig{}, fmt.Errorf("%w: decode payload: %w", ErrTokenInvalid, err)
	}

	if time.Now().Unix() > payload.ExpiresAt {
		return BootstrapConfig{}, ErrTokenExpired
	}

	return payload.Bootstrap, nil
}
