// SPDX-License-Identifier: BSD-3-Clause

// Command pankha-hub is the fleet-facing server: it accepts agent and UI
// websocket connections (internal/hub/dispatcher), serves the REST control
// surface (internal/hub/rest), and owns the sqlite-backed sensor/fan
// retention store (internal/hub/retention). Configuration is entirely
// environment-driven per spec.md §8.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pankha/pankha/internal/hub/deploy"
	"github.com/pankha/pankha/internal/hub/dispatcher"
	"github.com/pankha/pankha/internal/hub/license"
	"github.com/pankha/pankha/internal/hub/profiles"
	"github.com/pankha/pankha/internal/hub/registry"
	"github.com/pankha/pankha/internal/hub/rest"
	"github.com/pankha/pankha/internal/hub/retention"
	"github.com/pankha/pankha/pkg/file"
	"github.com/pankha/pankha/pkg/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.NewDefaultLogger()

	listenAddr := envOr("PANKHA_HUB_LISTEN_ADDR", ":8080")
	dbPath := envOr("PANKHA_HUB_DB_PATH", "pankha-hub.db")
	stagingDir := envOr("PANKHA_HUB_STAGING_DIR", "pankha-staging")
	licenseTier := envOr("PANKHA_HUB_LICENSE_TIER", "free")
	basicAuth := os.Getenv("PANKHA_HUB_BASIC_AUTH")

	oracle := license.NewStaticOracle(licenseTier)

	reg := registry.New(oracle)

	store, err := retention.Open(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open retention store: %v\n", err)
		return 1
	}
	defer store.Close()

	signingKey, err := loadOrCreateSigningKey(filepath.Join(stagingDir, "deploy.key"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy signing key: %v\n", err)
		return 1
	}

	dep, err := deploy.New(stagingDir, signingKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy service: %v\n", err)
		return 1
	}

	profileEngine := profiles.New()

	disp := dispatcher.New(reg, store, logger)

	restSrv := rest.New(disp, reg, profileEngine, store, dep, logger, basicAuth)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/agent", disp.ServeAgentWS)
	mux.HandleFunc("/ws/subscriber", disp.ServeSubscriberWS)
	mux.Handle("/", restSrv.Handler())

	httpSrv := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go store.Run(ctx)
	go store.RunRollupAndPrune(ctx, oracle)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("pankha-hub listening", "addr", listenAddr)
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited", "error", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown timed out", "error", err)
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadOrCreateSigningKey reads a persisted HMAC signing key from path, or
// generates and atomically persists a new 32-byte key on first boot, so
// deployment tokens issued before a restart stay verifiable after it.
func loadOrCreateSigningKey(path string) ([]byte, error) {
	if b, err := os.ReadFile(path); err == nil {
		return b, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create signing key dir: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	if err := file.AtomicCreateFile(path, key, 0o600); err != nil {
		if errors.Is(err, file.ErrFileAlreadyExists) {
			return os.ReadFile(path)
		}
		return nil, fmt.Errorf("persist signing key: %w", err)
	}
	return key, nil
}
