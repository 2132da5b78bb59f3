// SPDX-License-Identifier: BSD-3-Clause

// Package rest implements the hub's REST surface (spec.md §6): fleet
// listing, per-fan and per-agent configuration commands routed through
// internal/hub/dispatcher, profile library management, sensor history
// queries against internal/hub/retention, and the self-update deployment
// endpoints backed by internal/hub/deploy. Routing follows cudascope's
// internal/api/server.go: a bare stdlib http.ServeMux, manual path-segment
// parsing for resources with path parameters, and writeJSON/httpError
// helpers rather than a router framework. CORS is handled by rs/cors, the
// same library u-bmc's websrv wraps its router in.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/pankha/pankha/internal/hub/deploy"
	"github.com/pankha/pankha/internal/hub/dispatcher"
	"github.com/pankha/pankha/internal/hub/profiles"
	"github.com/pankha/pankha/internal/hub/registry"
	"github.com/pankha/pankha/internal/hub/retention"
	"github.com/pankha/pankha/pkg/wire"
)

// maxBodyBytes enforces spec.md §6's "413 on payload > 1 MiB".
const maxBodyBytes = 1 << 20

// commandConcurrency bounds how many REST-issued commands may be awaiting
// an agent round trip at once; a request arriving once the gate is full
// gets 429 rather than queuing indefinitely, per spec.md §6's "429 under
// backpressure".
const commandConcurrency = 64

// commandRequestTimeout bounds a single REST-issued command's wait beyond
// dispatcher.SendCommand's own round-trip timeout, so a client never hangs
// past this regardless of server-side timer granularity.
const commandRequestTimeout = 12 * time.Second

// Server is the hub's REST API: a thin routing layer over the fleet
// registry, dispatcher, profile engine, retention store, and deployment
// service.
type Server struct {
	dispatcher *dispatcher.Hub
	registry   *registry.Registry
	profiles   *profiles.Engine
	retention  *retention.Store // nil if retention is not configured
	deploy     *deploy.Service
	logger     *slog.Logger
	mux        *http.ServeMux

	commandSem chan struct{}

	// authUser/authPass enable optional HTTP basic auth, mirroring
	// cudascope's server.go; empty authUser disables it.
	authUser string
	authPass string
}

// New builds a Server and registers its routes. ret may be nil in
// deployments that run without a retention sink.
func New(disp *dispatcher.Hub, reg *registry.Registry, profileEngine *profiles.Engine, ret *retention.Store, dep *deploy.Service, logger *slog.Logger, basicAuth string) *Server {
	s := &Server{
		dispatcher: disp,
		registry:   reg,
		profiles:   profileEngine,
		retention:  ret,
		deploy:     dep,
		logger:     logger,
		mux:        http.NewServeMux(),
		commandSem: make(chan struct{}, commandConcurrency),
	}
	if basicAuth != "" {
		if parts := strings.SplitN(basicAuth, ":", 2); len(parts) == 2 {
			s.authUser, s.authPass = parts[0], parts[1]
		}
	}
	s.routes()
	return s
}

// Handler returns the fully wrapped http.Handler (CORS, optional basic
// auth, request-body cap) for callers to mount on an *http.Server.
func (s *Server) Handler() http.Handler {
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return corsMiddleware.Handler(s.middleware(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/systems", s.handleSystems)
	s.mux.HandleFunc("/api/systems/", s.handleSystemRoute)
	s.mux.HandleFunc("/api/profiles", s.handleProfilesRoot)
	s.mux.HandleFunc("/api/profiles/export", s.handleProfilesExport)
	s.mux.HandleFunc("/api/profiles/import", s.handleProfilesImport)
	s.mux.HandleFunc("/api/profiles/", s.handleProfileRoute)
	s.mux.HandleFunc("/api/deploy/linux", s.handleDeployLinux)
	s.mux.HandleFunc("/api/deploy/binary", s.handleDeployBinary)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authUser != "" && r.URL.Path != "/health" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.authUser || pass != s.authPass {
				w.Header().Set("WWW-Authenticate", `Basic realm="Pankha"`)
				httpError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// systemView is the REST-facing projection of a registry.Entry.
type systemView struct {
	AgentID  string               `json:"agentId"`
	Name     string               `json:"name"`
	Platform string               `json:"platform"`
	Version  string               `json:"version"`
	Status   string               `json:"status"`
	LastSeen int64                `json:"lastSeen"`
	Sensors  []wire.SensorReading `json:"sensors"`
	Fans     []wire.FanReading    `json:"fans"`
}

func toSystemView(e registry.Entry) systemView {
	sensors := make([]wire.SensorReading, 0, len(e.LastSensors))
	for _, s := range e.LastSensors {
		sensors = append(sensors, s)
	}
	fans := make([]wire.FanReading, 0, len(e.LastFans))
	for _, f := range e.LastFans {
		fans = append(fans, f)
	}
	return systemView{
		AgentID: e.AgentID, Name: e.Name, Platform: e.Platform, Version: e.Version,
		Status: string(e.Status()), LastSeen: e.LastSeen.UnixMilli(),
		Sensors: sensors, Fans: fans,
	}
}

func (s *Server) handleSystems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries := s.registry.List()
	out := make([]systemView, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSystemView(e))
	}
	writeJSON(w, out)
}

// handleSystemRoute dispatches every /api/systems/{id}/... sub-resource.
func (s *Server) handleSystemRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/systems/"), "/")
	if rest == "" {
		httpError(w, "missing system id", http.StatusBadRequest)
		return
	}
	parts := strings.Split(rest, "/")
	agentID := parts[0]

	switch {
	case len(parts) == 1:
		s.handleSystemGet(w, r, agentID)
	case len(parts) == 3 && parts[1] == "fans":
		s.handleFanSpeed(w, r, agentID, parts[2])
	case len(parts) == 4 && parts[1] == "fans" && parts[3] == "profile":
		s.handleFanProfile(w, r, agentID, parts[2])
	case len(parts) == 2 && parts[1] == "emergency-stop":
		s.handleSimpleCommand(w, r, agentID, wire.CommandEmergencyStop, nil)
	case len(parts) == 2 && parts[1] == "clear-emergency":
		s.handleSimpleCommand(w, r, agentID, wire.CommandClearEmergency, nil)
	case len(parts) == 3 && parts[1] == "config":
		s.handleConfig(w, r, agentID, parts[2])
	case len(parts) == 2 && parts[1] == "self-update":
		s.handleSelfUpdate(w, r, agentID)
	case len(parts) == 4 && parts[1] == "sensors" && parts[3] == "history":
		s.handleSensorHistory(w, r, agentID, parts[2])
	default:
		httpError(w, "unknown resource", http.StatusNotFound)
	}
}

func (s *Server) handleSystemGet(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodGet {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entry, err := s.registry.Get(agentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, toSystemView(entry))
}

func (s *Server) handleFanSpeed(w http.ResponseWriter, r *http.Request, agentID, fanID string) {
	if r.Method != http.MethodPut {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Speed int `json:"speed"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.issueCommand(w, r, agentID, wire.CommandSetFanSpeed, wire.SetFanSpeedPayload{FanID: fanID, Speed: body.Speed})
}

func (s *Server) handleFanProfile(w http.ResponseWriter, r *http.Request, agentID, fanID string) {
	if r.Method != http.MethodPut {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ProfileID string `json:"profileId"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.profiles.Get(body.ProfileID); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.AssignProfile(agentID, fanID, body.ProfileID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"agentId": agentID, "fanId": fanID, "profileId": body.ProfileID})
}

func (s *Server) handleSimpleCommand(w http.ResponseWriter, r *http.Request, agentID, command string, payload any) {
	if r.Method != http.MethodPost {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.issueCommand(w, r, agentID, command, payload)
}

// handleConfig maps a REST-friendly setting name onto its wire command and
// typed payload (spec.md §6 "configuration endpoints under
// /api/systems/:id/...").
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request, agentID, setting string) {
	if r.Method != http.MethodPut {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var command string
	var payload any
	switch setting {
	case "update-interval":
		var body wire.SetUpdateIntervalPayload
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		command, payload = wire.CommandSetUpdateInterval, body
	case "sensor-deduplication":
		var body wire.SetSensorDeduplicationPayload
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		command, payload = wire.CommandSetSensorDeduplication, body
	case "sensor-tolerance":
		var body wire.SetSensorTolerancePayload
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		command, payload = wire.CommandSetSensorTolerance, body
	case "fan-step":
		var body wire.SetFanStepPayload
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		command, payload = wire.CommandSetFanStep, body
	case "hysteresis":
		var body wire.SetHysteresisPayload
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		command, payload = wire.CommandSetHysteresis, body
	case "emergency-temp":
		var body wire.SetEmergencyTempPayload
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		command, payload = wire.CommandSetEmergencyTemp, body
	case "log-level":
		var body wire.SetLogLevelPayload
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		command, payload = wire.CommandSetLogLevel, body
	default:
		httpError(w, fmt.Sprintf("unknown config setting %q", setting), http.StatusNotFound)
		return
	}

	s.issueCommand(w, r, agentID, command, payload)
}

func (s *Server) handleSelfUpdate(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body wire.SelfUpdatePayload
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.registry.MarkUpdating(r.Context(), agentID); err != nil {
		s.writeError(w, err)
		return
	}
	s.issueCommand(w, r, agentID, wire.CommandSelfUpdate, body)
}

func (s *Server) handleSensorHistory(w http.ResponseWriter, r *http.Request, agentID, sensorID string) {
	if r.Method != http.MethodGet {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.retention == nil {
		httpError(w, "retention sink not configured", http.StatusServiceUnavailable)
		return
	}
	since, until := parseTimeRange(r)
	points, err := s.retention.QuerySensorHistory(r.Context(), agentID, sensorID, since, until)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, points)
}

func parseTimeRange(r *http.Request) (since, until int64) {
	until = time.Now().Unix()
	if v := r.URL.Query().Get("until"); v != "" {
		if t, err := strconv.ParseInt(v, 10, 64); err == nil {
			until = t
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := strconv.ParseInt(v, 10, 64); err == nil {
			since = t
		}
	}
	return since, until
}

// issueCommand runs a command through the bounded concurrency gate and the
// dispatcher's round-trip, translating the outcome into an HTTP response.
func (s *Server) issueCommand(w http.ResponseWriter, r *http.Request, agentID, command string, payload any) {
	select {
	case s.commandSem <- struct{}{}:
		defer func() { <-s.commandSem }()
	default:
		s.writeError(w, ErrTooManyInFlight)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandRequestTimeout)
	defer cancel()

	resp, err := s.dispatcher.SendCommand(ctx, agentID, command, payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success": resp.Success,
		"data":    resp.Data,
		"error":   resp.Error,
	})
}

func (s *Server) handleProfilesRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.profiles.List())
	case http.MethodPost:
		var body struct {
			Name  string                  `json:"name"`
			Type  profiles.ProfileType    `json:"type"`
			Curve []profiles.CurvePoint   `json:"curve"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		p, err := s.profiles.Create(body.Name, body.Type, body.Curve)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, p)
	default:
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleProfileRoute dispatches /api/profiles/{id} and /api/profiles/{id}/clone.
func (s *Server) handleProfileRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/profiles/"), "/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		httpError(w, "missing profile id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		p, err := s.profiles.Get(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, p)
	case len(parts) == 2 && parts[1] == "clone" && r.Method == http.MethodPost:
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		p, err := s.profiles.Clone(id, body.Name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, p)
	default:
		httpError(w, "unknown resource", http.StatusNotFound)
	}
}

func (s *Server) handleProfilesExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var ids []string
	if v := r.URL.Query().Get("ids"); v != "" {
		ids = strings.Split(v, ",")
	}
	doc, err := s.profiles.Export(ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

func (s *Server) handleProfilesImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: read body: %w", ErrBadRequest, err))
		return
	}
	policy := profiles.ConflictPolicy(r.URL.Query().Get("policy"))
	if policy == "" {
		policy = profiles.ConflictSkip
	}
	imported, err := s.profiles.Import(body, policy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, imported)
}

func (s *Server) handleDeployLinux(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		httpError(w, "missing token", http.StatusBadRequest)
		return
	}
	bootstrap, err := s.deploy.VerifyToken(token)
	if err != nil {
		s.writeError(w, err)
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = string(deploy.ChannelStable)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	binaryURL := fmt.Sprintf("%s://%s/api/deploy/binary?channel=%s", scheme, r.Host, channel)

	script, err := deploy.RenderLinuxInstallScript(bootstrap, binaryURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-shellscript")
	w.Write(script)
}

func (s *Server) handleDeployBinary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = string(deploy.ChannelStable)
	}
	rc, staged, err := s.deploy.Open(deploy.Channel(channel))
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="pankha-agent-%s"`, staged.Version))
	w.Header().Set("X-Pankha-Binary-Hash", staged.Hash)
	io.Copy(w, rc)
}

// decodeBody decodes a JSON request body, translating the MaxBytesReader
// overflow sentinel into ErrBadRequest's 413 sibling handled by writeError.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("%w: request body exceeds %d bytes", errPayloadTooLarge, maxBodyBytes)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// errPayloadTooLarge is a private sentinel so writeError can map it to 413
// without exporting a symbol nothing outside this package needs to match.
var errPayloadTooLarge = errors.New("rest: payload too large")

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPayloadTooLarge):
		httpError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, dispatcher.ErrCommandConflict):
		httpError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrTooManyInFlight):
		httpError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, dispatcher.ErrCommandTimeout):
		httpError(w, err.Error(), http.StatusGatewayTimeout)
	case errors.Is(err, dispatcher.ErrAgentOffline),
		errors.Is(err, registry.ErrAgentNotFound),
		errors.Is(err, profiles.ErrProfileNotFound),
		errors.Is(err, deploy.ErrChannelUnknown):
		httpError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, deploy.ErrTokenExpired), errors.Is(err, deploy.ErrTokenInvalid):
		httpError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, registry.ErrAgentLimitReached):
		httpError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, profiles.ErrInvalidCurve),
		errors.Is(err, profiles.ErrMalformedDocument),
		errors.Is(err, profiles.ErrUnknownConflictPolicy),
		errors.Is(err, ErrBadRequest):
		httpError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("unmapped rest error", "error", err)
		httpError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = err // best-effort; client likely disconnected mid-write
	}
}

func httpError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
