// SPDX-License-Identifier: BSD-3-Clause

package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankha/pankha/internal/hub/deploy"
	"github.com/pankha/pankha/internal/hub/dispatcher"
	"github.com/pankha/pankha/internal/hub/license"
	"github.com/pankha/pankha/internal/hub/profiles"
	"github.com/pankha/pankha/internal/hub/registry"
	"github.com/pankha/pankha/pkg/log"
	"github.com/pankha/pankha/pkg/wire"
)

type testHarness struct {
	server   *Server
	disp     *dispatcher.Hub
	agentSrv *httptest.Server
	restSrv  *httptest.Server
	deploySvc *deploy.Service
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	logger := log.NewDefaultLogger()
	reg := registry.New(license.NewStaticOracle("pro"))
	disp := dispatcher.New(reg, nil, logger)
	agentSrv := httptest.NewServer(http.HandlerFunc(disp.ServeAgentWS))
	t.Cleanup(agentSrv.Close)

	depSvc, err := deploy.New(t.TempDir(), []byte("test-signing-key"))
	require.NoError(t, err)

	s := New(disp, reg, profiles.New(), nil, depSvc, logger, "")
	restSrv := httptest.NewServer(s.Handler())
	t.Cleanup(restSrv.Close)

	return &testHarness{server: s, disp: disp, agentSrv: agentSrv, restSrv: restSrv, deploySvc: depSvc}
}

// registerAgent dials the agent websocket, registers, and starts a goroutine
// that answers every inbound command with a success response so REST
// round-trip tests don't need a real control engine.
func registerAgent(t *testing.T, h *testHarness, agentID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.agentSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(wire.NewRegisterFrame(agentID, "Box", "linux", "1.0.0", nil, wire.Capabilities{})))
	var registered map[string]any
	require.NoError(t, conn.ReadJSON(&registered))

	go func() {
		for {
			var cmd struct {
				Type      string `json:"type"`
				CommandID string `json:"commandId"`
			}
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			if cmd.Type == wire.TypeCommand {
				conn.WriteJSON(wire.NewCommandSuccess(cmd.CommandID, nil))
			}
		}
	}()
	return conn
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthReturnsOK(t *testing.T) {
	h := newHarness(t)
	resp := doJSON(t, http.MethodGet, h.restSrv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListSystemsReflectsRegistry(t *testing.T) {
	h := newHarness(t)
	registerAgent(t, h, "agent-1")

	// Registration is asynchronous from the REST client's perspective only
	// in that it happens over a separate websocket goroutine; give it a
	// moment to land before listing.
	require.Eventually(t, func() bool {
		resp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/systems", nil)
		defer resp.Body.Close()
		var systems []systemView
		json.NewDecoder(resp.Body).Decode(&systems)
		return len(systems) == 1 && systems[0].AgentID == "agent-1"
	}, time.Second, 10*time.Millisecond)
}

func TestGetUnknownSystemReturns404(t *testing.T) {
	h := newHarness(t)
	resp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/systems/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPutFanSpeedRoutesThroughDispatcher(t *testing.T) {
	h := newHarness(t)
	registerAgent(t, h, "agent-1")
	require.Eventually(t, func() bool {
		_, err := h.server.registry.Get("agent-1")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	resp := doJSON(t, http.MethodPut, h.restSrv.URL+"/api/systems/agent-1/fans/fan-1", map[string]int{"speed": 75})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, true, result["success"])
}

func TestPutFanSpeedForOfflineAgentReturns404(t *testing.T) {
	h := newHarness(t)
	resp := doJSON(t, http.MethodPut, h.restSrv.URL+"/api/systems/ghost/fans/fan-1", map[string]int{"speed": 50})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfigUnknownSettingReturns404(t *testing.T) {
	h := newHarness(t)
	registerAgent(t, h, "agent-1")
	require.Eventually(t, func() bool {
		_, err := h.server.registry.Get("agent-1")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	resp := doJSON(t, http.MethodPut, h.restSrv.URL+"/api/systems/agent-1/config/not-a-real-setting", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfilesListIncludesBuiltins(t *testing.T) {
	h := newHarness(t)
	resp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/profiles", nil)
	defer resp.Body.Close()
	var list []profiles.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.GreaterOrEqual(t, len(list), 7)
}

func TestCreateAndCloneProfile(t *testing.T) {
	h := newHarness(t)
	createResp := doJSON(t, http.MethodPost, h.restSrv.URL+"/api/profiles", map[string]any{
		"name": "Custom",
		"type": "generic",
		"curve": []map[string]float64{
			{"temperature": 30, "duty": 20},
			{"temperature": 70, "duty": 80},
		},
	})
	defer createResp.Body.Close()
	require.Equal(t, http.StatusOK, createResp.StatusCode)
	var created profiles.Profile
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)

	cloneResp := doJSON(t, http.MethodPost, h.restSrv.URL+"/api/profiles/"+created.ID+"/clone", map[string]string{"name": "Custom Copy"})
	defer cloneResp.Body.Close()
	require.Equal(t, http.StatusOK, cloneResp.StatusCode)
	var cloned profiles.Profile
	require.NoError(t, json.NewDecoder(cloneResp.Body).Decode(&cloned))
	assert.Equal(t, "Custom Copy", cloned.Name)
	assert.NotEqual(t, created.ID, cloned.ID)
}

func TestProfilesExportImportRoundTrips(t *testing.T) {
	h := newHarness(t)
	exportResp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/profiles/export", nil)
	defer exportResp.Body.Close()
	require.Equal(t, http.StatusOK, exportResp.StatusCode)
	doc, err := func() ([]byte, error) {
		buf := new(bytes.Buffer)
		_, err := buf.ReadFrom(exportResp.Body)
		return buf.Bytes(), err
	}()
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, h.restSrv.URL+"/api/profiles/import?policy=skip", bytes.NewReader(doc))
	require.NoError(t, err)
	importResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer importResp.Body.Close()
	assert.Equal(t, http.StatusOK, importResp.StatusCode)
}

func TestDeployLinuxRequiresValidToken(t *testing.T) {
	h := newHarness(t)
	resp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/deploy/linux?token=garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeployLinuxAndBinaryRoundTrip(t *testing.T) {
	h := newHarness(t)
	_, err := h.deploySvc.Stage(deploy.ChannelStable, "linux", "amd64", "1.2.3", strings.NewReader("fake-binary-bytes"))
	require.NoError(t, err)

	token, err := h.deploySvc.IssueToken(deploy.BootstrapConfig{ServerURL: "wss://hub.local:8443", AgentName: "rack-1"})
	require.NoError(t, err)

	scriptResp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/deploy/linux?token="+token, nil)
	defer scriptResp.Body.Close()
	require.Equal(t, http.StatusOK, scriptResp.StatusCode)
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(scriptResp.Body)
	assert.Contains(t, buf.String(), "wss://hub.local:8443")

	binResp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/deploy/binary?channel=stable", nil)
	defer binResp.Body.Close()
	require.Equal(t, http.StatusOK, binResp.StatusCode)
	binBuf := new(bytes.Buffer)
	_, _ = binBuf.ReadFrom(binResp.Body)
	assert.Equal(t, "fake-binary-bytes", binBuf.String())
}

func TestDeployBinaryUnknownChannelReturns404(t *testing.T) {
	h := newHarness(t)
	resp := doJSON(t, http.MethodGet, h.restSrv.URL+"/api/deploy/binary?channel=unstable", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
