package service_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Someblueman/lootforge/internal/config"
	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := service.New(config.DefaultConfig(), nil)
	return httptest.NewServer(srv.Handler())
}

func TestContractsList_ReportsAllFiveKinds(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/contracts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Version string          `json:"version"`
		Kinds   []contract.Kind `json:"kinds"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, contract.Version, body.Version)
	assert.Len(t, body.Kinds, 5)
}

func TestContractIntrospect_ValidatesPostedDocument(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	doc := map[string]interface{}{
		"contractVersion": contract.Version,
		"inputHash":       "abc123",
		"targets": []interface{}{
			map[string]interface{}{"id": "hero", "kind": "sprite", "out": "hero.png", "provider": "openai"},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/contracts/targets-index", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestContractIntrospect_RejectsInvalidDocument(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	doc := map[string]interface{}{
		"contractVersion": contract.Version,
		"inputHash":       "abc123",
		"targets": []interface{}{
			map[string]interface{}{"id": "a", "kind": "sprite", "out": "Sprites/Hero.png", "provider": "openai"},
			map[string]interface{}{"id": "b", "kind": "sprite", "out": `sprites\hero.png`, "provider": "openai"},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/contracts/targets-index", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestToolsPlan_RejectsUnreadableManifest(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	params := map[string]string{"manifestPath": "/nonexistent/manifest.json"}
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/tools/plan", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestToolsPlan_MethodNotAllowedOnGet(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/tools/plan")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz_OK(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
