package httpedge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vectorfs/internal/container"
	"github.com/Aman-CERP/vectorfs/internal/dispatch"
	"github.com/Aman-CERP/vectorfs/internal/embed"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	manager := container.NewManager(embed.NewStaticEmbedder(16))
	d := dispatch.New(manager)
	dispatch.RegisterDefaultRoutes(d, nil)

	bindings := []RouteBinding{
		{Method: http.MethodPost, Pattern: "/containers", DispatchVerb: dispatch.VerbPOST, DispatchPath: "container/create"},
	}
	return New(d, bindings)
}

func TestServer_ContainerCreate_ReturnsSuccessEnvelope(t *testing.T) {
	s := newTestServer(t)

	body, err := json.Marshal(map[string]any{"container_id": "c1", "owner_id": "u1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/containers", bytes.NewReader(body))
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp dispatch.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestServer_WrongMethod_Returns405(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/containers", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_InvalidJSONBody_ReturnsErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/containers", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
