package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/storage"
)

func newResultsServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	return &Server{store: store, hub: NewHub()}
}

func storeResult(t *testing.T, s *Server, scanID string) document.Result {
	t.Helper()
	res := mockResult(scanID).Document
	_, err := s.store.SaveResult(res)
	require.NoError(t, err)
	return res
}

func TestServer_GetResult(t *testing.T) {
	server := newResultsServer(t)
	stored := storeResult(t, server, "delo_001")

	req := httptest.NewRequest(http.MethodGet, "/results/delo_001", nil)
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got document.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, stored.Scan.ID, got.Scan.ID)
	assert.Equal(t, stored.Regions[0].ConcatenatedText, got.Regions[0].ConcatenatedText)
}

func TestServer_GetResult_NotFound(t *testing.T) {
	server := newResultsServer(t)

	req := httptest.NewRequest(http.MethodGet, "/results/missing_001", nil)
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Error, "missing_001")
}

func TestServer_PutResult(t *testing.T) {
	server := newResultsServer(t)
	stored := storeResult(t, server, "delo_001")

	stored.Regions[0].CorrectedText = "Исправленный текст"
	body, err := json.Marshal(stored)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/results/delo_001", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	reloaded, err := server.store.LoadResult("delo_001")
	require.NoError(t, err)
	assert.Equal(t, "Исправленный текст", reloaded.Regions[0].CorrectedText)
}

func TestServer_PutResult_IDMismatch(t *testing.T) {
	server := newResultsServer(t)
	storeResult(t, server, "delo_001")

	other := mockResult("delo_999").Document
	body, err := json.Marshal(other)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/results/delo_001", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_PutResult_NotFound(t *testing.T) {
	server := newResultsServer(t)

	body, err := json.Marshal(mockResult("delo_001").Document)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/results/delo_001", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StatusRoundTrip(t *testing.T) {
	server := newResultsServer(t)
	storeResult(t, server, "delo_001")

	// Fresh results report progress.
	req := httptest.NewRequest(http.MethodGet, "/results/delo_001/status", nil)
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var st storage.ScanStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, storage.StatusProgress, st.Status)

	// PATCH advances the status.
	patch := bytes.NewReader([]byte(`{"status":"done"}`))
	req = httptest.NewRequest(http.MethodPatch, "/results/delo_001/status", patch)
	w = httptest.NewRecorder()
	server.resultsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, storage.StatusDone, st.Status)

	stored, err := server.store.Status("delo_001")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDone, stored.Status)
}

func TestServer_PatchStatus_Unknown(t *testing.T) {
	server := newResultsServer(t)
	storeResult(t, server, "delo_001")

	patch := bytes.NewReader([]byte(`{"status":"finished"}`))
	req := httptest.NewRequest(http.MethodPatch, "/results/delo_001/status", patch)
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Error, "finished")
}

func TestServer_PatchStatus_NoResult(t *testing.T) {
	server := newResultsServer(t)

	patch := bytes.NewReader([]byte(`{"status":"done"}`))
	req := httptest.NewRequest(http.MethodPatch, "/results/ghost/status", patch)
	w := httptest.NewRecorder()
	server.resultsHandler(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ResultsHandler_BadPaths(t *testing.T) {
	server := newResultsServer(t)

	for _, path := range []string{"/results/", "/results/a/b/c", "/results/delo_001/unknown"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		server.resultsHandler(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
