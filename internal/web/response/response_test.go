package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inetmon/inetmon/internal/web/middleware"
	"github.com/inetmon/inetmon/internal/web/problem"
	"github.com/inetmon/inetmon/internal/web/response"
)

// requestWithContext returns a request that has passed through the RequestID middleware.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	return processedReq, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/api/status")

	response.JSON(rec, req, http.StatusOK, map[string]string{"state": "up"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"state":"up"}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Body.String())
}

func TestText(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/health")

	response.Text(rec, req, http.StatusOK, "ok")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter, *http.Request, string)
		wantCode int
		wantType string
	}{
		{name: "bad request", write: response.BadRequest, wantCode: http.StatusBadRequest, wantType: problem.TypeBadRequest},
		{name: "not found", write: response.NotFound, wantCode: http.StatusNotFound, wantType: problem.TypeNotFound},
		{name: "internal", write: response.InternalError, wantCode: http.StatusInternalServerError, wantType: problem.TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/api/log")

			tt.write(rec, req, "something happened")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var p problem.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, tt.wantCode, p.Status)
			assert.Equal(t, "something happened", p.Detail)
			assert.Equal(t, "/api/log", p.Instance)
			assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), p.TraceID)
		})
	}
}

func TestError_UnlistedStatus(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/ws")

	response.Error(rec, req, http.StatusServiceUnavailable, "live tail is shutting down")

	var p problem.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, problem.TypeGeneric, p.Type)
	assert.Equal(t, "Service Unavailable", p.Title)
}
