package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerchat/internal/logger"
)

func TestLoggerPutsRequestLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter(&buf)

	h := Logger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		log.Info().Str("category", "groceries").Msg("handled")
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/budgets", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var handled, access map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &handled))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &access))

	require.Equal(t, "handled", handled["message"])
	require.Equal(t, "req-42", handled["request_id"])
	require.Equal(t, "/api/budgets", handled["path"])
	require.Equal(t, "groceries", handled["category"])

	require.Equal(t, "HTTP request", access["message"])
	require.Equal(t, "req-42", access["request_id"])
	require.Equal(t, "POST", access["method"])
	require.EqualValues(t, http.StatusCreated, access["status"])
}

func TestLoggerGeneratesRequestID(t *testing.T) {
	h := Logger(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestRecoveryWritesJSONError(t *testing.T) {
	h := Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/budgets", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/budgets", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.False(t, called)
}
