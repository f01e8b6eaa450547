package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/nthlam/WEB-NOVA-SCI/pkg/logger"
)

// logLine serves one request through RequestLogger, has the handler emit a
// single log record via the context logger, and returns the decoded record.
func logLine(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	base := logger.NewWithWriter("test-svc", "info", &buf)

	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotZero(t, buf.Len(), "handler must log through the context logger")
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func withPrincipal(req *http.Request, identity string) *http.Request {
	ctx := context.WithValue(req.Context(), principalKey, Principal{Identity: identity, Role: "shop_client"})
	return req.WithContext(ctx)
}

func TestRequestLogger_StoresLoggerInContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	out := logLine(t, req)
	assert.Equal(t, "handled", out["msg"])
}

func TestRequestLogger_IncludesCorrelationID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-test-123")
	req := httptest.NewRequest(http.MethodGet, "/orders", nil).WithContext(ctx)

	out := logLine(t, req)
	assert.Equal(t, "corr-test-123", out["correlation_id"])
}

func TestRequestLogger_UserIDFromPrincipal(t *testing.T) {
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/orders", nil), "user-from-auth")

	out := logLine(t, req)
	assert.Equal(t, "user-from-auth", out["user_id"])
}

func TestRequestLogger_UserIDFromProxyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderUserIdentity, "user-from-header")

	out := logLine(t, req)
	assert.Equal(t, "user-from-header", out["user_id"])
}

func TestRequestLogger_PrincipalBeatsHeader(t *testing.T) {
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/orders", nil), "auth-user")
	req.Header.Set(HeaderUserIdentity, "header-user")

	out := logLine(t, req)
	assert.Equal(t, "auth-user", out["user_id"], "authenticated identity must win over the raw header")
}

func TestRequestLogger_IncludesTraceFields(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	req := httptest.NewRequest(http.MethodGet, "/orders", nil).WithContext(ctx)

	out := logLine(t, req)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}

func TestRequestLogger_AnonymousRequestOmitsUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)

	out := logLine(t, req)
	assert.NotContains(t, out, "user_id")
}
