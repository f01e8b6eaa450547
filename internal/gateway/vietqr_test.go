package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
)

type plainDoer struct {
	client *http.Client
}

func (d *plainDoer) Do(_ context.Context, req *http.Request) (*http.Response, error) {
	return d.client.Do(req)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:     baseURL,
		AccountNo:   "0123456789",
		AccountName: "WEB NOVA",
		AcquirerID:  "970415",
		Template:    "compact",
	}, &plainDoer{client: http.DefaultClient}, newTestLogger())
}

func TestRequestPaymentCode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"00","desc":"success","data":{"qrCode":"00020101021138570010A000000727"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	code, err := client.RequestPaymentCode(context.Background(), 1500005, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "00020101021138570010A000000727", code)
}

func TestRequestPaymentCode_GatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"42","desc":"invalid account","data":{}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.RequestPaymentCode(context.Background(), 100, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestRequestPaymentCode_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.RequestPaymentCode(context.Background(), 100, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestRequestPaymentCode_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := newTestClient(srv.URL)

	_, err := client.RequestPaymentCode(context.Background(), 100, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestRequestPaymentCode_MissingCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"00","desc":"success","data":{"qrCode":""}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.RequestPaymentCode(context.Background(), 100, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestCircuitOpenFallback(t *testing.T) {
	resp, err := CircuitOpenFallback(context.Background(), assert.AnError)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}
