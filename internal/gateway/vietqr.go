package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
)

// Doer is the interface for executing HTTP requests. Both httpclient.Client
// and httpclient.CircuitBreakerClient satisfy this.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback is the fallback invoked when the gateway circuit
// breaker is open. The order stays pending, so the caller can simply retry.
func CircuitOpenFallback(_ context.Context, err error) (*http.Response, error) {
	return nil, apperrors.GatewayUnavailable(err)
}

// Config holds the VietQR gateway settings.
type Config struct {
	BaseURL     string
	AccountNo   string
	AccountName string
	AcquirerID  string
	Template    string
}

// generateRequest is the wire format of the QR generation call.
type generateRequest struct {
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
	AcqID       string `json:"acqId"`
	Amount      int64  `json:"amount"`
	AddInfo     string `json:"addInfo"`
	Template    string `json:"template"`
}

// generateResponse is the wire format of the QR generation response.
// Code "00" indicates success; anything else is a gateway-side rejection.
type generateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		QRCode    string `json:"qrCode"`
		QRDataURL string `json:"qrDataURL"`
	} `json:"data"`
}

const successCode = "00"

// Client requests scannable payment codes from the VietQR gateway.
type Client struct {
	cfg    Config
	http   Doer
	logger *slog.Logger
}

// NewClient creates a payment gateway client.
func NewClient(cfg Config, httpClient Doer, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
}

// RequestPaymentCode mints a payment code for the given amount, tagged with
// the order id so the processor's webhook can reference it back. Any
// transport failure, non-2xx status, or non-"00" response code surfaces as
// GatewayUnavailable; the caller's order state is never touched.
func (c *Client) RequestPaymentCode(ctx context.Context, amount int64, reference string) (string, error) {
	body, err := json.Marshal(generateRequest{
		AccountNo:   c.cfg.AccountNo,
		AccountName: c.cfg.AccountName,
		AcqID:       c.cfg.AcquirerID,
		Amount:      amount,
		AddInfo:     reference,
		Template:    c.cfg.Template,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payment code request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build payment code request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.ErrorContext(ctx, "payment gateway request failed",
			slog.String("reference", reference),
			slog.String("error", err.Error()),
		)
		return "", apperrors.GatewayUnavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.ErrorContext(ctx, "payment gateway returned error status",
			slog.String("reference", reference),
			slog.Int("status", resp.StatusCode),
		)
		return "", apperrors.GatewayUnavailable(fmt.Errorf("gateway status %d", resp.StatusCode))
	}

	var gr generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&gr); err != nil {
		return "", apperrors.GatewayUnavailable(fmt.Errorf("decode gateway response: %w", err))
	}

	if gr.Code != successCode || gr.Data.QRCode == "" {
		c.logger.ErrorContext(ctx, "payment gateway rejected code generation",
			slog.String("reference", reference),
			slog.String("code", gr.Code),
			slog.String("desc", gr.Desc),
		)
		return "", apperrors.GatewayUnavailable(fmt.Errorf("gateway code %s: %s", gr.Code, gr.Desc))
	}

	return gr.Data.QRCode, nil
}
