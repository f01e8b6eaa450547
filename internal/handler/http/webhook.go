package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nthlam/WEB-NOVA-SCI/internal/domain"
	"github.com/nthlam/WEB-NOVA-SCI/internal/service"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/httputil"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/validator"
)

// WebhookHandler receives payment-result notifications from the external
// processor. Authentication is the HMAC signature inside the payload, not a
// session, so the route sits outside the identity middleware.
type WebhookHandler struct {
	service *service.WebhookService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new payment webhook HTTP handler.
func NewWebhookHandler(svc *service.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: svc,
		logger:  logger,
	}
}

// HandlePaymentResult handles POST /api/v1/payment/webhook
//
// The processor only needs an HTTP-level acknowledgment; order outcome detail
// is never included in the response.
func (h *WebhookHandler) HandlePaymentResult(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var notification domain.PaymentNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(notification); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.Process(r.Context(), &notification); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "acknowledged"}})
}
