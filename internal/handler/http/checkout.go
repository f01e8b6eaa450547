package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nthlam/WEB-NOVA-SCI/internal/service"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/httputil"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/middleware"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/pagination"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout and order reads.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CheckoutItemRequest is the JSON request body for a cart line.
type CheckoutItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"required,gte=1"`
}

// CheckoutRequest is the JSON request body for initiating a checkout. The
// client declares its own subtotal and total; both are re-verified server-side.
type CheckoutRequest struct {
	Items        []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingCost float64               `json:"shipping_cost" validate:"gte=0"`
	Subtotal     float64               `json:"subtotal" validate:"gte=0"`
	TotalCost    float64               `json:"total_cost" validate:"gte=0"`
}

// --- Handlers ---

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "missing identity"},
		})
		return
	}

	items := make([]service.CheckoutItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CheckoutItemInput{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	input := service.CheckoutInput{
		UserIdentity: principal.Identity,
		SessionID:    principal.SessionID,
		Items:        items,
		ShippingCost: req.ShippingCost,
		Subtotal:     req.Subtotal,
		TotalCost:    req.TotalCost,
	}

	result, err := h.service.Checkout(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// GetOrderStatus handles GET /api/v1/orders/{id}/status
//
// Unauthenticated on purpose: a buyer's client polls this to observe payment
// completion without holding a session.
func (h *CheckoutHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	status, err := h.service.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: status})
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "missing identity"},
		})
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID, principal.Identity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "missing identity"},
		})
		return
	}

	params := pagination.FromRequest(r)

	result, err := h.service.OrderHistory(r.Context(), principal.Identity, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
