package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openfreight/linehaul/internal/platform/httpx"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createInvoice)
	r.Get("/open", h.listOpen)
}

type createInvoiceRequest struct {
	Number      string  `json:"number" validate:"required"`
	Customer    string  `json:"customer" validate:"required"`
	Total       float64 `json:"total" validate:"required,gt=0"`
	InvoiceDate string  `json:"invoice_date" validate:"required,datetime=2006-01-02"`
}

type invoiceResponse struct {
	ID          int64   `json:"id"`
	Number      string  `json:"number"`
	Customer    string  `json:"customer"`
	Total       float64 `json:"total"`
	Status      string  `json:"status"`
	InvoiceDate string  `json:"invoice_date"`
	PaidDate    string  `json:"paid_date,omitempty"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:          inv.ID,
		Number:      inv.Number,
		Customer:    inv.Customer,
		Total:       inv.Total,
		Status:      string(inv.Status),
		InvoiceDate: inv.InvoiceDate.Format("2006-01-02"),
	}
	if inv.Status == StatusPaid && inv.PaidDate.Unix() > 0 {
		resp.PaidDate = inv.PaidDate.Format("2006-01-02")
	}
	return resp
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.InvoiceDate)

	inv, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		Number:      req.Number,
		Customer:    req.Customer,
		Total:       req.Total,
		InvoiceDate: date,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateNumber):
			httpx.Problem(w, http.StatusConflict, "Duplicate", "invoice number already exists")
		case errors.Is(err, ErrValidation):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("create invoice", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) listOpen(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListOpen(r.Context())
	if err != nil {
		h.logger.Error("list open invoices", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	resp := make([]invoiceResponse, 0, len(items))
	for _, inv := range items {
		resp = append(resp, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": resp})
}
