package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openfreight/linehaul/internal/platform/httpx"
	"github.com/openfreight/linehaul/internal/shared"
)

// Handler manages payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.recordPayment)
	r.Get("/", h.listPayments)
	r.Get("/{id}", h.getPayment)
	r.Post("/import", h.importCSV)
}

type recordPaymentRequest struct {
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate  string  `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PayingEntity string  `json:"paying_entity" validate:"required"`
	Reference    string  `json:"reference"`
	Notes        string  `json:"notes"`
}

type paymentResponse struct {
	ID           int64   `json:"id"`
	Amount       float64 `json:"amount"`
	PaymentDate  string  `json:"payment_date"`
	PayingEntity string  `json:"paying_entity"`
	Reference    string  `json:"reference,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	Reconciled   bool    `json:"reconciled"`
	ReconciledAt string  `json:"reconciled_at,omitempty"`
}

func toPaymentResponse(p Payment) paymentResponse {
	resp := paymentResponse{
		ID:           p.ID,
		Amount:       p.Amount,
		PaymentDate:  p.PaymentDate.Format("2006-01-02"),
		PayingEntity: p.PayingEntity,
		Reference:    p.Reference,
		Notes:        p.Notes,
		Reconciled:   p.Reconciled,
	}
	if p.Reconciled && p.ReconciledAt.Unix() > 0 {
		resp.ReconciledAt = p.ReconciledAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.PaymentDate)

	payment, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		Amount:       req.Amount,
		PaymentDate:  date,
		PayingEntity: req.PayingEntity,
		Reference:    req.Reference,
		Notes:        req.Notes,
		ActorID:      shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondErr(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	onlyOpen := r.URL.Query().Get("open") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.service.ListPayments(r.Context(), onlyOpen, limit)
	if err != nil {
		h.respondErr(w, "list payments", err)
		return
	}
	resp := make([]paymentResponse, 0, len(items))
	for _, p := range items {
		resp = append(resp, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": resp})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment ID")
		return
	}
	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	result, err := h.service.ImportCSV(r.Context(), r.Body, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondErr(w, "import payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"imported": result.Imported,
		"failed":   result.Failed,
		"errors":   result.Errors,
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "payment not found")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
