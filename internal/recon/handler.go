package recon

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openfreight/linehaul/internal/loads"
	"github.com/openfreight/linehaul/internal/platform/httpx"
	"github.com/openfreight/linehaul/internal/shared"
)

// Handler manages reconciliation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler builds a Handler instance. The idempotency store is optional;
// without it retried reconcile submissions rely on the link constraint alone.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idem: idem, validate: validator.New()}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/candidates", h.candidates)
	r.Post("/reconcile", h.reconcile)
	r.Post("/auto-match", h.autoMatch)
	r.Get("/summary", h.summary)
	r.Get("/summary.csv", h.summaryCSV)
}

type candidateLoad struct {
	ID           int64   `json:"id"`
	LoadID       string  `json:"load_id"`
	Carrier      string  `json:"carrier"`
	Customer     string  `json:"customer"`
	DeliveryDate string  `json:"delivery_date"`
	GrossAmount  float64 `json:"gross_amount"`
	NetAmount    float64 `json:"net_amount"`
	FeePercent   float64 `json:"fee_percent"`
}

type candidatesResponse struct {
	Entity     string          `json:"entity"`
	Schedule   string          `json:"schedule,omitempty"`
	Cycle      string          `json:"cycle,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
	Candidates []candidateLoad `json:"candidates"`
	TotalNet   float64         `json:"total_net"`
}

func (h *Handler) candidates(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entity is required")
		return
	}
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	set, err := h.service.FindCandidates(r.Context(), entity, date)
	if err != nil {
		h.logger.Error("candidate lookup failed", "entity", entity, "error", err)
		httpx.RespondError(w, err)
		return
	}

	resp := candidatesResponse{Entity: entity, Suggestion: set.Suggestion, Candidates: []candidateLoad{}}
	if set.Schedule != nil {
		resp.Schedule = string(set.Schedule.Cadence)
		resp.Cycle = set.Schedule.Cycle
	}
	for _, l := range set.Loads {
		resp.Candidates = append(resp.Candidates, toCandidate(l))
		resp.TotalNet += l.NetAmount
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func toCandidate(l loads.Load) candidateLoad {
	return candidateLoad{
		ID:           l.ID,
		LoadID:       l.LoadID,
		Carrier:      l.Carrier,
		Customer:     l.Customer,
		DeliveryDate: l.DeliveryDate.Format("2006-01-02"),
		GrossAmount:  l.GrossAmount,
		NetAmount:    l.NetAmount,
		FeePercent:   l.FeePercent,
	}
}

type reconcileRequest struct {
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate  string  `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PayingEntity string  `json:"paying_entity" validate:"required"`
	Reference    string  `json:"reference"`
	Notes        string  `json:"notes"`
	LoadIDs      []int64 `json:"load_ids" validate:"required,min=1,dive,gt=0"`
}

type reconcileResponse struct {
	PaymentID   int64   `json:"payment_id"`
	LoadIDs     []int64 `json:"load_ids"`
	TotalAmount float64 `json:"total_amount"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	paymentDate, _ := time.Parse("2006-01-02", req.PaymentDate)

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "recon"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this reconciliation was already submitted")
				return
			}
			h.logger.Error("idempotency check failed", "error", err)
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}

	result, err := h.service.Reconcile(r.Context(), PaymentDraft{
		Amount:       req.Amount,
		PaymentDate:  paymentDate,
		PayingEntity: req.PayingEntity,
		Reference:    req.Reference,
		Notes:        req.Notes,
		ActorID:      actorID(r),
	}, req.LoadIDs)
	if err != nil {
		if idemKey != "" && h.idem != nil {
			if delErr := h.idem.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("idempotency key release failed", "error", delErr)
			}
		}
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reconcileResponse{
		PaymentID:   result.PaymentID,
		LoadIDs:     result.LoadIDs,
		TotalAmount: result.TotalAmount,
	})
}

type autoMatchResponse struct {
	TotalCandidates int `json:"total_candidates"`
	Matched         int `json:"matched"`
	Unmatched       int `json:"unmatched"`
}

func (h *Handler) autoMatch(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.AutoMatchAll(r.Context(), actorID(r))
	if err != nil {
		h.logger.Error("auto-match run failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, autoMatchResponse{
		TotalCandidates: report.TotalCandidates,
		Matched:         report.Matched,
		Unmatched:       report.Unmatched,
	})
}

type summaryRow struct {
	Carrier        string  `json:"carrier"`
	LoadCount      int     `json:"load_count"`
	TotalAmount    float64 `json:"total_amount"`
	OldestDelivery string  `json:"oldest_delivery"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("summary failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	rows := make([]summaryRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, summaryRow{
			Carrier:        item.Carrier,
			LoadCount:      item.LoadCount,
			TotalAmount:    item.TotalAmount,
			OldestDelivery: item.OldestDelivery.Format("2006-01-02"),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"carriers": rows})
}

func (h *Handler) summaryCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="unreconciled-summary.csv"`)
	if err := h.service.WriteSummaryCSV(r.Context(), w); err != nil {
		h.logger.Error("summary export failed", "error", err)
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var mismatch *AmountMismatchError
	switch {
	case errors.As(err, &mismatch):
		httpx.JSON(w, http.StatusUnprocessableEntity, httpx.ProblemDetail{
			Title:  "Amount Mismatch",
			Status: http.StatusUnprocessableEntity,
			Detail: mismatch.Error(),
		})
	case errors.Is(err, ErrAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Already Reconciled", err.Error())
	case errors.Is(err, ErrLoadNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptySelection), errors.Is(err, ErrInvalidDraft):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("reconcile failed", "error", err)
		httpx.RespondError(w, err)
	}
}

func actorID(r *http.Request) int64 {
	return shared.ActorFromContext(r.Context())
}
