package loads

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

// Handler manages load ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers load routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createLoad)
	r.Get("/", h.listLoads)
	r.Get("/{id}", h.getLoad)
	r.Post("/{id}/complete", h.completeLoad)
}

type createLoadRequest struct {
	LoadID        string  `json:"load_id" validate:"required"`
	Carrier       string  `json:"carrier" validate:"required"`
	Customer      string  `json:"customer" validate:"required"`
	PickupDate    string  `json:"pickup_date" validate:"required,datetime=2006-01-02"`
	DeliveryDate  string  `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	GrossAmount   float64 `json:"gross_amount" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof='Direct Pay' 'Factored'"`
	Notes         string  `json:"notes"`
}

type loadResponse struct {
	ID            int64   `json:"id"`
	LoadID        string  `json:"load_id"`
	Carrier       string  `json:"carrier"`
	Customer      string  `json:"customer"`
	PickupDate    string  `json:"pickup_date"`
	DeliveryDate  string  `json:"delivery_date,omitempty"`
	GrossAmount   float64 `json:"gross_amount"`
	NetAmount     float64 `json:"net_amount"`
	FeePercent    float64 `json:"fee_percent"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
}

func toLoadResponse(l Load) loadResponse {
	resp := loadResponse{
		ID:            l.ID,
		LoadID:        l.LoadID,
		Carrier:       l.Carrier,
		Customer:      l.Customer,
		PickupDate:    l.PickupDate.Format("2006-01-02"),
		GrossAmount:   l.GrossAmount,
		NetAmount:     l.NetAmount,
		FeePercent:    l.FeePercent,
		PaymentMethod: string(l.PaymentMethod),
		Status:        string(l.Status),
	}
	if !l.DeliveryDate.IsZero() {
		resp.DeliveryDate = l.DeliveryDate.Format("2006-01-02")
	}
	return resp
}

func (h *Handler) createLoad(w http.ResponseWriter, r *http.Request) {
	var req createLoadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pickup, _ := time.Parse("2006-01-02", req.PickupDate)
	var delivery time.Time
	if req.DeliveryDate != "" {
		delivery, _ = time.Parse("2006-01-02", req.DeliveryDate)
	}

	load, err := h.service.CreateLoad(r.Context(), CreateLoadInput{
		LoadID:        req.LoadID,
		Carrier:       req.Carrier,
		Customer:      req.Customer,
		PickupDate:    pickup,
		DeliveryDate:  delivery,
		GrossAmount:   req.GrossAmount,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
		ActorID:       shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondErr(w, "create load", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLoadResponse(load))
}

func (h *Handler) listLoads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filters := ListFilters{
		Status:  Status(q.Get("status")),
		Carrier: q.Get("carrier"),
	}
	items, pagination, err := h.service.ListLoads(r.Context(), page, perPage, filters)
	if err != nil {
		h.respondErr(w, "list loads", err)
		return
	}
	resp := make([]loadResponse, 0, len(items))
	for _, l := range items {
		resp = append(resp, toLoadResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"loads":       resp,
		"page":        pagination.Page,
		"per_page":    pagination.PerPage,
		"total":       pagination.Total,
		"total_pages": pagination.TotalPages,
	})
}

func (h *Handler) getLoad(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid load ID")
		return
	}
	load, err := h.service.GetLoad(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get load", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoadResponse(load))
}

func (h *Handler) completeLoad(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid load ID")
		return
	}
	if err := h.service.CompleteLoad(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondErr(w, "complete load", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusCompleted)})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "load not found")
	case errors.Is(err, ErrDuplicateLoadID):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "load id already exists")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
