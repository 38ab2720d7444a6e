package loads

import (
	"context"
	"strconv"
	"time"

	"github.com/openfreight/linehaul/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	CreateLoad(ctx context.Context, l Load) (Load, error)
	GetLoad(ctx context.Context, id int64) (Load, error)
	ListLoads(ctx context.Context, limit, offset int, filters ListFilters) ([]Load, int, error)
	MarkCompleted(ctx context.Context, id int64) error
}

// AuditPort records operator actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the load ledger.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs a load service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateLoadInput describes the creation payload.
type CreateLoadInput struct {
	LoadID        string
	Carrier       string
	Customer      string
	PickupDate    time.Time
	DeliveryDate  time.Time
	GrossAmount   float64
	PaymentMethod PaymentMethod
	Notes         string
	ActorID       int64
}

// CreateLoad validates the input, freezes the fee for the payment method and
// persists the load. The stored FeePercent and NetAmount never change after
// this point, even if the schedule table is edited later.
func (s *Service) CreateLoad(ctx context.Context, input CreateLoadInput) (Load, error) {
	if input.LoadID == "" || input.Carrier == "" || input.Customer == "" {
		return Load{}, ErrValidation
	}
	if input.GrossAmount <= 0 {
		return Load{}, ErrValidation
	}
	fee := FeePercentFor(input.PaymentMethod)
	l := Load{
		LoadID:        input.LoadID,
		Carrier:       input.Carrier,
		Customer:      input.Customer,
		PickupDate:    input.PickupDate,
		DeliveryDate:  input.DeliveryDate,
		GrossAmount:   input.GrossAmount,
		NetAmount:     ComputeNet(input.GrossAmount, fee),
		FeePercent:    fee,
		PaymentMethod: input.PaymentMethod,
		Status:        StatusPending,
		Notes:         input.Notes,
	}
	created, err := s.repo.CreateLoad(ctx, l)
	if err != nil {
		return Load{}, err
	}
	s.recordAudit(ctx, input.ActorID, "LOAD_CREATE", created.ID, map[string]any{"load_id": created.LoadID, "net": created.NetAmount})
	return created, nil
}

// GetLoad fetches a single load.
func (s *Service) GetLoad(ctx context.Context, id int64) (Load, error) {
	return s.repo.GetLoad(ctx, id)
}

// ListLoads returns a filtered page of loads.
func (s *Service) ListLoads(ctx context.Context, page, perPage int, filters ListFilters) ([]Load, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	items, total, err := s.repo.ListLoads(ctx, p.PerPage, p.Offset(), filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// CompleteLoad marks a delivered load as completed, making it visible to the
// reconciliation candidate pool.
func (s *Service) CompleteLoad(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.MarkCompleted(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "LOAD_COMPLETE", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "load",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
