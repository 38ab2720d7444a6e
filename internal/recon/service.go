package recon

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/openfreight/linehaul/internal/observability"
	"github.com/openfreight/linehaul/internal/shared"
)

// AuditPort records operator actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceDeps bundles the collaborators of Service.
type ServiceDeps struct {
	Repo       RepositoryPort
	Audit      AuditPort
	Metrics    *observability.Metrics
	Cache      *redis.Client
	Logger     *slog.Logger
	SummaryTTL time.Duration
}

// Service orchestrates reconciliation: candidate lookup, the manual linking
// transaction and the invoice auto-matcher.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	metrics    *observability.Metrics
	cache      *redis.Client
	logger     *slog.Logger
	summaryTTL time.Duration
	sf         singleflight.Group

	// now is swapped in tests.
	now func() time.Time
}

// NewService constructs a reconciliation service.
func NewService(d ServiceDeps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := d.SummaryTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		repo:       d.Repo,
		audit:      d.Audit,
		metrics:    d.Metrics,
		cache:      d.Cache,
		logger:     logger,
		summaryTTL: ttl,
		now:        time.Now,
	}
}

// ListLinks returns the links of one payment.
func (s *Service) ListLinks(ctx context.Context, paymentID int64) ([]ReconciliationLink, error) {
	return s.repo.ListLinks(ctx, paymentID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "reconciliation",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}
