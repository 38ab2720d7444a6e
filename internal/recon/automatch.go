package recon

import (
	"context"

	"github.com/google/uuid"

	"github.com/openfreight/linehaul/internal/payments"
)

// AutoMatchAll walks every unreconciled payment and settles the ones whose
// amount exactly equals an open invoice dated on or before the payment date.
// Matching is strict equality; anything the rule does not cover is left for
// manual reconciliation.
//
// Each payment gets its own transaction so one bad row never rolls back the
// rest of the batch. Failures are counted as unmatched and logged.
func (s *Service) AutoMatchAll(ctx context.Context, actorID int64) (MatchReport, error) {
	open, err := s.repo.ListOpenPayments(ctx)
	if err != nil {
		return MatchReport{}, err
	}

	runID := uuid.NewString()
	report := MatchReport{TotalCandidates: len(open)}
	for _, p := range open {
		matched, err := s.autoMatchOne(ctx, p)
		if err != nil {
			s.logger.Error("auto-match payment failed", "run_id", runID, "payment_id", p.ID, "error", err)
			report.Unmatched++
			continue
		}
		if matched {
			report.Matched++
		} else {
			report.Unmatched++
		}
	}

	s.metrics.ObserveAutoMatchRun(report.Matched)
	if report.Matched > 0 {
		s.invalidateSummary(ctx)
	}
	s.recordAudit(ctx, actorID, "RECON_AUTOMATCH", runID, map[string]any{
		"total":     report.TotalCandidates,
		"matched":   report.Matched,
		"unmatched": report.Unmatched,
	})
	s.logger.Info("auto-match run finished", "run_id", runID,
		"total", report.TotalCandidates, "matched", report.Matched, "unmatched", report.Unmatched)
	return report, nil
}

func (s *Service) autoMatchOne(ctx context.Context, p payments.Payment) (bool, error) {
	matched := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, ok, err := tx.FindInvoiceMatch(ctx, p.Amount, p.PaymentDate)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.MarkInvoicePaid(ctx, inv.ID, p.PaymentDate); err != nil {
			return err
		}
		if err := tx.MarkPaymentReconciled(ctx, p.ID, s.now()); err != nil {
			return err
		}
		matched = true
		return nil
	})
	return matched, err
}
