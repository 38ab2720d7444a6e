package recon

import (
	"context"
	"errors"
	"math"
	"strconv"
)

// ReconcileResult reports a committed manual reconciliation.
type ReconcileResult struct {
	PaymentID   int64
	LoadIDs     []int64
	TotalAmount float64
}

// Reconcile links one payment to the selected loads. The payment row is
// created inside the same transaction as the links, so either everything is
// persisted or nothing is. Every precondition is re-checked under row locks
// at commit time; a selection that was valid on screen can still fail here
// if another operator got there first.
func (s *Service) Reconcile(ctx context.Context, draft PaymentDraft, loadIDs []int64) (ReconcileResult, error) {
	if len(loadIDs) == 0 {
		return ReconcileResult{}, ErrEmptySelection
	}
	if draft.Amount <= 0 || draft.PayingEntity == "" {
		return ReconcileResult{}, ErrInvalidDraft
	}

	var result ReconcileResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LoadsForUpdate(ctx, loadIDs)
		if err != nil {
			return err
		}
		if len(locked) != len(loadIDs) {
			return ErrLoadNotFound
		}
		linked, err := tx.LinkedLoadIDs(ctx, loadIDs)
		if err != nil {
			return err
		}
		if len(linked) > 0 {
			return ErrAlreadyLinked
		}

		var total float64
		for _, l := range locked {
			total += l.NetAmount
		}
		total = math.Round(total*100) / 100
		if diff := math.Abs(total - draft.Amount); diff > Tolerance {
			return &AmountMismatchError{
				Expected:   draft.Amount,
				Actual:     total,
				Difference: math.Round(diff*100) / 100,
			}
		}

		at := s.now()
		paymentID, err := tx.InsertReconciledPayment(ctx, draft, at)
		if err != nil {
			return err
		}
		for _, l := range locked {
			if err := tx.InsertLink(ctx, ReconciliationLink{
				PaymentID:     paymentID,
				LoadID:        l.ID,
				MatchedAmount: l.NetAmount,
				ReconciledBy:  draft.ActorID,
			}); err != nil {
				return err
			}
		}
		result = ReconcileResult{PaymentID: paymentID, LoadIDs: loadIDs, TotalAmount: total}
		return nil
	})
	if err != nil {
		s.metrics.ObserveReconciliation(outcomeFor(err))
		return ReconcileResult{}, err
	}

	s.metrics.ObserveReconciliation("matched")
	s.invalidateSummary(ctx)
	s.recordAudit(ctx, draft.ActorID, "RECON_LINK", strconv.FormatInt(result.PaymentID, 10), map[string]any{
		"loads":  result.LoadIDs,
		"amount": draft.Amount,
	})
	return result, nil
}

func outcomeFor(err error) string {
	var mismatch *AmountMismatchError
	switch {
	case errors.As(err, &mismatch):
		return "mismatch"
	case errors.Is(err, ErrAlreadyLinked):
		return "conflict"
	case errors.Is(err, ErrLoadNotFound), errors.Is(err, ErrEmptySelection), errors.Is(err, ErrInvalidDraft):
		return "rejected"
	default:
		return "error"
	}
}
