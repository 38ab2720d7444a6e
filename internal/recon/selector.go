package recon

import (
	"context"
	"time"

	"github.com/openfreight/linehaul/internal/loads"
)

// genericLimit bounds the fallback query for entities without a schedule.
const genericLimit = 20

// CandidateSet is the result of a candidate lookup.
type CandidateSet struct {
	Loads []loads.Load
	// Schedule is nil when the paying entity has no known settlement
	// schedule and the generic fallback was used.
	Schedule *Schedule
	// Suggestion is a close known entity name when Schedule is nil,
	// empty when nothing plausible exists.
	Suggestion string
}

// FindCandidates returns the loads a payment from entity, dated date, could
// plausibly cover. Only completed loads without a live link are returned.
//
// Entities with a weekly schedule see the trailing week up to the payment
// date, oldest delivery first. Daily entities see the previous day only.
// Unknown entities fall back to a bounded recency search across both the
// carrier and customer columns, newest first.
func (s *Service) FindCandidates(ctx context.Context, entity string, date time.Time) (CandidateSet, error) {
	date = date.Truncate(24 * time.Hour)
	sched, ok := ScheduleFor(entity)
	if !ok {
		items, err := s.repo.FindCandidatesGeneric(ctx, entity, date, genericLimit)
		if err != nil {
			return CandidateSet{}, err
		}
		return CandidateSet{Loads: items, Suggestion: SuggestEntity(entity)}, nil
	}

	var items []loads.Load
	var err error
	switch sched.Cadence {
	case CadenceDaily:
		items, err = s.repo.FindCandidatesDay(ctx, entity, date.AddDate(0, 0, -1))
	default:
		items, err = s.repo.FindCandidatesWindow(ctx, entity, date.AddDate(0, 0, -7), date)
	}
	if err != nil {
		return CandidateSet{}, err
	}
	return CandidateSet{Loads: items, Schedule: &sched}, nil
}
