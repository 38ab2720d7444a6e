package recon

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const summaryCacheKey = "recon:summary"

// Summary returns the unreconciled rollup per carrier. The rollup is cached
// in Redis; Reconcile and the auto-matcher invalidate it on success, so a
// cache hit is never more stale than the TTL after a write from outside this
// process.
func (s *Service) Summary(ctx context.Context) ([]CarrierSummary, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, summaryCacheKey).Bytes()
		if err == nil {
			var cached []CarrierSummary
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("summary cache read failed", "error", err)
		}
	}

	// Collapse concurrent rebuilds into one query.
	v, err, _ := s.sf.Do(summaryCacheKey, func() (any, error) {
		items, err := s.repo.UnreconciledByCarrier(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(items); err == nil {
				if err := s.cache.Set(ctx, summaryCacheKey, raw, s.summaryTTL).Err(); err != nil {
					s.logger.Warn("summary cache write failed", "error", err)
				}
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]CarrierSummary), nil
}

// WriteSummaryCSV streams the rollup as CSV with human-readable amounts.
func (s *Service) WriteSummaryCSV(ctx context.Context, w io.Writer) error {
	items, err := s.Summary(ctx)
	if err != nil {
		return err
	}
	printer := message.NewPrinter(language.English)
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"carrier", "loads", "total_net", "oldest_delivery"}); err != nil {
		return err
	}
	for _, item := range items {
		if err := cw.Write([]string{
			item.Carrier,
			strconv.Itoa(item.LoadCount),
			printer.Sprintf("%.2f", item.TotalAmount),
			item.OldestDelivery.Format("2006-01-02"),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, summaryCacheKey).Err(); err != nil {
		s.logger.Warn("summary cache invalidation failed", "error", err)
	}
}
