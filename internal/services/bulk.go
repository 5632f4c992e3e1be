package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"ticketing-engine/internal/models"
)

// BulkCheckIn verifies every ticket number independently. An item that fails
// never stops the others; results keep the order of the input.
func (s *TicketService) BulkCheckIn(ctx context.Context, req *models.BulkCheckInRequest) (*models.BulkCheckInSummary, error) {
	numbers := normalizeTicketNumbers(req.TicketNumbers)
	gate := s.resolveGate(req.Gate)

	results := make([]*models.ScanResult, len(numbers))
	check := func(i int) {
		res, err := s.verifyByNumber(ctx, methodBulk, numbers[i], req.EventID, gate)
		if err != nil {
			s.log.Error("CHECKIN", fmt.Sprintf("Bulk item %q failed: %v", numbers[i], err))
			res = s.invalid(methodBulk, gate, s.now(), msgProcessingError)
		}
		results[i] = res
	}

	if s.opts.BulkWorkers <= 1 || len(numbers) < 2 {
		for i := range numbers {
			check(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.opts.BulkWorkers)
		for i := range numbers {
			i := i
			g.Go(func() error {
				check(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &models.BulkCheckInSummary{Total: len(results), Results: results}
	for _, r := range results {
		switch r.Status {
		case models.ScanValid:
			summary.Successful++
		case models.ScanDuplicate:
			summary.Duplicate++
		default:
			summary.Invalid++
		}
	}

	s.log.LogCheckin("BULK", gate, fmt.Sprintf("%d processed: %d valid, %d duplicate, %d invalid",
		summary.Total, summary.Successful, summary.Duplicate, summary.Invalid))
	return summary, nil
}

// normalizeTicketNumbers trims entries and drops blanks. Repeats are kept so
// a second presentation in the same batch is recorded as a re-entry.
func normalizeTicketNumbers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
