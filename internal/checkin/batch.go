package checkin

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchRequest checks several people into locations at once, typically a
// family at a kiosk.
type BatchRequest struct {
	Items []Request `json:"items" validate:"required,min=1,max=50,dive"`
}

// BatchItem is the outcome of one entry.  Error is set when the entry
// failed with a fault or malformed input rather than a rejection.
type BatchItem struct {
	Index  int    `json:"index"`
	Result Result `json:"result"`
	Error  string `json:"error,omitempty"`
}

// BatchResult collects every entry's outcome in request order.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	ElapsedMs int64       `json:"elapsed_ms"`
}

// CheckInBatch runs each entry as an independent check-in with bounded
// concurrency.  One entry failing never aborts the others; an
// authorization failure on an entry is reported on that entry only.
func (s *Service) CheckInBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	if len(req.Items) == 0 {
		return BatchResult{}, invalid("items", "at least one item is required")
	}
	started := time.Now()
	out := BatchResult{Items: make([]BatchItem, len(req.Items))}

	var g errgroup.Group
	g.SetLimit(s.opts.BatchConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			res, err := s.CheckIn(ctx, item)
			bi := BatchItem{Index: i, Result: res}
			if err != nil {
				bi.Error = batchError(err)
			}
			out.Items[i] = bi
			return nil
		})
	}
	_ = g.Wait()

	for _, it := range out.Items {
		if it.Result.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	elapsed := time.Since(started)
	out.ElapsedMs = elapsed.Milliseconds()
	if elapsed > s.opts.BatchLatencyBudget {
		s.log.Warn().Dur("elapsed", elapsed).Dur("budget", s.opts.BatchLatencyBudget).
			Int("items", len(req.Items)).Msg("batch check-in exceeded latency budget")
	}
	return out, nil
}

// batchError renders a per-entry error without leaking internals.
func batchError(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrUnauthorized):
		return "not permitted"
	default:
		return "an unexpected error occurred"
	}
}
