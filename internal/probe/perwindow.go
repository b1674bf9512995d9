package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/courtsniper/internal/allocator"
)

// PerWindow asks the portal about each (start, duration) window. Windows
// of one duration are probed concurrently; once the windows resolved so far
// already satisfy the request, the rest of the batch is abandoned and no
// shorter duration is tried.
type PerWindow struct {
	// Concurrency bounds in-flight requests per batch; zero means one per slot.
	Concurrency       int
	DiscoverDurations bool
	Log               *zap.Logger
}

func (p *PerWindow) Probe(ctx context.Context, portal Portal, req Request) (allocator.Availability, error) {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	table := allocator.NewWindowTable()
	durations := req.Durations

	if req.PinnedCourt != 0 {
		for _, d := range durations {
			for _, s := range req.Slots {
				table.Set(s, d, allocator.NewCourtSet(req.PinnedCourt))
			}
		}
		return table, nil
	}

	if p.DiscoverDurations && len(req.Slots) > 0 && len(durations) > 1 {
		durations = p.offered(ctx, portal, req, durations)
	}

	for i, d := range durations {
		done, err := p.batch(ctx, portal, req, table, durations[:i+1], d)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return table, nil
}

// offered keeps the durations the venue lists for the first slot. The list
// is advisory; failures leave durations unchanged.
func (p *PerWindow) offered(ctx context.Context, portal Portal, req Request, durations []int) []int {
	opts, err := portal.DurationOptions(ctx, req.Date, req.Slots[0], durations[len(durations)-1])
	if err != nil || len(opts) == 0 {
		p.Log.Debug("duration discovery unavailable", zap.Error(err))
		return durations
	}
	allowed := map[int]bool{}
	for _, o := range opts {
		allowed[o] = true
	}
	var out []int
	for _, d := range durations {
		if allowed[d] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return durations
	}
	return out
}

func (p *PerWindow) batch(ctx context.Context, portal Portal, req Request, table *allocator.WindowTable, scanned []int, d int) (bool, error) {
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(bctx)
	limit := p.Concurrency
	if limit <= 0 {
		limit = len(req.Slots)
	}
	g.SetLimit(limit)

	var mu sync.Mutex
	results := make([]allocator.CourtSet, len(req.Slots))
	resolved := make([]bool, len(req.Slots))
	enough := false

	for i, s := range req.Slots {
		i, s := i, s
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			courts, err := portal.AvailableCourts(gctx, req.Date, s, d)
			mu.Lock()
			defer mu.Unlock()
			if enough {
				return nil
			}
			if err != nil {
				return fmt.Errorf("per-window probe %s+%dm: %w", s, d, err)
			}
			results[i] = allocator.NewCourtSet(courts...)
			resolved[i] = true
			if p.satisfied(req, table, scanned, d, results, resolved) {
				enough = true
				cancel()
			}
			return nil
		})
	}
	err := g.Wait()

	for i, s := range req.Slots {
		if resolved[i] {
			table.Set(s, d, results[i])
		}
	}
	if enough {
		p.Log.Debug("enough windows found", zap.Int("duration", d), zap.Int("probed", table.Len()))
		return true, nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	return false, nil
}

// satisfied reports whether the resolved prefix of this batch, together
// with earlier batches, already reaches req.Need. Caller holds the lock.
func (p *PerWindow) satisfied(req Request, table *allocator.WindowTable, scanned []int, d int, results []allocator.CourtSet, resolved []bool) bool {
	view := &prefixView{base: table, duration: d}
	for i, s := range req.Slots {
		if !resolved[i] {
			break
		}
		view.add(s, results[i])
	}
	total := 0
	for _, o := range allocator.Allocate(view, req.Slots, scanned, req.Need) {
		total += o.Courts.Len()
	}
	return total >= req.Need
}
