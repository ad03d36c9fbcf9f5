// Package listing queries existing broadcasts by status and merges the
// results into one de-duplicated, ordered list.
package listing

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ytc/internal/broadcast"
	"ytc/internal/youtube"
	"ytc/pkg/logx"
)

// DefaultLimit applies when the caller passes a non-positive limit.
const DefaultLimit = 100

type Engine struct {
	session *youtube.Session
	log     logx.Logger
}

func New(session *youtube.Session, log logx.Logger) *Engine {
	return &Engine{session: session, log: log.With(logx.String("comp", "listing"))}
}

// List returns up to limit broadcasts matching any of filters. Results are
// unique by id and ordered by scheduled start, newest first, with
// unscheduled broadcasts last and ties broken by title descending.
func (e *Engine) List(ctx context.Context, filters []broadcast.Filter, limit int) ([]broadcast.Listed, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	filters = broadcast.NormalizeFilters(filters)

	svc, err := e.session.Service(ctx)
	if err != nil {
		return nil, err
	}

	// Each query fills its own slot so the merge order does not depend on
	// which request finishes first.
	results := make([][]broadcast.Remote, len(filters))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range filters {
		g.Go(func() error {
			// Uncapped: the limit applies to the merged order, not the
			// service's page order.
			items, err := svc.ListBroadcasts(gctx, f, 0)
			if err != nil {
				return broadcast.WrapRemote("list "+f.String(), err)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := Merge(results...)
	if len(out) > limit {
		out = out[:limit]
	}
	e.log.Debug("listed broadcasts",
		logx.Any("filters", filters),
		logx.Int("count", len(out)))
	return out, nil
}

// Merge concatenates the batches, keeps the first record seen for each id
// and sorts the result.
func Merge(batches ...[]broadcast.Remote) []broadcast.Listed {
	seen := map[string]struct{}{}
	var out []broadcast.Listed
	for _, batch := range batches {
		for _, r := range batch {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r.ToListed())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(a, b broadcast.Listed) bool {
	switch {
	case a.ScheduledStart == nil && b.ScheduledStart == nil:
	case a.ScheduledStart == nil:
		return false
	case b.ScheduledStart == nil:
		return true
	case !a.ScheduledStart.Equal(*b.ScheduledStart):
		return a.ScheduledStart.After(*b.ScheduledStart)
	}
	return strings.Compare(a.Title, b.Title) > 0
}
