package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// Resolver resolves one axis given the upstream context of already-resolved
// dependency results. Returning an error marks the axis unresolved; it never
// fails the run.
type Resolver func(ctx context.Context, axis taxonomy.Axis, upstream Upstream) ([]TagAssignment, error)

// Limiter bounds concurrent outbound model calls. One Limiter shared across
// schedulers caps the service-wide call rate, not just a single run's.
type Limiter chan struct{}

// NewLimiter creates a Limiter admitting at most n concurrent calls.
func NewLimiter(n int) Limiter {
	if n < 1 {
		n = 1
	}
	return make(Limiter, n)
}

func (l Limiter) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l Limiter) release() {
	<-l
}

// Scheduler drives one classification pass over the catalog's axes. Axes
// wait on their direct dependencies and otherwise run concurrently, bounded
// by the shared limiter on outbound model calls. A failed axis cascades
// unresolved status to its transitive dependents; independent axes continue.
type Scheduler struct {
	catalog *taxonomy.Catalog
	limiter Limiter
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler over a validated catalog snapshot.
func NewScheduler(catalog *taxonomy.Catalog, limiter Limiter, logger *slog.Logger) *Scheduler {
	if limiter == nil {
		limiter = NewLimiter(1)
	}
	return &Scheduler{
		catalog: catalog,
		limiter: limiter,
		logger:  logger.With("system", "scheduler"),
	}
}

// Run executes the resolver for every axis in dependency order and returns
// the terminal outcome per axis. Cancellation is honored between axis
// resolutions; in-flight calls are bounded by the resolver's own timeout.
func (s *Scheduler) Run(ctx context.Context, resolve Resolver) map[string]AxisOutcome {
	axes := s.catalog.Axes()

	done := make(map[string]chan struct{}, len(axes))
	for _, axis := range axes {
		done[axis.Name] = make(chan struct{})
	}

	var mu sync.Mutex
	outcomes := make(map[string]AxisOutcome, len(axes))

	record := func(outcome AxisOutcome) {
		mu.Lock()
		outcomes[outcome.Axis] = outcome
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, axis := range axes {
		g.Go(func() error {
			defer close(done[axis.Name])

			for _, dep := range axis.DependsOn {
				select {
				case <-done[dep]:
				case <-gctx.Done():
					record(unresolved(axis.Name, "cancelled"))
					return nil
				}
			}

			upstream, blocked := s.upstream(axis, outcomes, &mu)
			if blocked != "" {
				record(unresolved(axis.Name, fmt.Sprintf("dependency %s unresolved", blocked)))
				s.logger.Warn("axis skipped", "axis", axis.Name, "blocked_by", blocked)
				return nil
			}

			// Limiter slots cover the model call only; dependency
			// waits above hold no slot.
			if err := s.limiter.acquire(gctx); err != nil {
				record(unresolved(axis.Name, "cancelled"))
				return nil
			}
			started := time.Now()
			tags, err := resolve(gctx, axis, upstream)
			s.limiter.release()

			if err != nil {
				record(unresolved(axis.Name, err.Error()))
				s.logger.Warn("axis unresolved",
					"axis", axis.Name,
					"duration", time.Since(started),
					"error", err,
				)
				return nil
			}

			record(AxisOutcome{Axis: axis.Name, Status: AxisResolved, Tags: tags})
			s.logger.Info("axis resolved",
				"axis", axis.Name,
				"tags", len(tags),
				"duration", time.Since(started),
			)
			return nil
		})
	}

	g.Wait()
	return outcomes
}

// upstream assembles the immutable context of transitively resolved
// dependency results. Returns the name of the first unresolved dependency
// when the axis must cascade instead of executing.
func (s *Scheduler) upstream(
	axis taxonomy.Axis,
	outcomes map[string]AxisOutcome,
	mu *sync.Mutex,
) (Upstream, string) {
	mu.Lock()
	defer mu.Unlock()

	var upstream Upstream
	for _, dep := range s.catalog.TransitiveDeps(axis.Name) {
		outcome, ok := outcomes[dep]
		if !ok || outcome.Status != AxisResolved {
			return Upstream{}, dep
		}

		names := make([]string, 0, len(outcome.Tags))
		for _, a := range outcome.Tags {
			names = append(names, a.Tag)
		}
		upstream = upstream.With(dep, names)
	}
	return upstream, ""
}

func unresolved(axis, reason string) AxisOutcome {
	return AxisOutcome{Axis: axis, Status: AxisUnresolved, Reason: reason}
}
