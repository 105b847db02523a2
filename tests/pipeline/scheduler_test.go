package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

func TestSchedulerResolvesAllAxes(t *testing.T) {
	catalog := testCatalog(t, nil)
	s := pipeline.NewScheduler(catalog, pipeline.NewLimiter(2), discardLogger())

	var mu sync.Mutex
	var order []string

	resolver := func(ctx context.Context, axis taxonomy.Axis, upstream pipeline.Upstream) ([]pipeline.TagAssignment, error) {
		mu.Lock()
		order = append(order, axis.Name)
		mu.Unlock()
		return []pipeline.TagAssignment{
			{Tag: axis.Prefix + "Test", Source: pipeline.SourceModel, Confidence: 0.9},
		}, nil
	}

	outcomes := s.Run(context.Background(), resolver)

	if len(outcomes) != 5 {
		t.Fatalf("outcomes = %d, want 5", len(outcomes))
	}
	for name, outcome := range outcomes {
		if outcome.Status != pipeline.AxisResolved {
			t.Errorf("axis %s: status %s, want resolved", name, outcome.Status)
		}
	}

	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}
	if position["fournisseur"] < position["projet"] {
		t.Error("fournisseur should resolve after its projet dependency")
	}
	if position["equipement"] < position["fournisseur"] {
		t.Error("equipement should resolve after its fournisseur dependency")
	}
}

func TestSchedulerInjectsUpstream(t *testing.T) {
	catalog := testCatalog(t, nil)
	s := pipeline.NewScheduler(catalog, pipeline.NewLimiter(2), discardLogger())

	var mu sync.Mutex
	seen := make(map[string][]string)

	resolver := func(ctx context.Context, axis taxonomy.Axis, upstream pipeline.Upstream) ([]pipeline.TagAssignment, error) {
		mu.Lock()
		seen[axis.Name] = upstream.Axes()
		mu.Unlock()
		return []pipeline.TagAssignment{
			{Tag: axis.Prefix + "Test", Source: pipeline.SourceModel, Confidence: 0.9},
		}, nil
	}

	s.Run(context.Background(), resolver)

	if len(seen["projet"]) != 0 {
		t.Errorf("projet upstream = %v, want empty", seen["projet"])
	}
	if len(seen["fournisseur"]) != 1 || seen["fournisseur"][0] != "projet" {
		t.Errorf("fournisseur upstream = %v, want [projet]", seen["fournisseur"])
	}
	// Transitive closure, not just direct dependencies.
	if len(seen["equipement"]) != 2 || seen["equipement"][0] != "fournisseur" || seen["equipement"][1] != "projet" {
		t.Errorf("equipement upstream = %v, want [fournisseur projet]", seen["equipement"])
	}
}

func TestSchedulerUpstreamCarriesTags(t *testing.T) {
	catalog := testCatalog(t, nil)
	s := pipeline.NewScheduler(catalog, pipeline.NewLimiter(1), discardLogger())

	var mu sync.Mutex
	var carried []string

	resolver := func(ctx context.Context, axis taxonomy.Axis, upstream pipeline.Upstream) ([]pipeline.TagAssignment, error) {
		if axis.Name == "projet" {
			return []pipeline.TagAssignment{
				{Tag: "P_Optique2026", Source: pipeline.SourceModel, Confidence: 0.9},
				{Tag: "C_AGS", Source: pipeline.SourceModel, Confidence: 0.9},
			}, nil
		}
		if axis.Name == "fournisseur" {
			mu.Lock()
			carried = upstream.Tags("projet")
			mu.Unlock()
		}
		return nil, nil
	}

	s.Run(context.Background(), resolver)

	if len(carried) != 2 || carried[0] != "P_Optique2026" || carried[1] != "C_AGS" {
		t.Errorf("carried tags = %v, want [P_Optique2026 C_AGS]", carried)
	}
}

func TestSchedulerCascadesUnresolved(t *testing.T) {
	catalog := testCatalog(t, nil)
	s := pipeline.NewScheduler(catalog, pipeline.NewLimiter(2), discardLogger())

	resolver := func(ctx context.Context, axis taxonomy.Axis, upstream pipeline.Upstream) ([]pipeline.TagAssignment, error) {
		if axis.Name == "projet" {
			return nil, errors.New("model unavailable")
		}
		return []pipeline.TagAssignment{
			{Tag: axis.Prefix + "Test", Source: pipeline.SourceModel, Confidence: 0.9},
		}, nil
	}

	outcomes := s.Run(context.Background(), resolver)

	for _, name := range []string{"projet", "fournisseur", "equipement"} {
		if outcomes[name].Status != pipeline.AxisUnresolved {
			t.Errorf("axis %s: status %s, want unresolved", name, outcomes[name].Status)
		}
	}
	if !strings.Contains(outcomes["fournisseur"].Reason, "unresolved") {
		t.Errorf("fournisseur reason = %q, want cascade reason", outcomes["fournisseur"].Reason)
	}

	// Independent axes keep going.
	for _, name := range []string{"type", "statut"} {
		if outcomes[name].Status != pipeline.AxisResolved {
			t.Errorf("axis %s: status %s, want resolved", name, outcomes[name].Status)
		}
	}
}

func TestSchedulerSharedLimiterBoundsRuns(t *testing.T) {
	catalog := testCatalog(t, nil)
	limiter := pipeline.NewLimiter(1)

	var inFlight, peak atomic.Int32
	resolver := func(ctx context.Context, axis taxonomy.Axis, upstream pipeline.Upstream) ([]pipeline.TagAssignment, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return []pipeline.TagAssignment{
			{Tag: axis.Prefix + "Test", Source: pipeline.SourceModel, Confidence: 0.9},
		}, nil
	}

	// Two runs against the same limiter: the call bound holds across them,
	// not per run.
	var wg sync.WaitGroup
	for range 2 {
		s := pipeline.NewScheduler(catalog, limiter, discardLogger())
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(context.Background(), resolver)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 1 {
		t.Errorf("peak concurrent resolver calls = %d, want at most 1", got)
	}
}

func TestSchedulerCancellation(t *testing.T) {
	catalog := testCatalog(t, nil)
	s := pipeline.NewScheduler(catalog, pipeline.NewLimiter(1), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := func(ctx context.Context, axis taxonomy.Axis, upstream pipeline.Upstream) ([]pipeline.TagAssignment, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return nil, nil
		}
	}

	outcomes := s.Run(ctx, resolver)

	for name, outcome := range outcomes {
		if outcome.Status == pipeline.AxisResolved {
			t.Errorf("axis %s resolved after cancellation", name)
		}
	}
}
