package pipeline_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

// fakeTaxonomy serves a fixed catalog snapshot; the HTTP-facing operations
// are never exercised by pipeline runs.
type fakeTaxonomy struct {
	catalog *taxonomy.Catalog
}

func (f *fakeTaxonomy) Handler() *taxonomy.Handler { return nil }

func (f *fakeTaxonomy) Snapshot(ctx context.Context) (*taxonomy.Catalog, error) {
	return f.catalog, nil
}

func (f *fakeTaxonomy) Axes(ctx context.Context) ([]taxonomy.Axis, error) {
	return f.catalog.Axes(), nil
}

func (f *fakeTaxonomy) ListTags(ctx context.Context, page pagination.PageRequest, filters taxonomy.TagFilters) (*pagination.PageResult[taxonomy.Tag], error) {
	return nil, taxonomy.ErrNotFound
}

func (f *fakeTaxonomy) FindTag(ctx context.Context, name string) (*taxonomy.Tag, error) {
	return nil, taxonomy.ErrNotFound
}

func (f *fakeTaxonomy) CreateTag(ctx context.Context, cmd taxonomy.CreateTagCommand) (*taxonomy.Tag, error) {
	return nil, taxonomy.ErrNotFound
}

func (f *fakeTaxonomy) DeactivateTag(ctx context.Context, name string) (*taxonomy.Tag, error) {
	return nil, taxonomy.ErrNotFound
}

// countingClient answers each axis prompt with one tag from that axis's
// vocabulary and tracks how many model calls the run issued.
type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	switch {
	case strings.HasPrefix(prompt, "Classifie le type"):
		return "T_Commande", nil
	case strings.HasPrefix(prompt, "Identifie le projet"):
		return "P_Optique2026", nil
	case strings.HasPrefix(prompt, "Identifie les fournisseurs"):
		return "F_Thales", nil
	case strings.HasPrefix(prompt, "Identifie les equipements"):
		return "EQT_Laser", nil
	case strings.HasPrefix(prompt, "Determine le statut"):
		return "S_EnCours", nil
	}
	return "", nil
}

func executeRuntime(t *testing.T, client pipeline.ModelClient) *pipeline.Runtime {
	t.Helper()

	cfg := pipeline.Config{
		MaxChunkTokens: 1000,
		OverlapTokens:  50,
		CharsPerToken:  4,
		SafetyFactor:   0.9,
		MaxRulePasses:  5,
		MaxRetries:     1,
		RetryBackoff:   time.Millisecond,
		CallTimeout:    time.Second,
		Concurrency:    2,
		SummaryAxis:    "resume",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	return &pipeline.Runtime{
		Config:   cfg,
		Taxonomy: &fakeTaxonomy{catalog: testCatalog(t, nil)},
		Client:   client,
		Cache:    pipeline.NewCache(nil, discardLogger()),
		Limiter:  pipeline.NewLimiter(cfg.Concurrency),
		Logger:   discardLogger(),
	}
}

func TestExecuteClassifiesConversation(t *testing.T) {
	client := &countingClient{}
	rt := executeRuntime(t, client)

	doc := pipeline.Document{
		ConversationID: "conv-42",
		Fingerprint:    "fp-1",
		Text:           "Bonjour, merci de confirmer la commande du banc optique.",
	}

	result, err := pipeline.Execute(context.Background(), rt, doc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.FromCache {
		t.Error("first run should not come from cache")
	}
	if result.Outcome != pipeline.RunSuccess {
		t.Errorf("outcome = %s, want %s", result.Outcome, pipeline.RunSuccess)
	}
	if got := client.calls.Load(); got != 5 {
		t.Errorf("model calls = %d, want one per axis", got)
	}

	tags := resultTags(result)
	for _, want := range []string{"T_Commande", "P_Optique2026", "F_Thales", "EQT_Laser", "S_EnCours"} {
		if _, present := tags[want]; !present {
			t.Errorf("result missing %s", want)
		}
	}
}

func TestExecuteCacheShortCircuit(t *testing.T) {
	client := &countingClient{}
	rt := executeRuntime(t, client)
	ctx := context.Background()

	doc := pipeline.Document{
		ConversationID: "conv-42",
		Fingerprint:    "fp-1",
		Text:           "Bonjour, merci de confirmer la commande du banc optique.",
	}

	first, err := pipeline.Execute(ctx, rt, doc)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	after := client.calls.Load()

	// Same conversation at the same fingerprint: served from cache, the
	// model is never consulted.
	second, err := pipeline.Execute(ctx, rt, doc)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.FromCache {
		t.Error("second run should come from cache")
	}
	if second.Outcome != first.Outcome {
		t.Errorf("cached outcome = %s, want %s", second.Outcome, first.Outcome)
	}
	if got := client.calls.Load(); got != after {
		t.Errorf("model calls after cache hit = %d, want %d", got, after)
	}

	// New content means a new fingerprint and a full recomputation.
	grown := doc
	grown.Fingerprint = "fp-2"
	grown.Text = doc.Text + "\n\nCommande confirmee, livraison en mai."

	third, err := pipeline.Execute(ctx, rt, grown)
	if err != nil {
		t.Fatalf("third Execute: %v", err)
	}
	if third.FromCache {
		t.Error("changed fingerprint should bypass the cache")
	}
	if got := client.calls.Load(); got <= after {
		t.Error("changed fingerprint should trigger new model calls")
	}
}

func TestExecuteRejectsEmptyDocument(t *testing.T) {
	client := &countingClient{}
	rt := executeRuntime(t, client)

	_, err := pipeline.Execute(context.Background(), rt, pipeline.Document{
		ConversationID: uuid.NewString(),
		Fingerprint:    "fp-empty",
		Text:           "   \n\t",
	})
	if err == nil {
		t.Fatal("empty document should be rejected")
	}
	if got := client.calls.Load(); got != 0 {
		t.Errorf("model calls = %d, want 0", got)
	}
}
