package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// State keys threaded through the classification graph.
const (
	KeyDocument = "document"
	KeyCatalog  = "catalog"
	KeyChunks   = "chunks"
	KeyResult   = "result"
	KeyCacheHit = "cache_hit"
)

const modelConfidence = 0.9

// Execute runs the classification pipeline for a single conversation. It
// builds the state graph (lookup → prepare → resolve → infer → validate →
// finalize, with a cache-hit short circuit), executes it, and extracts the
// Result from the final state.
func Execute(ctx context.Context, rt *Runtime, doc Document) (*Result, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyDocument
	}

	graph, err := buildGraph(rt)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initial := state.New(nil)
	initial = initial.Set(KeyDocument, doc)

	final, err := graph.Execute(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractResult(final)
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("mailcls-classify")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("lookup", LookupNode(rt)); err != nil {
		return nil, err
	}
	if err := graph.AddNode("prepare", PrepareNode(rt)); err != nil {
		return nil, err
	}
	if err := graph.AddNode("resolve", ResolveNode(rt)); err != nil {
		return nil, err
	}
	if err := graph.AddNode("infer", InferNode(rt)); err != nil {
		return nil, err
	}
	if err := graph.AddNode("validate", ValidateNode(rt)); err != nil {
		return nil, err
	}
	if err := graph.AddNode("finalize", FinalizeNode(rt)); err != nil {
		return nil, err
	}

	// lookup → finalize (cache hit)
	if err := graph.AddEdge("lookup", "finalize", cacheHit); err != nil {
		return nil, err
	}

	// lookup → prepare (cache miss)
	if err := graph.AddEdge("lookup", "prepare", state.Not(cacheHit)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("prepare", "resolve", nil); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("resolve", "infer", nil); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("infer", "validate", nil); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("validate", "finalize", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("lookup"); err != nil {
		return nil, err
	}
	if err := graph.SetExitPoint("finalize"); err != nil {
		return nil, err
	}

	return graph, nil
}

func cacheHit(s state.State) bool {
	val, ok := s.Get(KeyCacheHit)
	if !ok {
		return false
	}
	hit, ok := val.(bool)
	return ok && hit
}

// LookupNode consults the conversation cache. A hit short-circuits the run;
// a miss is not an error, only the trigger for recomputation.
func LookupNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		doc, err := extractDocument(s)
		if err != nil {
			return s, fmt.Errorf("lookup: %w", err)
		}

		cached, hit := rt.Cache.Lookup(ctx, doc.ConversationID, doc.Fingerprint)
		if !hit {
			s = s.Set(KeyCacheHit, false)
			return s, nil
		}

		result := *cached
		result.FromCache = true

		rt.Logger.InfoContext(ctx, "cache hit",
			"conversation_id", doc.ConversationID,
			"fingerprint", doc.Fingerprint,
		)

		s = s.Set(KeyResult, result)
		s = s.Set(KeyCacheHit, true)
		return s, nil
	})
}

// PrepareNode loads the taxonomy snapshot and chunks the document text.
// Oversized indivisible chunks are recorded as degraded findings, never
// as failures.
func PrepareNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		doc, err := extractDocument(s)
		if err != nil {
			return s, fmt.Errorf("prepare: %w", err)
		}

		catalog, err := rt.Taxonomy.Snapshot(ctx)
		if err != nil {
			return s, fmt.Errorf("prepare: taxonomy snapshot: %w", err)
		}

		chunker := NewChunker(
			rt.Config.EffectiveMaxTokens(),
			rt.Config.OverlapTokens,
			ApproxCounter(rt.Config.CharsPerToken),
		)

		chunks, err := chunker.Split(doc.Text)
		if err != nil {
			return s, fmt.Errorf("prepare: chunk document: %w", err)
		}

		result := Result{
			ConversationID: doc.ConversationID,
			Fingerprint:    doc.Fingerprint,
			Axes:           make(map[string]AxisOutcome),
			StartedAt:      time.Now(),
		}
		for _, chunk := range chunks {
			if chunk.Oversized {
				result.Findings = append(result.Findings, Finding{
					Kind:    FindingChunkingDegraded,
					Message: fmt.Sprintf("chunk %d exceeds the token budget (%d tokens)", chunk.Index, chunk.Tokens),
				})
			}
		}

		rt.Logger.InfoContext(ctx, "document prepared",
			"conversation_id", doc.ConversationID,
			"chunks", len(chunks),
		)

		s = s.Set(KeyCatalog, catalog)
		s = s.Set(KeyChunks, chunks)
		s = s.Set(KeyResult, result)
		return s, nil
	})
}

// ResolveNode drives the axis scheduler with a resolver that evaluates each
// axis once per chunk and merges the extracted tags. The summary axis stores
// its raw response instead of contributing tags.
func ResolveNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		catalog, chunks, result, err := extractWork(s)
		if err != nil {
			return s, fmt.Errorf("resolve: %w", err)
		}

		var summaryMu sync.Mutex
		var summaries []string

		resolver := func(ctx context.Context, axis taxonomy.Axis, upstream Upstream) ([]TagAssignment, error) {
			rulesText := catalog.RulesText(axis.Name)
			perChunk := make([][]TagAssignment, 0, len(chunks))

			for _, chunk := range chunks {
				prompt := ComposeAxisPrompt(axis, rulesText, upstream, chunk, len(chunks))
				content, err := completeWithRetry(
					ctx, rt.Client, prompt,
					rt.Config.MaxRetries, rt.Config.RetryBackoff, rt.Config.CallTimeout,
					rt.Logger.With("axis", axis.Name),
				)
				if err != nil {
					return nil, err
				}

				if axis.Name == rt.Config.SummaryAxis {
					summaryMu.Lock()
					summaries = append(summaries, strings.TrimSpace(content))
					summaryMu.Unlock()
					continue
				}

				index := chunk.Index
				assignments := make([]TagAssignment, 0)
				for _, tag := range ExtractTags(content, catalog) {
					assignments = append(assignments, TagAssignment{
						Tag:        tag,
						Source:     SourceModel,
						Confidence: modelConfidence,
						Chunk:      &index,
					})
				}
				perChunk = append(perChunk, assignments)
			}

			if axis.Name == rt.Config.SummaryAxis {
				return nil, nil
			}
			return mergeAssignments(axis, perChunk), nil
		}

		limiter := rt.Limiter
		if limiter == nil {
			limiter = NewLimiter(rt.Config.Concurrency)
		}
		scheduler := NewScheduler(catalog, limiter, rt.Logger)
		result.Axes = scheduler.Run(ctx, resolver)
		result.Summary = strings.Join(summaries, "\n\n")

		s = s.Set(KeyResult, result)
		return s, nil
	})
}

// InferNode applies the deterministic inference rules to the resolved tag set.
func InferNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		catalog, _, result, err := extractWork(s)
		if err != nil {
			return s, fmt.Errorf("infer: %w", err)
		}

		findings := ApplyRules(catalog, &result, rt.Config.MaxRulePasses)
		result.Findings = append(result.Findings, findings...)

		s = s.Set(KeyResult, result)
		return s, nil
	})
}

// ValidateNode enforces vocabulary and multiplicity constraints.
func ValidateNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		catalog, _, result, err := extractWork(s)
		if err != nil {
			return s, fmt.Errorf("validate: %w", err)
		}

		validator := NewValidator(
			catalog, rt.Client,
			rt.Config.AutoCorrect, rt.Config.CallTimeout,
			rt.Logger,
		)
		findings := validator.Validate(ctx, &result)
		result.Findings = append(result.Findings, findings...)

		s = s.Set(KeyResult, result)
		return s, nil
	})
}

// FinalizeNode settles the run outcome and writes through the cache.
// Cache hits pass straight through untouched.
func FinalizeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		result, err := extractResultState(s)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		if result.FromCache {
			return s, nil
		}

		result.CompletedAt = time.Now()
		if len(result.Unresolved()) > 0 {
			result.Outcome = RunPartial
		} else {
			result.Outcome = RunSuccess
		}

		rt.Cache.Store(ctx, result.ConversationID, result.Fingerprint, &result)

		rt.Logger.InfoContext(ctx, "classification complete",
			"conversation_id", result.ConversationID,
			"outcome", result.Outcome,
			"unresolved", result.Unresolved(),
			"duration", result.CompletedAt.Sub(result.StartedAt),
		)

		s = s.Set(KeyResult, result)
		return s, nil
	})
}

func extractDocument(s state.State) (Document, error) {
	val, ok := s.Get(KeyDocument)
	if !ok {
		return Document{}, fmt.Errorf("missing %s in state", KeyDocument)
	}
	doc, ok := val.(Document)
	if !ok {
		return Document{}, fmt.Errorf("%s is not Document", KeyDocument)
	}
	return doc, nil
}

func extractResultState(s state.State) (Result, error) {
	val, ok := s.Get(KeyResult)
	if !ok {
		return Result{}, fmt.Errorf("missing %s in state", KeyResult)
	}
	result, ok := val.(Result)
	if !ok {
		return Result{}, fmt.Errorf("%s is not Result", KeyResult)
	}
	return result, nil
}

func extractWork(s state.State) (*taxonomy.Catalog, []Chunk, Result, error) {
	val, ok := s.Get(KeyCatalog)
	if !ok {
		return nil, nil, Result{}, fmt.Errorf("missing %s in state", KeyCatalog)
	}
	catalog, ok := val.(*taxonomy.Catalog)
	if !ok {
		return nil, nil, Result{}, fmt.Errorf("%s is not *taxonomy.Catalog", KeyCatalog)
	}

	val, ok = s.Get(KeyChunks)
	if !ok {
		return nil, nil, Result{}, fmt.Errorf("missing %s in state", KeyChunks)
	}
	chunks, ok := val.([]Chunk)
	if !ok {
		return nil, nil, Result{}, fmt.Errorf("%s is not []Chunk", KeyChunks)
	}

	result, err := extractResultState(s)
	if err != nil {
		return nil, nil, Result{}, err
	}

	return catalog, chunks, result, nil
}

func extractResult(s state.State) (*Result, error) {
	result, err := extractResultState(s)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
