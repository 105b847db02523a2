// Package pipeline implements the conversation classification core: token
// bounded chunking, dependency ordered axis resolution against a language
// model, deterministic inference rules, vocabulary validation, and a
// conversation result cache. Domain packages feed it a taxonomy snapshot and
// a Document; it produces a Result with per-tag provenance.
package pipeline

import (
	"sort"
	"time"
)

// ChunkKind identifies the structural granularity a chunk was produced at.
type ChunkKind string

const (
	ChunkFull           ChunkKind = "full"
	ChunkParagraphGroup ChunkKind = "paragraph_group"
	ChunkSentenceGroup  ChunkKind = "sentence_group"
)

// Chunk is a token-bounded contiguous slice of a document's text.
// Text slices the original document exactly; Overlap is trailing context
// copied from the previous chunk and is never part of reassembly.
type Chunk struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Overlap   string    `json:"overlap,omitempty"`
	Tokens    int       `json:"tokens"`
	Kind      ChunkKind `json:"kind"`
	Oversized bool      `json:"oversized,omitempty"`
}

// Source identifies the mechanism that produced a tag assignment.
type Source string

const (
	SourceModel     Source = "llm"
	SourceRule      Source = "rule"
	SourceValidator Source = "validator"
	SourceHuman     Source = "human"
	SourceSearch    Source = "search"
)

// TagAssignment is one tag attached to an axis outcome, with provenance.
// Chunk records which chunk the winning assignment came from, when known.
type TagAssignment struct {
	Tag        string  `json:"tag"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	Chunk      *int    `json:"chunk,omitempty"`
}

// AxisStatus is the terminal state of one axis within a pipeline run.
type AxisStatus string

const (
	AxisResolved   AxisStatus = "resolved"
	AxisUnresolved AxisStatus = "unresolved"
)

// AxisOutcome is the result of resolving one axis.
type AxisOutcome struct {
	Axis   string          `json:"axis"`
	Status AxisStatus      `json:"status"`
	Tags   []TagAssignment `json:"tags,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// RunOutcome is the overall disposition of a pipeline run.
type RunOutcome string

const (
	RunSuccess RunOutcome = "success"
	RunPartial RunOutcome = "partial"
	RunFailed  RunOutcome = "failed"
)

// Result is the completed classification of one conversation.
type Result struct {
	ConversationID string                 `json:"conversation_id"`
	Fingerprint    string                 `json:"fingerprint"`
	Axes           map[string]AxisOutcome `json:"axes"`
	Summary        string                 `json:"summary,omitempty"`
	Findings       []Finding              `json:"findings,omitempty"`
	Outcome        RunOutcome             `json:"outcome"`
	FromCache      bool                   `json:"from_cache,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    time.Time              `json:"completed_at"`
}

// Tags returns every assigned tag across resolved axes, sorted by name.
func (r *Result) Tags() []TagAssignment {
	var tags []TagAssignment
	for _, outcome := range r.Axes {
		if outcome.Status == AxisResolved {
			tags = append(tags, outcome.Tags...)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Tag < tags[j].Tag
	})
	return tags
}

// Unresolved returns the names of axes that did not resolve, sorted.
func (r *Result) Unresolved() []string {
	var names []string
	for name, outcome := range r.Axes {
		if outcome.Status == AxisUnresolved {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Document is the unit of classification: the concatenated text of one
// conversation plus the identity the cache is keyed by.
type Document struct {
	ConversationID string
	Fingerprint    string
	Text           string
}

// Upstream is an immutable view of already-resolved axis results, threaded
// through the scheduler so downstream axes can condition on upstream tags.
// With returns a copy; the receiver is never mutated.
type Upstream struct {
	resolved map[string][]string
}

// With returns a new Upstream extended with the given axis results.
func (u Upstream) With(axis string, tags []string) Upstream {
	resolved := make(map[string][]string, len(u.resolved)+1)
	for k, v := range u.resolved {
		resolved[k] = v
	}
	resolved[axis] = append([]string(nil), tags...)
	return Upstream{resolved: resolved}
}

// Tags returns the resolved tag names for an axis.
func (u Upstream) Tags(axis string) []string {
	return append([]string(nil), u.resolved[axis]...)
}

// Axes returns the axis names present in the context, sorted.
func (u Upstream) Axes() []string {
	names := make([]string, 0, len(u.resolved))
	for name := range u.resolved {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of axes in the context.
func (u Upstream) Len() int {
	return len(u.resolved)
}
