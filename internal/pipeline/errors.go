package pipeline

import "errors"

// Pipeline errors. Only ErrEmptyDocument and ErrConfiguration abort a run;
// the remaining kinds are scoped to one axis or one tag and surface through
// Findings and unresolved axis markers instead.
var (
	ErrEmptyDocument        = errors.New("document contains no text")
	ErrConfiguration        = errors.New("invalid pipeline configuration")
	ErrAxisResolutionFailed = errors.New("axis resolution failed")
	ErrNoTagsExtracted      = errors.New("no recognized tags in model response")
)

// FindingKind classifies a non-fatal condition recorded during a run.
type FindingKind string

const (
	FindingChunkingDegraded      FindingKind = "chunking_degraded"
	FindingVocabularyViolation   FindingKind = "vocabulary_violation"
	FindingMultiplicityViolation FindingKind = "multiplicity_violation"
	FindingRuleCycleExceeded     FindingKind = "rule_cycle_exceeded"
	FindingUnsatisfiedRequire    FindingKind = "unsatisfied_require"
	FindingTagCorrected          FindingKind = "tag_corrected"
)

// Finding records a degraded-but-non-fatal condition for the audit trail.
type Finding struct {
	Kind    FindingKind `json:"kind"`
	Axis    string      `json:"axis,omitempty"`
	Tag     string      `json:"tag,omitempty"`
	Message string      `json:"message"`
}
