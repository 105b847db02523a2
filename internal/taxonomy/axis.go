// Package taxonomy implements the classification vocabulary domain.
// It provides types, data access, and startup validation for axes, tags,
// constraints, and inference rules that drive the classification pipeline.
package taxonomy

import (
	"encoding/json"
	"slices"
)

// Vocabulary controls whether an axis restricts tags to its declared set.
type Vocabulary string

// Vocabulary modes.
const (
	VocabularyClosed Vocabulary = "closed"
	VocabularyOpen   Vocabulary = "open"
)

// Multiplicity controls how many tags an axis may carry in a final result.
type Multiplicity string

// Multiplicity modes.
const (
	MultiplicitySingle   Multiplicity = "single"
	MultiplicityMultiple Multiplicity = "multiple"
)

var vocabularies = []Vocabulary{VocabularyClosed, VocabularyOpen}
var multiplicities = []Multiplicity{MultiplicitySingle, MultiplicityMultiple}

// UnmarshalJSON validates that the decoded string is a known vocabulary mode.
func (v *Vocabulary) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value := Vocabulary(raw)
	if !slices.Contains(vocabularies, value) {
		return ErrInvalidVocabulary
	}
	*v = value
	return nil
}

// UnmarshalJSON validates that the decoded string is a known multiplicity mode.
func (m *Multiplicity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value := Multiplicity(raw)
	if !slices.Contains(multiplicities, value) {
		return ErrInvalidMultiplicity
	}
	*m = value
	return nil
}

// Axis is one classification dimension. DependsOn lists axes whose resolved
// tags must be available before this axis is classified. Priority breaks
// ordering ties between axes with no dependency relationship.
type Axis struct {
	Name         string       `json:"name"`
	Prefix       string       `json:"prefix"`
	Vocabulary   Vocabulary   `json:"vocabulary"`
	Multiplicity Multiplicity `json:"multiplicity"`
	Priority     int          `json:"priority"`
	Prompt       string       `json:"prompt"`
	DependsOn    []string     `json:"depends_on"`
}

// Constraint is a free-form rule sentence attached to an axis, injected
// verbatim into that axis's prompt.
type Constraint struct {
	AxisName string `json:"axis_name"`
	Text     string `json:"text"`
	Position int    `json:"position"`
	Active   bool   `json:"active"`
}
