package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
)

type mockClient struct {
	completeFn func(ctx context.Context, prompt string) (string, error)
	calls      int
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt)
	}
	return "", errors.New("no response configured")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateStripsUnknownClosedTag(t *testing.T) {
	catalog := testCatalog(t, nil)
	v := pipeline.NewValidator(catalog, nil, false, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"type": {
			{Tag: "T_Commande", Source: pipeline.SourceModel, Confidence: 0.9},
			{Tag: "T_Bidon", Source: pipeline.SourceModel, Confidence: 0.9},
		},
	})

	findings := v.Validate(context.Background(), result)

	tags := resultTags(result)
	if _, present := tags["T_Bidon"]; present {
		t.Error("unknown closed-axis tag should be stripped")
	}
	if _, present := tags["T_Commande"]; !present {
		t.Error("valid tag should survive validation")
	}

	if len(findings) != 1 || findings[0].Kind != pipeline.FindingVocabularyViolation {
		t.Errorf("findings = %v, want one vocabulary violation", findings)
	}
}

func TestValidateCorrectsDoubledPrefix(t *testing.T) {
	catalog := testCatalog(t, nil)
	v := pipeline.NewValidator(catalog, nil, false, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"type": {{Tag: "T_T_Commande", Source: pipeline.SourceModel, Confidence: 0.9}},
	})

	findings := v.Validate(context.Background(), result)

	tags := resultTags(result)
	corrected, present := tags["T_Commande"]
	if !present {
		t.Fatal("doubled prefix should correct to T_Commande")
	}
	if corrected.Source != pipeline.SourceValidator {
		t.Errorf("source: got %s, want %s", corrected.Source, pipeline.SourceValidator)
	}

	if len(findings) != 1 || findings[0].Kind != pipeline.FindingTagCorrected {
		t.Errorf("findings = %v, want one tag correction", findings)
	}
}

func TestValidateCorrectsCase(t *testing.T) {
	catalog := testCatalog(t, nil)
	v := pipeline.NewValidator(catalog, nil, false, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"type": {{Tag: "t_commande", Source: pipeline.SourceModel, Confidence: 0.9}},
	})

	v.Validate(context.Background(), result)

	if _, present := resultTags(result)["T_Commande"]; !present {
		t.Error("case mismatch should correct to the vocabulary spelling")
	}
}

func TestValidateCorrectsWrongPrefix(t *testing.T) {
	catalog := testCatalog(t, nil)
	v := pipeline.NewValidator(catalog, nil, false, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"projet": {{Tag: "P_AGS", Source: pipeline.SourceModel, Confidence: 0.9}},
	})

	v.Validate(context.Background(), result)

	tags := resultTags(result)
	if _, present := tags["C_AGS"]; !present {
		t.Error("matching base name should correct across prefixes to C_AGS")
	}
	if _, present := tags["P_AGS"]; present {
		t.Error("original invalid tag should not survive")
	}
}

func TestValidateRemapsThroughModel(t *testing.T) {
	catalog := testCatalog(t, nil)
	client := &mockClient{
		completeFn: func(ctx context.Context, prompt string) (string, error) {
			return "T_Qualite", nil
		},
	}
	v := pipeline.NewValidator(catalog, client, true, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"type": {{Tag: "T_Reclamation", Source: pipeline.SourceModel, Confidence: 0.8}},
	})

	findings := v.Validate(context.Background(), result)

	if client.calls != 1 {
		t.Errorf("model calls = %d, want 1", client.calls)
	}

	remapped, present := resultTags(result)["T_Qualite"]
	if !present {
		t.Fatal("invalid tag should remap to T_Qualite")
	}
	if remapped.Source != pipeline.SourceValidator {
		t.Errorf("source: got %s, want %s", remapped.Source, pipeline.SourceValidator)
	}
	if remapped.Confidence != 0.8 {
		t.Errorf("confidence: got %v, want carried 0.8", remapped.Confidence)
	}

	if len(findings) != 1 || findings[0].Kind != pipeline.FindingTagCorrected {
		t.Errorf("findings = %v, want one tag correction", findings)
	}
}

func TestValidateRemapFailureStrips(t *testing.T) {
	catalog := testCatalog(t, nil)
	client := &mockClient{
		completeFn: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	v := pipeline.NewValidator(catalog, client, true, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"type": {{Tag: "T_Reclamation", Source: pipeline.SourceModel, Confidence: 0.8}},
	})

	findings := v.Validate(context.Background(), result)

	if len(resultTags(result)) != 0 {
		t.Error("unremappable tag should be stripped")
	}
	if len(findings) != 1 || findings[0].Kind != pipeline.FindingVocabularyViolation {
		t.Errorf("findings = %v, want one vocabulary violation", findings)
	}
}

func TestValidateOpenAxisKeepsNovelTags(t *testing.T) {
	catalog := testCatalog(t, nil)
	v := pipeline.NewValidator(catalog, nil, false, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"equipement": {
			{Tag: "EQT_Laser", Source: pipeline.SourceModel, Confidence: 0.9},
			{Tag: "EQT_Spectrometre", Source: pipeline.SourceModel, Confidence: 0.9},
		},
	})

	findings := v.Validate(context.Background(), result)

	tags := resultTags(result)
	if _, present := tags["EQT_Spectrometre"]; !present {
		t.Error("open axes should keep novel tags")
	}
	if len(findings) != 0 {
		t.Errorf("findings = %v, want none", findings)
	}
}

func TestValidateEnforcesSingleMultiplicity(t *testing.T) {
	catalog := testCatalog(t, nil)
	v := pipeline.NewValidator(catalog, nil, false, time.Second, discardLogger())

	result := resolvedResult(map[string][]pipeline.TagAssignment{
		"statut": {
			{Tag: "S_EnCours", Source: pipeline.SourceModel, Confidence: 0.7},
			{Tag: "S_Clos", Source: pipeline.SourceModel, Confidence: 0.95},
		},
	})

	findings := v.Validate(context.Background(), result)

	outcome := result.Axes["statut"]
	if len(outcome.Tags) != 1 {
		t.Fatalf("tags = %v, want one", outcome.Tags)
	}
	if outcome.Tags[0].Tag != "S_Clos" {
		t.Errorf("kept tag: got %s, want highest-confidence S_Clos", outcome.Tags[0].Tag)
	}

	if len(findings) != 1 || findings[0].Kind != pipeline.FindingMultiplicityViolation {
		t.Fatalf("findings = %v, want one multiplicity violation", findings)
	}
	if findings[0].Tag != "S_EnCours" {
		t.Errorf("dropped tag: got %s, want S_EnCours", findings[0].Tag)
	}
}

func TestValidateSkipsUnresolvedAxes(t *testing.T) {
	catalog := testCatalog(t, nil)
	v := pipeline.NewValidator(catalog, nil, false, time.Second, discardLogger())

	result := &pipeline.Result{
		Axes: map[string]pipeline.AxisOutcome{
			"type": {
				Axis:   "type",
				Status: pipeline.AxisUnresolved,
				Reason: "model call failed",
				Tags: []pipeline.TagAssignment{
					{Tag: "T_Bidon", Source: pipeline.SourceModel, Confidence: 0.9},
				},
			},
		},
	}

	if findings := v.Validate(context.Background(), result); len(findings) != 0 {
		t.Errorf("findings = %v, want none for unresolved axes", findings)
	}
}
