package pipeline_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// testCatalog builds a small taxonomy mirroring the seeded schema: a closed
// type axis, a closed projet axis with multiple prefixes, a fournisseur axis
// depending on projet, and an open equipement axis depending on fournisseur.
func testCatalog(t *testing.T, rules []taxonomy.InferenceRule) *taxonomy.Catalog {
	t.Helper()

	axes := []taxonomy.Axis{
		{
			Name:         "type",
			Prefix:       "T_",
			Vocabulary:   taxonomy.VocabularyClosed,
			Multiplicity: taxonomy.MultiplicityMultiple,
			Priority:     10,
			Prompt:       "Classifie le type de mail.",
		},
		{
			Name:         "projet",
			Prefix:       "P_",
			Vocabulary:   taxonomy.VocabularyClosed,
			Multiplicity: taxonomy.MultiplicityMultiple,
			Priority:     20,
			Prompt:       "Identifie le projet et le client concernes.",
		},
		{
			Name:         "fournisseur",
			Prefix:       "F_",
			Vocabulary:   taxonomy.VocabularyClosed,
			Multiplicity: taxonomy.MultiplicityMultiple,
			Priority:     30,
			Prompt:       "Identifie les fournisseurs mentionnes.",
			DependsOn:    []string{"projet"},
		},
		{
			Name:         "equipement",
			Prefix:       "EQT_",
			Vocabulary:   taxonomy.VocabularyOpen,
			Multiplicity: taxonomy.MultiplicityMultiple,
			Priority:     40,
			Prompt:       "Identifie les equipements concernes.",
			DependsOn:    []string{"fournisseur"},
		},
		{
			Name:         "statut",
			Prefix:       "S_",
			Vocabulary:   taxonomy.VocabularyClosed,
			Multiplicity: taxonomy.MultiplicitySingle,
			Priority:     50,
			Prompt:       "Determine le statut de la conversation.",
		},
	}

	tags := []taxonomy.Tag{
		{Name: "T_Commande", AxisName: "type", Prefix: "T_", Active: true},
		{Name: "T_Qualite", AxisName: "type", Prefix: "T_", Active: true},
		{Name: "T_Anomalie", AxisName: "type", Prefix: "T_", Active: true},
		{Name: "P_Optique2026", AxisName: "projet", Prefix: "P_", Active: true},
		{Name: "C_AGS", AxisName: "projet", Prefix: "C_", Active: true},
		{Name: "F_Thales", AxisName: "fournisseur", Prefix: "F_", Active: true},
		{Name: "EQT_Laser", AxisName: "equipement", Prefix: "EQT_", Active: true},
		{Name: "S_EnCours", AxisName: "statut", Prefix: "S_", Active: true},
		{Name: "S_Clos", AxisName: "statut", Prefix: "S_", Active: true},
	}

	constraints := []taxonomy.Constraint{
		{AxisName: "type", Text: "Un mail de commande porte toujours T_Commande.", Position: 0, Active: true},
	}

	catalog, err := taxonomy.NewCatalog(axes, tags, constraints, rules)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return catalog
}

func TestExtractTags(t *testing.T) {
	catalog := testCatalog(t, nil)

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "plain list",
			content: "T_Commande, P_Optique2026",
			want:    []string{"T_Commande", "P_Optique2026"},
		},
		{
			name:    "prose around tags",
			content: "Le mail concerne T_Commande pour le client C_AGS avec le fournisseur F_Thales.",
			want:    []string{"T_Commande", "C_AGS", "F_Thales"},
		},
		{
			name:    "fenced list with markers",
			content: "```\n- T_Commande\n- P_Optique2026\n```",
			want:    []string{"T_Commande", "P_Optique2026"},
		},
		{
			name:    "duplicates collapsed in first-seen order",
			content: "T_Commande et P_Optique2026 puis encore T_Commande",
			want:    []string{"T_Commande", "P_Optique2026"},
		},
		{
			name:    "novel tag on a known prefix kept",
			content: "EQT_Spectrometre est mentionne",
			want:    []string{"EQT_Spectrometre"},
		},
		{
			name:    "unknown prefix dropped",
			content: "XYZ_Inconnu et T_Commande",
			want:    []string{"T_Commande"},
		},
		{
			name:    "no recognized tags",
			content: "Aucune etiquette pertinente dans cette reponse.",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pipeline.ExtractTags(tt.content, catalog)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractTags() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ExtractTags()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestComposeAxisPrompt(t *testing.T) {
	catalog := testCatalog(t, nil)
	axis, _ := catalog.Axis("fournisseur")
	rulesText := catalog.RulesText("fournisseur")

	var upstream pipeline.Upstream
	upstream = upstream.With("projet", []string{"P_Optique2026", "C_AGS"})

	chunk := pipeline.Chunk{
		Index:   1,
		Text:    "Thales confirme la livraison du capteur.",
		Overlap: "fin du mail precedent",
	}

	prompt := pipeline.ComposeAxisPrompt(axis, rulesText, upstream, chunk, 3)

	for _, want := range []string{
		axis.Prompt,
		"F_Thales",
		"## Contexte des axes precedents:",
		"projet: P_Optique2026, C_AGS",
		"partie 2/3",
		"[contexte de la partie precedente]",
		"fin du mail precedent",
		chunk.Text,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if !strings.HasPrefix(prompt, axis.Prompt) {
		t.Error("prompt should open with the axis prompt template")
	}
	if !strings.HasSuffix(prompt, chunk.Text) {
		t.Error("prompt should end with the chunk text")
	}

	// Composition is pure: same inputs, same prompt.
	if again := pipeline.ComposeAxisPrompt(axis, rulesText, upstream, chunk, 3); again != prompt {
		t.Error("identical inputs should produce an identical prompt")
	}
}

func TestComposeAxisPromptNoUpstream(t *testing.T) {
	catalog := testCatalog(t, nil)
	axis, _ := catalog.Axis("type")

	chunk := pipeline.Chunk{Index: 0, Text: "Commande du banc optique."}
	prompt := pipeline.ComposeAxisPrompt(axis, "", pipeline.Upstream{}, chunk, 1)

	if strings.Contains(prompt, "Contexte des axes precedents") {
		t.Error("prompt should omit the upstream section when nothing is resolved")
	}
	if strings.Contains(prompt, "partie") {
		t.Error("single-chunk prompt should omit the part counter")
	}
	if !strings.Contains(prompt, "## Texte a analyser:") {
		t.Error("prompt missing the text section header")
	}
}

func TestUpstreamImmutability(t *testing.T) {
	var base pipeline.Upstream
	extended := base.With("projet", []string{"P_Optique2026"})

	if base.Len() != 0 {
		t.Error("With() should not mutate the receiver")
	}
	if extended.Len() != 1 {
		t.Errorf("extended length = %d, want 1", extended.Len())
	}

	tags := extended.Tags("projet")
	tags[0] = "mutated"
	if extended.Tags("projet")[0] != "P_Optique2026" {
		t.Error("Tags() should return a copy")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := pipeline.Config{
		MaxChunkTokens: 32000,
		OverlapTokens:  200,
		CharsPerToken:  4,
		SafetyFactor:   0.9,
		MaxRulePasses:  5,
		Concurrency:    4,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*pipeline.Config)
	}{
		{"zero max tokens", func(c *pipeline.Config) { c.MaxChunkTokens = 0 }},
		{"negative overlap", func(c *pipeline.Config) { c.OverlapTokens = -1 }},
		{"overlap exceeds budget", func(c *pipeline.Config) { c.OverlapTokens = 32000 }},
		{"zero safety factor", func(c *pipeline.Config) { c.SafetyFactor = 0 }},
		{"safety factor over one", func(c *pipeline.Config) { c.SafetyFactor = 1.5 }},
		{"zero rule passes", func(c *pipeline.Config) { c.MaxRulePasses = 0 }},
		{"zero concurrency", func(c *pipeline.Config) { c.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, pipeline.ErrConfiguration) {
				t.Errorf("Validate() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestConfigEffectiveMaxTokens(t *testing.T) {
	cfg := pipeline.Config{MaxChunkTokens: 32000, SafetyFactor: 0.9}
	if got := cfg.EffectiveMaxTokens(); got != 28800 {
		t.Errorf("EffectiveMaxTokens() = %d, want 28800", got)
	}
}

func TestResultTags(t *testing.T) {
	result := pipeline.Result{
		Axes: map[string]pipeline.AxisOutcome{
			"type": {
				Axis:   "type",
				Status: pipeline.AxisResolved,
				Tags: []pipeline.TagAssignment{
					{Tag: "T_Commande", Source: pipeline.SourceModel, Confidence: 0.9},
				},
			},
			"projet": {
				Axis:   "projet",
				Status: pipeline.AxisResolved,
				Tags: []pipeline.TagAssignment{
					{Tag: "C_AGS", Source: pipeline.SourceModel, Confidence: 0.9},
				},
			},
			"fournisseur": {
				Axis:   "fournisseur",
				Status: pipeline.AxisUnresolved,
				Reason: "model call failed",
				Tags: []pipeline.TagAssignment{
					{Tag: "F_Thales", Source: pipeline.SourceModel, Confidence: 0.9},
				},
			},
		},
	}

	tags := result.Tags()
	if len(tags) != 2 {
		t.Fatalf("Tags() length = %d, want 2", len(tags))
	}
	if tags[0].Tag != "C_AGS" || tags[1].Tag != "T_Commande" {
		t.Errorf("Tags() = %v, want sorted [C_AGS T_Commande]", tags)
	}

	unresolved := result.Unresolved()
	if len(unresolved) != 1 || unresolved[0] != "fournisseur" {
		t.Errorf("Unresolved() = %v, want [fournisseur]", unresolved)
	}
}
