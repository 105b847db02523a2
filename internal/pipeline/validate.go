package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// Validator checks a completed result against per-axis vocabulary and
// multiplicity constraints. Closed-axis violations are corrected
// deterministically where possible, then optionally remapped through one
// model call per invalid tag; whatever cannot be corrected is stripped from
// the applied result and kept in the findings for the audit trail.
type Validator struct {
	catalog     *taxonomy.Catalog
	client      ModelClient
	autoCorrect bool
	timeout     time.Duration
	logger      *slog.Logger
}

// NewValidator creates a Validator. client may be nil when autoCorrect is
// disabled; deterministic correction always runs.
func NewValidator(
	catalog *taxonomy.Catalog,
	client ModelClient,
	autoCorrect bool,
	timeout time.Duration,
	logger *slog.Logger,
) *Validator {
	return &Validator{
		catalog:     catalog,
		client:      client,
		autoCorrect: autoCorrect,
		timeout:     timeout,
		logger:      logger.With("system", "validator"),
	}
}

// Validate applies vocabulary and multiplicity checks to every resolved axis,
// mutating the result in place and returning the findings.
func (v *Validator) Validate(ctx context.Context, result *Result) []Finding {
	var findings []Finding

	for name, outcome := range result.Axes {
		if outcome.Status != AxisResolved {
			continue
		}

		axis, ok := v.catalog.Axis(name)
		if !ok {
			continue
		}

		if axis.Vocabulary == taxonomy.VocabularyClosed {
			outcome.Tags, findings = v.checkVocabulary(ctx, axis, outcome.Tags, findings)
		}

		outcome.Tags, findings = enforceMultiplicity(axis, outcome.Tags, findings)
		result.Axes[name] = outcome
	}

	return findings
}

func (v *Validator) checkVocabulary(
	ctx context.Context,
	axis taxonomy.Axis,
	tags []TagAssignment,
	findings []Finding,
) ([]TagAssignment, []Finding) {
	kept := tags[:0]

	for _, a := range tags {
		if v.inVocabulary(axis, a.Tag) {
			kept = append(kept, a)
			continue
		}

		corrected, ok := v.correctTag(axis, a.Tag)
		if !ok && v.autoCorrect && v.client != nil {
			corrected, ok = v.remapTag(ctx, axis, a.Tag)
		}

		if !ok {
			findings = append(findings, Finding{
				Kind:    FindingVocabularyViolation,
				Axis:    axis.Name,
				Tag:     a.Tag,
				Message: fmt.Sprintf("tag %s is not in the %s vocabulary", a.Tag, axis.Name),
			})
			continue
		}

		findings = append(findings, Finding{
			Kind:    FindingTagCorrected,
			Axis:    axis.Name,
			Tag:     a.Tag,
			Message: fmt.Sprintf("tag %s corrected to %s", a.Tag, corrected),
		})

		if containsTag(kept, corrected) {
			continue
		}
		kept = append(kept, TagAssignment{
			Tag:        corrected,
			Source:     SourceValidator,
			Confidence: a.Confidence,
		})
	}

	return kept, findings
}

func (v *Validator) inVocabulary(axis taxonomy.Axis, name string) bool {
	tag, ok := v.catalog.Tag(name)
	return ok && tag.AxisName == axis.Name
}

// correctTag attempts deterministic repair of an invalid tag, in order:
// doubled prefix, exact case-insensitive match, then base-name match across
// differing prefixes. Returns the corrected vocabulary tag on success.
func (v *Validator) correctTag(axis taxonomy.Axis, name string) (string, bool) {
	prefix, base := v.catalog.SplitPrefix(name)

	// Doubled prefix, e.g. T_T_Commande.
	if prefix != "" && strings.HasPrefix(base, prefix) {
		if v.inVocabulary(axis, base) {
			return base, true
		}
	}

	vocabulary := v.catalog.TagsForAxis(axis.Name)

	for _, tag := range vocabulary {
		if strings.EqualFold(tag.Name, name) {
			return tag.Name, true
		}
	}

	// Wrong or missing prefix with a matching base name.
	if base != "" {
		for _, tag := range vocabulary {
			_, tagBase := v.catalog.SplitPrefix(tag.Name)
			if strings.EqualFold(tagBase, base) {
				return tag.Name, true
			}
		}
	}

	return "", false
}

// remapTag issues a single correction call asking the model for the nearest
// vocabulary entry. Bounded to one attempt per invalid tag.
func (v *Validator) remapTag(ctx context.Context, axis taxonomy.Axis, name string) (string, bool) {
	vocabulary := v.catalog.TagsForAxis(axis.Name)
	if len(vocabulary) == 0 {
		return "", false
	}

	names := make([]string, 0, len(vocabulary))
	for _, tag := range vocabulary {
		names = append(names, tag.Name)
	}
	sort.Strings(names)

	prompt := fmt.Sprintf(
		"La valeur %q n'est pas autorisee pour l'axe %q.\n"+
			"Choisis la valeur autorisee la plus proche parmi:\n  - %s\n"+
			"Reponds uniquement avec la valeur exacte choisie.",
		name, axis.Name, strings.Join(names, "\n  - "),
	)

	callCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	content, err := v.client.Complete(callCtx, prompt)
	if err != nil {
		v.logger.Warn("tag remap call failed", "axis", axis.Name, "tag", name, "error", err)
		return "", false
	}

	for _, candidate := range ExtractTags(content, v.catalog) {
		if v.inVocabulary(axis, candidate) {
			return candidate, true
		}
	}
	return "", false
}

// enforceMultiplicity caps single axes to their highest-confidence tag,
// flagging the discarded ones.
func enforceMultiplicity(
	axis taxonomy.Axis,
	tags []TagAssignment,
	findings []Finding,
) ([]TagAssignment, []Finding) {
	if axis.Multiplicity != taxonomy.MultiplicitySingle || len(tags) <= 1 {
		return tags, findings
	}

	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Confidence > tags[j].Confidence
	})

	for _, dropped := range tags[1:] {
		findings = append(findings, Finding{
			Kind:    FindingMultiplicityViolation,
			Axis:    axis.Name,
			Tag:     dropped.Tag,
			Message: fmt.Sprintf("axis %s is single valued; dropped %s", axis.Name, dropped.Tag),
		})
	}

	return tags[:1], findings
}

func containsTag(tags []TagAssignment, name string) bool {
	for _, a := range tags {
		if a.Tag == name {
			return true
		}
	}
	return false
}
