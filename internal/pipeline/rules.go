package pipeline

import (
	"fmt"
	"strings"

	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// ApplyRules runs the inference rule engine over a result's resolved tag set.
// Rules are applied in catalog order (ascending priority, then declaration
// position), repeating full passes until none fires or maxPasses is reached.
// Non-convergence is a configuration warning, not a failure: the last stable
// state is kept and a finding records the cycle. Unsatisfiable require
// actions become findings as well.
func ApplyRules(catalog *taxonomy.Catalog, result *Result, maxPasses int) []Finding {
	if maxPasses < 1 {
		maxPasses = 1
	}

	var findings []Finding
	rules := catalog.Rules()
	required := make(map[string]struct{})

	converged := false
	for pass := 0; pass < maxPasses; pass++ {
		fired := false

		for _, rule := range rules {
			if !conditionMatches(rule, result) {
				continue
			}

			switch rule.Action {
			case taxonomy.ActionAdd:
				if addTag(catalog, result, rule.ActionTag) {
					fired = true
				}
			case taxonomy.ActionRemove:
				if removeTag(result, rule.ActionTag) {
					fired = true
				}
			case taxonomy.ActionRequire:
				required[rule.ActionTag] = struct{}{}
			}
		}

		if !fired {
			converged = true
			break
		}
	}

	if !converged {
		findings = append(findings, Finding{
			Kind:    FindingRuleCycleExceeded,
			Message: fmt.Sprintf("inference rules did not converge within %d passes", maxPasses),
		})
	}

	for tag := range required {
		if !hasTag(result, tag) {
			findings = append(findings, Finding{
				Kind:    FindingUnsatisfiedRequire,
				Tag:     tag,
				Message: fmt.Sprintf("required tag %s is not present in the result", tag),
			})
		}
	}

	return findings
}

func conditionMatches(rule taxonomy.InferenceRule, result *Result) bool {
	for _, outcome := range result.Axes {
		if outcome.Status != AxisResolved {
			continue
		}
		for _, a := range outcome.Tags {
			switch rule.ConditionKind {
			case taxonomy.ConditionPrefix:
				if strings.HasPrefix(a.Tag, rule.ConditionValue) {
					return true
				}
			case taxonomy.ConditionEquals:
				if a.Tag == rule.ConditionValue {
					return true
				}
			case taxonomy.ConditionContains:
				if strings.Contains(a.Tag, rule.ConditionValue) {
					return true
				}
			}
		}
	}
	return false
}

func hasTag(result *Result, tag string) bool {
	for _, outcome := range result.Axes {
		if outcome.Status != AxisResolved {
			continue
		}
		for _, a := range outcome.Tags {
			if a.Tag == tag {
				return true
			}
		}
	}
	return false
}

// addTag attaches a rule-produced tag to its owning axis, creating a
// synthesized resolved outcome only when the axis was not part of the run.
// An axis that finished unresolved keeps its status and reason; a rule never
// masks a failed axis. Returns false when the tag is already present, owns
// no known axis, or targets an unresolved axis.
func addTag(catalog *taxonomy.Catalog, result *Result, tag string) bool {
	if hasTag(result, tag) {
		return false
	}

	axis, ok := catalog.AxisForTag(tag)
	if !ok {
		return false
	}

	outcome, exists := result.Axes[axis.Name]
	if exists && outcome.Status != AxisResolved {
		return false
	}
	if !exists {
		outcome = AxisOutcome{Axis: axis.Name, Status: AxisResolved}
	}
	outcome.Tags = append(outcome.Tags, TagAssignment{
		Tag:        tag,
		Source:     SourceRule,
		Confidence: 1.0,
	})
	result.Axes[axis.Name] = outcome
	return true
}

func removeTag(result *Result, tag string) bool {
	removed := false
	for name, outcome := range result.Axes {
		if outcome.Status != AxisResolved {
			continue
		}
		kept := outcome.Tags[:0]
		for _, a := range outcome.Tags {
			if a.Tag == tag {
				removed = true
				continue
			}
			kept = append(kept, a)
		}
		outcome.Tags = kept
		result.Axes[name] = outcome
	}
	return removed
}
