package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// ComposeAxisPrompt builds the model request for one axis and one chunk.
// Pure function: axis prompt template, reconstructed vocabulary/constraint
// rules, upstream resolved tags verbatim, then the chunk text with any
// carried overlap context. Never touches the network.
func ComposeAxisPrompt(
	axis taxonomy.Axis,
	rulesText string,
	upstream Upstream,
	chunk Chunk,
	total int,
) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(axis.Prompt))
	sb.WriteString("\n\n")

	if rulesText != "" {
		sb.WriteString(strings.TrimSpace(rulesText))
		sb.WriteString("\n\n")
	}

	if upstream.Len() > 0 {
		sb.WriteString("## Contexte des axes precedents:\n")
		for _, name := range upstream.Axes() {
			tags := upstream.Tags(name)
			if len(tags) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "  - %s: %s\n", name, strings.Join(tags, ", "))
		}
		sb.WriteString("\n")
	}

	if total > 1 {
		fmt.Fprintf(&sb, "## Texte a analyser (partie %d/%d):\n", chunk.Index+1, total)
	} else {
		sb.WriteString("## Texte a analyser:\n")
	}

	if chunk.Overlap != "" {
		sb.WriteString("[contexte de la partie precedente]\n")
		sb.WriteString(chunk.Overlap)
		sb.WriteString("\n[fin du contexte]\n\n")
	}

	sb.WriteString(chunk.Text)
	return sb.String()
}

// mergeAssignments unions the per-chunk assignments for one axis, keeping the
// highest confidence per tag. A single-multiplicity axis is capped to its
// highest-confidence tag; open multiple axes keep the full union.
func mergeAssignments(axis taxonomy.Axis, perChunk [][]TagAssignment) []TagAssignment {
	best := make(map[string]TagAssignment)
	order := make([]string, 0)

	for _, assignments := range perChunk {
		for _, a := range assignments {
			current, seen := best[a.Tag]
			if !seen {
				order = append(order, a.Tag)
				best[a.Tag] = a
				continue
			}
			if a.Confidence > current.Confidence {
				best[a.Tag] = a
			}
		}
	}

	merged := make([]TagAssignment, 0, len(order))
	for _, tag := range order {
		merged = append(merged, best[tag])
	}

	if axis.Multiplicity == taxonomy.MultiplicitySingle && len(merged) > 1 {
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Confidence > merged[j].Confidence
		})
		merged = merged[:1]
	}

	return merged
}
