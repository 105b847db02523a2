package pipeline

import (
	"regexp"
	"strings"

	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// Candidate tag tokens: a known prefix shape followed by a base name.
// Extraction tolerates arbitrary prose, fences, and list markers around the
// tokens and keeps only those the catalog recognizes by name or prefix.
var tagTokenRegex = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]*_[A-Za-z0-9][A-Za-z0-9_\-]*`)

// ExtractTags pulls recognized tag tokens out of free model text, in order
// of first appearance, deduplicated. A token is recognized when it is a
// declared tag or carries a known prefix (novel tags on open axes).
func ExtractTags(content string, catalog *taxonomy.Catalog) []string {
	var tags []string
	seen := make(map[string]struct{})

	for _, token := range tagTokenRegex.FindAllString(content, -1) {
		token = strings.Trim(token, "_-")
		if token == "" {
			continue
		}
		if !catalog.HasTag(token) {
			prefix, base := catalog.SplitPrefix(token)
			if prefix == "" || base == "" {
				continue
			}
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tags = append(tags, token)
	}

	return tags
}
