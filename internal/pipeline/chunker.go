package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Paragraph boundaries: blank-line runs, plus forwarded/quoted mail headers
// that mark a new message inside a concatenated conversation body.
var (
	blankLineRegex  = regexp.MustCompile(`\n{2,}`)
	mailHeaderRegex = regexp.MustCompile(`(?m)^(From:|De :|Sent:|Envoyé :|Subject:|Objet :|To:|À :|>)`)
	sentenceRegex   = regexp.MustCompile(`[.!?]\s+`)
)

// Chunker splits document text into token-bounded chunks. Chunk texts slice
// the original document exactly, so concatenating them reconstructs it;
// overlap context is carried on a separate field.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	counter       TokenCounter
}

// NewChunker creates a Chunker. maxTokens is the effective per-chunk budget
// after the caller's safety factor is applied.
func NewChunker(maxTokens, overlapTokens int, counter TokenCounter) *Chunker {
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		counter:       counter,
	}
}

type segment struct {
	text     string
	sentence bool
}

// Split produces an ordered, non-empty chunk sequence for text. Documents
// within the token budget return a single full chunk. Oversized conversations are
// grouped by whole paragraphs, falling back to sentence groups when a single
// paragraph exceeds the budget. An indivisible sentence over the budget is
// emitted as its own chunk with Oversized set rather than truncated.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	total := c.counter(text)
	if total <= c.maxTokens {
		return []Chunk{{
			Index:  0,
			Text:   text,
			Tokens: total,
			Kind:   ChunkFull,
		}}, nil
	}

	// Reserve overlap headroom so carried context never pushes a chunk
	// past the budget.
	budget := c.maxTokens - c.overlapTokens
	if budget < 1 {
		budget = c.maxTokens
	}

	var segments []segment
	for _, para := range splitAt(text, paragraphCuts(text)) {
		if c.counter(para) <= budget {
			segments = append(segments, segment{text: para})
			continue
		}
		for _, sent := range splitAt(para, sentenceCuts(para)) {
			segments = append(segments, segment{text: sent, sentence: true})
		}
	}

	var chunks []Chunk
	var current strings.Builder
	sentences := false

	flush := func(oversized bool) {
		if current.Len() == 0 {
			return
		}
		kind := ChunkParagraphGroup
		if sentences {
			kind = ChunkSentenceGroup
		}
		chunkText := current.String()
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      chunkText,
			Tokens:    c.counter(chunkText),
			Kind:      kind,
			Oversized: oversized,
		})
		current.Reset()
		sentences = false
	}

	for _, seg := range segments {
		segTokens := c.counter(seg.text)

		if segTokens > budget {
			// Indivisible unit over budget: emit alone, flagged.
			flush(false)
			current.WriteString(seg.text)
			sentences = seg.sentence
			flush(true)
			continue
		}

		if current.Len() > 0 && c.counter(current.String())+segTokens > budget {
			flush(false)
		}
		current.WriteString(seg.text)
		sentences = sentences || seg.sentence
	}
	flush(false)

	for i := 1; i < len(chunks); i++ {
		chunks[i].Overlap = c.overlapTail(chunks[i-1].Text)
	}

	return chunks, nil
}

// paragraphCuts returns the byte offsets where text splits into paragraphs.
// Separators stay attached to the preceding segment so that the segments
// concatenate back to the original text.
func paragraphCuts(text string) []int {
	var cuts []int
	for _, loc := range blankLineRegex.FindAllStringIndex(text, -1) {
		cuts = append(cuts, loc[1])
	}
	for _, loc := range mailHeaderRegex.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			cuts = append(cuts, loc[0])
		}
	}
	return cuts
}

func sentenceCuts(text string) []int {
	var cuts []int
	for _, loc := range sentenceRegex.FindAllStringIndex(text, -1) {
		cuts = append(cuts, loc[1])
	}
	return cuts
}

// splitAt slices text at the given byte offsets, dropping duplicates and
// empty segments. The returned segments concatenate to the original text.
func splitAt(text string, cuts []int) []string {
	if len(cuts) == 0 {
		return []string{text}
	}

	seen := make(map[int]struct{}, len(cuts))
	ordered := make([]int, 0, len(cuts))
	for _, cut := range cuts {
		if cut <= 0 || cut >= len(text) {
			continue
		}
		if _, dup := seen[cut]; dup {
			continue
		}
		seen[cut] = struct{}{}
		ordered = append(ordered, cut)
	}
	sort.Ints(ordered)

	segments := make([]string, 0, len(ordered)+1)
	prev := 0
	for _, cut := range ordered {
		segments = append(segments, text[prev:cut])
		prev = cut
	}
	segments = append(segments, text[prev:])
	return segments
}

// overlapTail returns the trailing slice of text worth roughly the configured
// overlap token count, aligned to a rune and then to the next whitespace so
// the carried context starts on a word boundary.
func (c *Chunker) overlapTail(text string) string {
	if c.overlapTokens <= 0 {
		return ""
	}

	total := c.counter(text)
	if total <= c.overlapTokens {
		return text
	}

	start := len(text) - len(text)*c.overlapTokens/total
	if start <= 0 {
		return text
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	if idx := strings.IndexAny(text[start:], " \t\n"); idx >= 0 {
		start += idx + 1
	}
	if start >= len(text) {
		return ""
	}
	return text[start:]
}
