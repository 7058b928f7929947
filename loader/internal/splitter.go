package internal

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultParentSize    = 2000
	DefaultParentOverlap = 200
	DefaultChildSize     = 500
	DefaultChildOverlap  = 50
)

var (
	ParentSeparators = []string{"\n## ", "\n### ", "\n#### ", "\n\n", "\n", ". ", " ", ""}
	ChildSeparators  = []string{"\n### ", "\n#### ", "\n\n", "\n", ". ", " ", ""}
)

// Splitter cuts text into chunks of at most size characters, preferring the earliest
// separator in its list. Fenced code blocks are never cut: one that exceeds size
// becomes a chunk of its own.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

func NewSplitter(size, overlap int, separators []string) *Splitter {
	if size <= 0 {
		size = DefaultChildSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	if len(separators) == 0 {
		separators = []string{""}
	}
	return &Splitter{size: size, overlap: overlap, separators: separators}
}

type piece struct {
	text   string
	length int
	fence  bool
}

func newPiece(text string, fence bool) piece {
	return piece{text: text, length: utf8.RuneCountInString(text), fence: fence}
}

// Split returns the chunks of text in order, trimmed, with empty chunks dropped.
func (s *Splitter) Split(text string) []string {
	var pieces []piece
	for _, seg := range segmentFences(text) {
		if seg.fence {
			pieces = append(pieces, seg)
			continue
		}
		for _, p := range s.splitRecursive(seg.text, s.separators) {
			pieces = append(pieces, newPiece(p, false))
		}
	}
	return s.merge(pieces)
}

// splitRecursive breaks text into parts no longer than size using the first separator
// present, recursing into oversized parts with the remaining separators.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.size {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out []string
	for _, part := range splitKeep(text, sep) {
		if utf8.RuneCountInString(part) <= s.size || len(rest) == 0 {
			out = append(out, part)
			continue
		}
		out = append(out, s.splitRecursive(part, rest)...)
	}
	return out
}

// merge greedily packs pieces up to size, carrying at most overlap characters of
// trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []piece) []string {
	var chunks []string
	var current []piece
	total := 0

	emit := func() {
		var sb strings.Builder
		for _, p := range current {
			sb.WriteString(p.text)
		}
		if t := strings.TrimSpace(sb.String()); t != "" {
			chunks = append(chunks, t)
		}
	}

	for _, p := range pieces {
		if total+p.length > s.size && len(current) > 0 {
			emit()
			for len(current) > 0 && (total > s.overlap || total+p.length > s.size) {
				total -= current[0].length
				current = current[1:]
			}
		}
		current = append(current, p)
		total += p.length
	}
	if len(current) > 0 {
		emit()
	}
	return chunks
}

// splitKeep splits text on sep, keeping sep at the start of the following part.
// An empty sep splits into single characters.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	var out []string
	for len(text) > 1 {
		i := strings.Index(text[1:], sep)
		if i < 0 {
			break
		}
		i++
		out = append(out, text[:i])
		text = text[i:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// segmentFences cuts text into prose and fenced-code segments whose concatenation
// equals text. An unterminated fence runs to the end of the text.
func segmentFences(text string) []piece {
	var segs []piece
	lines := strings.SplitAfter(text, "\n")

	var buf strings.Builder
	inFence := false
	marker := ""

	flush := func(fence bool) {
		if buf.Len() > 0 {
			segs = append(segs, newPiece(buf.String(), fence))
			buf.Reset()
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		switch {
		case !inFence && (strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")):
			flush(false)
			inFence = true
			marker = trimmed[:3]
			buf.WriteString(line)
		case inFence && strings.HasPrefix(trimmed, marker) && strings.TrimSpace(strings.TrimLeft(trimmed, marker[:1])) == "":
			buf.WriteString(line)
			flush(true)
			inFence = false
		default:
			buf.WriteString(line)
		}
	}
	flush(inFence)
	return segs
}

var (
	manyNewlines = regexp.MustCompile(`\n{4,}`)
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
)

// Preprocess normalizes whitespace outside fenced code: at most three consecutive
// newlines, single spaces, no trailing spaces. Code blocks are kept verbatim.
func Preprocess(content string) string {
	var sb strings.Builder
	for _, seg := range segmentFences(content) {
		if seg.fence {
			sb.WriteString(seg.text)
			continue
		}
		t := manyNewlines.ReplaceAllString(seg.text, "\n\n\n")
		t = spaceRuns.ReplaceAllString(t, " ")
		lines := strings.Split(t, "\n")
		for i, l := range lines {
			lines[i] = strings.TrimRight(l, " ")
		}
		sb.WriteString(strings.Join(lines, "\n"))
	}
	return strings.TrimSpace(sb.String())
}
