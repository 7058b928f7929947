package internal

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"ragagent/types"
)

var headerRe = regexp.MustCompile(`(?m)^#+\s+(.+)$`)

// Chunker produces the two-level chunk hierarchy of a document.
type Chunker struct {
	parent *Splitter
	child  *Splitter
}

type ChunkerOption func(*Chunker)

func WithParentSize(size, overlap int) ChunkerOption {
	return func(c *Chunker) { c.parent = NewSplitter(size, overlap, ParentSeparators) }
}

func WithChildSize(size, overlap int) ChunkerOption {
	return func(c *Chunker) { c.child = NewSplitter(size, overlap, ChildSeparators) }
}

func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		parent: NewSplitter(DefaultParentSize, DefaultParentOverlap, ParentSeparators),
		child:  NewSplitter(DefaultChildSize, DefaultChildOverlap, ChildSeparators),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits doc into parents and children. Every child's ParentID names a parent
// of the returned slice. Embeddings are left empty.
func (c *Chunker) Chunk(doc types.Document) ([]types.ParentChunk, []types.ChildChunk) {
	content := Preprocess(doc.Content)
	if content == "" {
		return nil, nil
	}

	var parents []types.ParentChunk
	var children []types.ChildChunk

	for i, text := range c.parent.Split(content) {
		p := types.ParentChunk{
			ID:      fmt.Sprintf("%s_parent_%d", doc.Source, i),
			DocID:   doc.ID,
			Index:   i,
			Title:   doc.Title,
			URL:     doc.URL,
			Section: SectionHeader(text),
			Content: text,
		}
		parents = append(parents, p)

		for j, ct := range c.child.Split(text) {
			section := SectionHeader(ct)
			if section == "" {
				section = p.Section
			}
			children = append(children, types.ChildChunk{
				ID:       fmt.Sprintf("%s_child_%d", p.ID, j),
				ParentID: p.ID,
				Index:    j,
				Section:  section,
				Content:  ct,
			})
		}
	}
	return parents, children
}

// SectionHeader returns the first markdown heading of text, or its first line when that
// line reads like a title. Empty when neither applies.
func SectionHeader(text string) string {
	if m := headerRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	first = strings.TrimSpace(first)
	if first == "" || len(first) >= 100 {
		return ""
	}
	if isUpper(first) || isTitle(first) {
		return first
	}
	return ""
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isTitle(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if unicode.IsLetter(r[0]) && !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return unicode.IsUpper([]rune(words[0])[0])
}
