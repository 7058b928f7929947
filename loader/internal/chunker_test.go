package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragagent/types"
)

func longProse(words int) string {
	var sb strings.Builder
	for i := 0; i < words; i++ {
		sb.WriteString("graph ")
		if i%12 == 11 {
			sb.WriteString("nodes. ")
		}
		if i%60 == 59 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func TestSplitter_RespectsSize(t *testing.T) {
	s := NewSplitter(100, 10, ChildSeparators)
	chunks := s.Split(longProse(300))
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.NotEmpty(t, c)
	}
}

func TestSplitter_NoSeparatorFallsBackToCharacters(t *testing.T) {
	s := NewSplitter(10, 0, ChildSeparators)
	chunks := s.Split(strings.Repeat("x", 35))
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}

func TestSplitter_Overlap(t *testing.T) {
	s := NewSplitter(20, 8, []string{" ", ""})
	chunks := s.Split("aaa bbb ccc ddd eee fff ggg hhh")
	assert.Equal(t, []string{"aaa bbb ccc ddd eee", "ddd eee fff ggg hhh"}, chunks)
}

func TestSplitter_FencedBlockStaysIntact(t *testing.T) {
	code := "```python\n" + strings.Repeat("graph.add_node('step', run_step)\n", 30) + "```"
	require.Greater(t, len(code), DefaultChildSize)

	text := "## Building graphs\n\nSome intro text.\n\n" + code + "\n\nClosing words after the example."
	chunks := NewSplitter(DefaultChildSize, DefaultChildOverlap, ChildSeparators).Split(text)

	found := 0
	for _, c := range chunks {
		if strings.Contains(c, "```python") {
			found++
			assert.Contains(t, c, code)
		}
	}
	assert.Equal(t, 1, found)
}

func TestSegmentFences_RoundTrip(t *testing.T) {
	text := "intro\n```go\nfmt.Println(1)\n```\nmiddle\n~~~\nraw\n~~~\n```unterminated\nx"
	var sb strings.Builder
	fences := 0
	for _, seg := range segmentFences(text) {
		sb.WriteString(seg.text)
		if seg.fence {
			fences++
		}
	}
	assert.Equal(t, text, sb.String())
	assert.Equal(t, 3, fences)
}

func TestPreprocess(t *testing.T) {
	in := "Title  with\t\tspaces   \n\n\n\n\n\nbody\n```\n    indented   code\n```\n"
	out := Preprocess(in)
	assert.Equal(t, "Title with spaces\n\n\nbody\n```\n    indented   code\n```", out)
}

func TestChunker_ParentChildLinkage(t *testing.T) {
	code := "```python\n" + strings.Repeat("builder.add_edge(START, 'agent')\n", 25) + "```"
	doc := types.Document{
		ID:      "doc1",
		Title:   "LangGraph",
		URL:     "https://example.com/llms.txt",
		Source:  "langgraph_llms",
		Content: "# StateGraph\n\n" + longProse(500) + "\n\n## Edges\n\n" + code + "\n\n" + longProse(200),
	}

	parents, children := NewChunker().Chunk(doc)
	require.NotEmpty(t, parents)
	require.NotEmpty(t, children)

	ids := map[string]bool{}
	for i, p := range parents {
		assert.Equal(t, i, p.Index)
		assert.True(t, strings.HasPrefix(p.ID, "langgraph_llms_parent_"))
		assert.Equal(t, "LangGraph", p.Title)
		assert.Equal(t, doc.URL, p.URL)
		ids[p.ID] = true
	}
	assert.Equal(t, "StateGraph", parents[0].Section)

	codeChildren := 0
	for _, c := range children {
		assert.True(t, ids[c.ParentID], "child %s has dangling parent %s", c.ID, c.ParentID)
		assert.True(t, strings.HasPrefix(c.ID, c.ParentID+"_child_"))
		if strings.Contains(c.Content, "```python") {
			codeChildren++
			assert.Contains(t, c.Content, code)
		}
	}
	assert.GreaterOrEqual(t, codeChildren, 1)
}

func TestChunker_EmptyDocument(t *testing.T) {
	parents, children := NewChunker().Chunk(types.Document{Source: "empty", Content: " \n\n "})
	assert.Empty(t, parents)
	assert.Empty(t, children)
}

func TestSectionHeader(t *testing.T) {
	assert.Equal(t, "Persistence", SectionHeader("intro\n### Persistence\nbody"))
	assert.Equal(t, "QUICKSTART", SectionHeader("QUICKSTART\nrun this"))
	assert.Equal(t, "Human In The Loop", SectionHeader("Human In The Loop\ntext"))
	assert.Equal(t, "", SectionHeader("just a sentence in lower case\nmore"))
}

func TestLoadCorpus_Manifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "langgraph_llms.txt"), []byte("# LangGraph\nbody"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra-notes.md"), []byte("notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`
sources:
  langgraph_llms:
    url: https://langchain-ai.github.io/langgraph/llms.txt
    description: LangGraph concise overview
    priority: primary
`), 0o644))

	docs, err := LoadCorpus(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "extra-notes", docs[0].Source)
	assert.Equal(t, "extra notes", docs[0].Title)
	assert.True(t, strings.HasPrefix(docs[0].URL, "file://"))

	assert.Equal(t, "langgraph_llms", docs[1].Source)
	assert.Equal(t, "LangGraph concise overview", docs[1].Title)
	assert.Equal(t, "https://langchain-ai.github.io/langgraph/llms.txt", docs[1].URL)
	assert.Len(t, docs[1].ID, 32)
}

func TestLoadCorpus_MissingDir(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
