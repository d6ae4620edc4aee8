package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentencePara(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Sentence number %d carries a little payload. ", i)
	}
	return strings.TrimSpace(sb.String())
}

func sampleDoc() string {
	var sb strings.Builder
	sb.WriteString("Preamble before any heading.\n\n")
	sb.WriteString("# Report\n\n")
	sb.WriteString(sentencePara(20) + "\n\n")
	sb.WriteString("## Methods\n\n")
	sb.WriteString(sentencePara(30) + "\n\n")
	sb.WriteString("### Sampling\n\n")
	sb.WriteString(sentencePara(25) + "\n\n")
	sb.WriteString("## Results\n\n")
	sb.WriteString(sentencePara(40) + "\n\n")
	sb.WriteString("# Appendix\n\n")
	sb.WriteString(sentencePara(10) + "\n")
	return sb.String()
}

func collect(seq func(func(Chunk) bool)) []Chunk {
	var out []Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func TestSegmentBounds(t *testing.T) {
	chunks := collect(Segment(sampleDoc(), 100, 200, nil))
	require.NotEmpty(t, chunks)

	tok := Estimator{}
	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenCount, 200, "chunk %d over budget", c.Index)
		assert.Equal(t, tok.Count(c.Text), c.TokenCount, "chunk %d token count stale", c.Index)
	}
	for _, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, c.TokenCount, 100, "chunk %d under lower bound", c.Index)
	}
}

func TestSegmentIndexesSequential(t *testing.T) {
	chunks := collect(Segment(sampleDoc(), 50, 120, nil))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSegmentCoversAllText(t *testing.T) {
	doc := sampleDoc()
	chunks := collect(Segment(doc, 100, 200, nil))

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
		joined.WriteString(" ")
	}
	// Every sentence from the source must land in exactly one chunk.
	for _, marker := range []string{"Preamble before any heading.", "# Report", "### Sampling", "Sentence number 39"} {
		assert.Contains(t, joined.String(), marker)
	}
}

func TestSegmentRestartable(t *testing.T) {
	seq := Segment(sampleDoc(), 80, 160, nil)
	first := collect(seq)
	second := collect(seq)
	require.Equal(t, len(first), len(second))
	assert.Equal(t, first, second)
}

func TestSegmentEarlyBreak(t *testing.T) {
	seq := Segment(sampleDoc(), 50, 100, nil)
	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestSegmentHeadingContext(t *testing.T) {
	doc := "# Report\n\n## Methods\n\n" + sentencePara(60) + "\n\n### Sampling\n\n" + sentencePara(60)
	chunks := collect(Segment(doc, 100, 150, nil))
	require.Greater(t, len(chunks), 1)

	var sawSampling bool
	for _, c := range chunks {
		if strings.Contains(c.Text, "### Sampling") || len(c.HeadingContext) < 3 {
			continue
		}
		sawSampling = true
		assert.Equal(t, []string{"Report", "Methods", "Sampling"}, c.HeadingContext)
	}
	assert.True(t, sawSampling, "expected a chunk carried under the Sampling heading")

	first := chunks[0]
	assert.Contains(t, first.Text, "# Report")
	assert.Empty(t, first.HeadingContext, "chunk opening with its own heading needs no context")
}

func TestSegmentOversizedParagraph(t *testing.T) {
	doc := sentencePara(200)
	chunks := collect(Segment(doc, 50, 100, nil))
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenCount, 100)
	}
}

func TestSegmentOversizedSentence(t *testing.T) {
	// One sentence with no terminal punctuation, far over budget: must be
	// cut at word boundaries.
	words := strings.Repeat("alpha beta gamma delta ", 100)
	chunks := collect(Segment(strings.TrimSpace(words), 10, 20, nil))
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenCount, 20)
	}
}

func TestSegmentFencedCodeKeepsHashLines(t *testing.T) {
	doc := "# Real\n\nBefore code.\n\n```\n# not a heading\ncode line\n```\n\nAfter code."
	chunks := collect(Segment(doc, 1, 1000, nil))
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "# not a heading")
	assert.NotContains(t, chunks[0].HeadingContext, "not a heading")
}

func TestSegmentEmptyInput(t *testing.T) {
	assert.Empty(t, collect(Segment("", 10, 20, nil)))
	assert.Empty(t, collect(Segment("   \n\n  ", 10, 20, nil)))
}

func TestSegmentUndersizedTailMerged(t *testing.T) {
	// The heading closes the first chunk, but the trailing section alone
	// is under the lower bound and the pair fits the budget, so the two
	// must come back merged.
	doc := sentencePara(6) + "\n\n# Next\n\nTiny tail."
	chunks := collect(Segment(doc, 50, 400, nil))
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "Sentence number 0")
	assert.Contains(t, chunks[0].Text, "Tiny tail.")
}

func TestEstimator(t *testing.T) {
	tok := Estimator{}
	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 1, tok.Count("hi"))
	assert.Equal(t, 3, tok.Count("hello world!"))
}

func TestSplitByHeading(t *testing.T) {
	doc := "Intro text.\n\n# Report\n\nOpening.\n\n## Methods\n\nHow it was done.\n\n### Sampling\n\nDetail.\n\n## Results\n\nWhat came out.\n\n# Appendix\n\nExtra."
	var units []Unit
	for u := range SplitByHeading(doc, 2) {
		units = append(units, u)
	}
	require.Len(t, units, 5)

	assert.Empty(t, units[0].HeadingPath)
	assert.Equal(t, "Intro text.", units[0].Content)

	assert.Equal(t, []string{"Report"}, units[1].HeadingPath)
	assert.True(t, strings.HasPrefix(units[1].Content, "# Report"))
	assert.Contains(t, units[1].Content, "Opening.")

	methods := units[2]
	assert.Equal(t, []string{"Report", "Methods"}, methods.HeadingPath)
	assert.True(t, strings.HasPrefix(methods.Content, "# Report\n\n## Methods"), "ancestor chain must prefix the unit: %q", methods.Content)
	assert.Contains(t, methods.Content, "### Sampling", "deeper headings stay inside their unit")
	assert.Contains(t, methods.Content, "Detail.")

	results := units[3]
	assert.Equal(t, []string{"Report", "Results"}, results.HeadingPath)
	assert.True(t, strings.HasPrefix(results.Content, "# Report\n\n## Results"))
	assert.NotContains(t, results.Content, "Sampling")

	appendix := units[4]
	assert.Equal(t, []string{"Appendix"}, appendix.HeadingPath)
	assert.True(t, strings.HasPrefix(appendix.Content, "# Appendix"))
}

func TestSplitByHeadingLevelOne(t *testing.T) {
	doc := "# A\n\none\n\n## A1\n\nsub\n\n# B\n\ntwo"
	var units []Unit
	for u := range SplitByHeading(doc, 1) {
		units = append(units, u)
	}
	require.Len(t, units, 2)
	assert.Contains(t, units[0].Content, "## A1")
	assert.Equal(t, []string{"B"}, units[1].HeadingPath)
}

func TestSplitByHeadingKeepsAncestorLevels(t *testing.T) {
	// The hierarchy starts below h1: rendered ancestors must keep their
	// source level, not be renumbered from h1.
	doc := "## Setup\n\nIntro.\n\n### Steps\n\nDo things."
	var units []Unit
	for u := range SplitByHeading(doc, 3) {
		units = append(units, u)
	}
	require.Len(t, units, 2)

	steps := units[1]
	assert.Equal(t, []string{"Setup", "Steps"}, steps.HeadingPath)
	assert.True(t, strings.HasPrefix(steps.Content, "## Setup\n\n### Steps"), "ancestor rendered at the wrong level: %q", steps.Content)
}

func TestSplitByHeadingRestartable(t *testing.T) {
	doc := "# A\n\none\n\n# B\n\ntwo"
	seq := SplitByHeading(doc, 1)
	var a, b []Unit
	for u := range seq {
		a = append(a, u)
	}
	for u := range seq {
		b = append(b, u)
	}
	assert.Equal(t, a, b)
}
