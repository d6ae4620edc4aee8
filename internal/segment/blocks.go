package segment

import (
	"regexp"
	"strings"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
)

// block is one structural unit of the document: an ATX heading or a
// paragraph (which includes list runs, tables and fenced code, kept whole).
type block struct {
	kind  blockKind
	level int    // heading level 1..6, 0 for paragraphs
	title string // heading title without the # marker
	text  string // raw block text without the trailing blank line
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

func isFenceLine(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// parseBlocks splits markdown into heading and paragraph blocks. Heading
// markers inside fenced code blocks are treated as plain text.
func parseBlocks(text string) []block {
	var (
		blocks  []block
		current []string
		inFence bool
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		blocks = append(blocks, block{
			kind: blockParagraph,
			text: strings.Join(current, "\n"),
		})
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if isFenceLine(line) {
			inFence = !inFence
			current = append(current, line)
			continue
		}
		if inFence {
			current = append(current, line)
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			blocks = append(blocks, block{
				kind:  blockHeading,
				level: len(m[1]),
				title: m[2],
				text:  line,
			})
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

// headingTrail tracks the currently active heading per level.
type headingTrail struct {
	titles [6]string // index = level-1; deeper levels reset on push
	levels [6]bool
}

func (h *headingTrail) push(level int, title string) {
	h.titles[level-1] = title
	h.levels[level-1] = true
	for i := level; i < 6; i++ {
		h.levels[i] = false
		h.titles[i] = ""
	}
}

// chain returns the active headings shallower than or equal to maxLevel,
// ordered from h1 down.
func (h *headingTrail) chain(maxLevel int) []string {
	var out []string
	for i := 0; i < maxLevel && i < 6; i++ {
		if h.levels[i] {
			out = append(out, h.titles[i])
		}
	}
	return out
}

// headingRef pairs a heading title with its markdown level.
type headingRef struct {
	level int
	title string
}

// refs is chain with the source heading levels preserved.
func (h *headingTrail) refs(maxLevel int) []headingRef {
	var out []headingRef
	for i := 0; i < maxLevel && i < 6; i++ {
		if h.levels[i] {
			out = append(out, headingRef{level: i + 1, title: h.titles[i]})
		}
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`([.!?])(\s+)`)

// splitSentences splits text at sentence-ending punctuation followed by
// whitespace, keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	locs := sentenceEnd.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		end := loc[3] // after the punctuation, before the whitespace
		out = append(out, strings.TrimRight(text[prev:end], " "))
		prev = loc[5] // after the whitespace
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}
	return out
}
