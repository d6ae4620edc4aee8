package segment

import (
	"iter"
	"strings"
)

// Unit is one self-contained prompt produced by SplitByHeading. Content
// carries the ancestor heading chain so the unit can be consumed without
// the rest of the document.
type Unit struct {
	Index       int
	HeadingPath []string // headings from h1 down to the unit's own heading
	Content     string
}

// SplitByHeading cuts markdown at headings of the given level or shallower.
// Each unit runs from such a heading up to the next one. Text before the
// first qualifying heading becomes a preamble unit with an empty path.
// Headings deeper than level stay inside their unit.
//
// Content opens with the ancestor headings rendered as markdown, so a unit
// cut at level 2 inside "# Report" starts with "# Report" before its own
// "## Section" line. The returned sequence is lazy and restartable.
func SplitByHeading(text string, level int) iter.Seq[Unit] {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}

	return func(yield func(Unit) bool) {
		blocks := parseBlocks(text)

		var (
			trail headingTrail
			parts []string
			path  []string
			index int
		)

		flush := func() bool {
			if len(parts) == 0 {
				return true
			}
			u := Unit{
				Index:       index,
				HeadingPath: path,
				Content:     strings.TrimSpace(strings.Join(parts, "\n\n")),
			}
			index++
			parts = nil
			return yield(u)
		}

		for _, b := range blocks {
			if b.kind == blockHeading {
				if b.level <= level {
					if !flush() {
						return
					}
					trail.push(b.level, b.title)
					path = trail.chain(6)
					// Ancestors above the unit's own heading are rendered
					// into the body so the unit stands alone.
					parts = append(parts, renderAncestors(trail.refs(6))+b.text)
					continue
				}
				trail.push(b.level, b.title)
			}
			parts = append(parts, b.text)
		}
		flush()
	}
}

// renderAncestors renders every heading above the unit's own as markdown
// heading lines at their source level, separated by blank lines.
func renderAncestors(refs []headingRef) string {
	if len(refs) <= 1 {
		return ""
	}
	var sb strings.Builder
	for _, r := range refs[:len(refs)-1] {
		sb.WriteString(strings.Repeat("#", r.level))
		sb.WriteByte(' ')
		sb.WriteString(r.title)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
