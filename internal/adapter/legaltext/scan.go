package legaltext

import (
	"strings"
	"unicode/utf8"
)

type Kind int

const (
	Text Kind = iota
	Heading
	Article
	Paragraph
	Item
)

func (k Kind) String() string {
	switch k {
	case Heading:
		return "heading"
	case Article:
		return "article"
	case Paragraph:
		return "paragraph"
	case Item:
		return "item"
	default:
		return "text"
	}
}

// Segment is a run of text that starts at a structural marker, or plain
// text between markers. Text is trimmed; LineStart and BlankBefore keep
// enough layout to rebuild the original line structure.
type Segment struct {
	Kind        Kind
	Text        string
	Line        int
	LineStart   bool
	BlankBefore bool

	// Heading fields.
	Level int
	Title string

	// Label is "CAPÍTULO II" for headings and "Art. 45" for articles.
	Label string
}

// Ambiguity is a line that looks structural but cannot be parsed.
type Ambiguity struct {
	Line int
	Text string
}

// ContinuationMarker separates the repeated caput from the body of a
// continuation fragment.
const ContinuationMarker = "[...continuação...]"

// Scan splits content into structural segments in document order.
func Scan(content string) ([]Segment, []Ambiguity) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var segs []Segment
	var amb []Ambiguity
	blank := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			blank = len(segs) > 0
			continue
		}

		h, ok, ambiguous := matchHeading(line)
		if ok {
			h.Line = i + 1
			h.LineStart = true
			h.BlankBefore = blank
			h.Text = strings.TrimSpace(line)
			if h.Title == "" {
				if j, title := subtitle(lines, i+1); title != "" {
					h.Title = title
					h.Text += "\n" + strings.TrimSpace(lines[j])
					i = j
				}
			}
			segs = append(segs, h)
			blank = false
			continue
		}
		if ambiguous {
			amb = append(amb, Ambiguity{Line: i + 1, Text: strings.TrimSpace(line)})
		}

		segs = append(segs, splitLine(line, i+1, blank)...)
		blank = false
	}

	return segs, amb
}

// subtitle returns the upper-case title line that follows a bare heading.
func subtitle(lines []string, from int) (int, string) {
	for j := from; j < len(lines) && j <= from+1; j++ {
		line := strings.TrimSpace(lines[j])
		if line == "" {
			continue
		}
		if _, ok, _ := matchHeading(line); ok {
			return 0, ""
		}
		clean := stripMarkdown(line)
		if loc := markerRe.FindStringIndex(clean); loc != nil && loc[0] == 0 {
			return 0, ""
		}
		if !isUpperProse(clean) {
			return 0, ""
		}
		return j, clean
	}
	return 0, ""
}

type cut struct {
	pos       int
	end       int
	kind      Kind
	label     string
	lineStart bool
}

func splitLine(line string, lineNo int, blank bool) []Segment {
	var cuts []cut
	for _, m := range markerRe.FindAllStringSubmatchIndex(line, -1) {
		kind := markerKind(m)
		prefix := line[:m[0]]
		if !atBoundary(prefix, kind) {
			continue
		}
		c := cut{pos: m[0], end: m[1], kind: kind, lineStart: strings.Trim(prefix, markdownTrim) == ""}
		if kind == Article {
			c.label = ArticleLabel(group(line, m, artGroup+1), group(line, m, artGroup+2))
		}
		cuts = append(cuts, c)
	}

	var segs []Segment
	add := func(s Segment) {
		if strings.Trim(s.Text, markdownTrim) == "" {
			return
		}
		if len(segs) == 0 {
			s.BlankBefore = blank
		}
		s.Line = lineNo
		segs = append(segs, s)
	}

	first := len(line)
	if len(cuts) > 0 {
		first = cuts[0].pos
	}
	add(Segment{Kind: Text, Text: strings.TrimSpace(line[:first]), LineStart: true})

	for i, c := range cuts {
		end := len(line)
		if i+1 < len(cuts) {
			end = cuts[i+1].pos
		}
		// **Art. 1º** Caput. loses the bold run closing the marker.
		text := line[c.pos:c.end] + strings.TrimLeft(line[c.end:end], "*")
		add(Segment{
			Kind:      c.kind,
			Text:      strings.TrimSpace(text),
			LineStart: c.lineStart || len(segs) == 0,
			Label:     c.label,
		})
	}
	return segs
}

func markerKind(m []int) Kind {
	switch {
	case m[2*artGroup] >= 0:
		return Article
	case m[2*parGroup] >= 0:
		return Paragraph
	default:
		return Item
	}
}

func group(s string, m []int, g int) string {
	if m[2*g] < 0 {
		return ""
	}
	return s[m[2*g]:m[2*g+1]]
}

// atBoundary decides whether a marker starts a new structural unit. Markers
// count at the start of a line, or inline right after sentence punctuation,
// so citations like "nos termos do Art. 5º" stay plain text.
func atBoundary(prefix string, kind Kind) bool {
	if strings.Trim(prefix, markdownTrim) == "" {
		return true
	}
	trimmed := strings.TrimRight(prefix, " \t*")
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	switch kind {
	case Item:
		return r == ':' || r == ';'
	default:
		return r == '.' || r == ';' || r == ':'
	}
}

// Join concatenates segments back into text, keeping line structure.
func Join(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			switch {
			case s.BlankBefore:
				b.WriteString("\n\n")
			case s.LineStart:
				b.WriteString("\n")
			default:
				b.WriteString(" ")
			}
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Head returns the leading unit of a chunk: for an article, its caput.
func Head(content string) string {
	segs, _ := Scan(content)
	var head []Segment
	for i, s := range segs {
		if i > 0 && (s.Kind != Text || strings.Contains(s.Text, ContinuationMarker)) {
			break
		}
		head = append(head, s)
	}
	return Join(head)
}
