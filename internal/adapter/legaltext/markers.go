// Package legaltext recognises the structural markers of Brazilian normative
// text: headings (TÍTULO, CAPÍTULO, SEÇÃO...), articles, paragraphs and
// sub-items (incisos, alíneas).
package legaltext

import (
	"regexp"
	"strings"
)

// Heading levels, outermost first.
const (
	LevelPart = iota
	LevelBook
	LevelTitle
	LevelChapter
	LevelSection
	LevelSubsection
)

var headingLevels = map[string]int{
	"PARTE":    LevelPart,
	"LIVRO":    LevelBook,
	"TÍTULO":   LevelTitle,
	"TITULO":   LevelTitle,
	"CAPÍTULO": LevelChapter,
	"CAPITULO": LevelChapter,
	"SEÇÃO":    LevelSection,
	"SECAO":    LevelSection,
	"SUBSEÇÃO": LevelSubsection,
	"SUBSECAO": LevelSubsection,
}

var (
	headingRe = regexp.MustCompile(`^(?i)(parte|livro|t[íi]tulo|cap[íi]tulo|se[çc][ãa]o|subse[çc][ãa]o)(\s+.*)?$`)

	headingNumberRe = regexp.MustCompile(`^([IVXLCDM]+|\d+|[ÚU]NIC[OA]|GERAL|ESPECIAL)\b\.?\s*(?:[-–—:.]\s*)?(.*)$`)

	romanRe = regexp.MustCompile(`^M{0,3}(CM|CD|D?C{0,3})(XC|XL|L?X{0,3})(IX|IV|V?I{0,3})$`)

	markerRe = regexp.MustCompile(
		`(?P<art>Art\.?\s*(\d+(?:\.\d{3})*)(?:-([A-Z])\b|[º°]|o\b)?\.?)` +
			`|(?P<par>§\s*\d+\s*[º°]?|(?i:par[áa]grafo\s+[úu]nico))` +
			`|(?P<item>\b[IVXLCDM]+\s*[-–—]\s|\b[a-z]\)\s)`)

	markdownTrim = " \t#*>"
)

var (
	artGroup  = markerRe.SubexpIndex("art")
	parGroup  = markerRe.SubexpIndex("par")
	itemGroup = markerRe.SubexpIndex("item")
)

// stripMarkdown removes heading hashes, blockquote marks and bold markers
// that converted documents wrap around structural lines.
func stripMarkdown(line string) string {
	return strings.Trim(line, markdownTrim)
}

// matchHeading parses a heading line. ok is false when the line is not a
// heading at all; ambiguous is set when a structural keyword was written in
// capitals but is not followed by a valid numeral.
func matchHeading(line string) (h Segment, ok bool, ambiguous bool) {
	clean := stripMarkdown(line)
	m := headingRe.FindStringSubmatch(clean)
	if m == nil {
		return Segment{}, false, false
	}
	keyword := strings.ToUpper(m[1])
	level, known := headingLevels[keyword]
	if !known {
		return Segment{}, false, false
	}
	rest := strings.TrimSpace(m[2])
	upperKeyword := m[1] == keyword

	n := headingNumberRe.FindStringSubmatch(rest)
	if n == nil || !validNumeral(n[1]) {
		// "Seção de protocolo..." is prose; "CAPÍTULO DAS NORMAS" is a broken heading.
		return Segment{}, false, upperKeyword
	}

	return Segment{
		Kind:  Heading,
		Level: level,
		Label: keyword + " " + n[1],
		Title: strings.TrimSpace(strings.Trim(n[2], "*")),
	}, true, false
}

func validNumeral(s string) bool {
	switch s {
	case "ÚNICO", "ÚNICA", "UNICO", "UNICA", "GERAL", "ESPECIAL":
		return true
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	return romanRe.MatchString(s)
}

// ArticleLabel normalises an article number to its citation form.
func ArticleLabel(number, suffix string) string {
	number = strings.ReplaceAll(number, ".", "")
	if suffix != "" {
		return "Art. " + number + "-" + strings.ToUpper(suffix)
	}
	return "Art. " + number
}

// ArticleSlug is the id-safe form of an article label ("Art. 10-A" -> "art-10-a").
func ArticleSlug(label string) string {
	s := strings.ToLower(strings.TrimPrefix(label, "Art. "))
	return "art-" + s
}

func isUpperProse(line string) bool {
	letters := 0
	for _, r := range line {
		if r >= 'a' && r <= 'z' || strings.ContainsRune("áàâãéêíóôõúç", r) {
			return false
		}
		if r >= 'A' && r <= 'Z' || strings.ContainsRune("ÁÀÂÃÉÊÍÓÔÕÚÇ", r) {
			letters++
		}
	}
	return letters > 0
}
