package analyzer

import "strings"

// PortugueseStemmer is a light suffix stripper for accent-folded Portuguese.
// It conflates plural, feminine and the common nominal/verbal derivations
// found in normative text (revogada, revogação, revogar -> revog).
type PortugueseStemmer struct {
	minStem int
}

func NewPortugueseStemmer() *PortugueseStemmer {
	return &PortugueseStemmer{minStem: 3}
}

// Stem expects a lower-case, accent-folded word.
func (p *PortugueseStemmer) Stem(word string) string {
	if len(word) <= p.minStem {
		return word
	}

	word = p.stepPlural(word)
	word = p.stepFeminine(word)
	word = p.stepAdverb(word)
	if w, ok := p.stripFirst(word, nounSuffixes); ok {
		return w
	}
	if w, ok := p.stripFirst(word, verbSuffixes); ok {
		return w
	}
	return p.stepVowel(word)
}

var pluralRules = []struct{ suffix, repl string }{
	{"oes", "ao"},
	{"aes", "ao"},
	{"ais", "al"},
	{"eis", "el"},
	{"ois", "ol"},
	{"les", "l"},
	{"res", "r"},
	{"zes", "z"},
	{"ns", "m"},
}

func (p *PortugueseStemmer) stepPlural(word string) string {
	if !strings.HasSuffix(word, "s") || strings.HasSuffix(word, "ss") || strings.HasSuffix(word, "us") {
		return word
	}
	for _, r := range pluralRules {
		if strings.HasSuffix(word, r.suffix) && len(word)-len(r.suffix) >= p.minStem {
			return word[:len(word)-len(r.suffix)] + r.repl
		}
	}
	if len(word)-1 >= p.minStem {
		return word[:len(word)-1]
	}
	return word
}

var feminineRules = []struct{ suffix, repl string }{
	{"ona", "ao"},
	{"ora", "or"},
	{"osa", "oso"},
	{"iva", "ivo"},
	{"ada", "ado"},
	{"ida", "ido"},
	{"ica", "ico"},
	{"ina", "ino"},
}

func (p *PortugueseStemmer) stepFeminine(word string) string {
	for _, r := range feminineRules {
		if strings.HasSuffix(word, r.suffix) && len(word)-len(r.suffix) >= p.minStem {
			return word[:len(word)-len(r.suffix)] + r.repl
		}
	}
	return word
}

func (p *PortugueseStemmer) stepAdverb(word string) string {
	if strings.HasSuffix(word, "mente") && len(word)-5 >= p.minStem {
		return word[:len(word)-5]
	}
	return word
}

// Longest suffix first.
var nounSuffixes = []string{
	"amento", "imento", "idade", "mento",
	"acao", "icao", "ucao", "ivel", "avel",
	"ismo", "ista", "ador", "edor", "idor",
	"ante", "ente", "ivo", "oso",
}

var verbSuffixes = []string{
	"aram", "eram", "iram", "ando", "endo", "indo",
	"ado", "ido", "ava", "ara", "ar", "er", "ir", "ou",
}

func (p *PortugueseStemmer) stripFirst(word string, suffixes []string) (string, bool) {
	for _, s := range suffixes {
		if strings.HasSuffix(word, s) && len(word)-len(s) >= p.minStem {
			return word[:len(word)-len(s)], true
		}
	}
	return word, false
}

func (p *PortugueseStemmer) stepVowel(word string) string {
	if len(word)-1 < p.minStem+1 {
		return word
	}
	switch word[len(word)-1] {
	case 'a', 'e', 'o':
		return word[:len(word)-1]
	}
	return word
}
