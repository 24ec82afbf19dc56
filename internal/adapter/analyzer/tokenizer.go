package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits text into keyword-index terms: lower-cased, accent
// folded, Portuguese stopwords removed, optionally stemmed.
type Tokenizer struct {
	stemmer   *PortugueseStemmer
	stopwords map[string]struct{}
	useStem   bool
}

func NewTokenizer(useStemming bool) *Tokenizer {
	var stemmer *PortugueseStemmer
	if useStemming {
		stemmer = NewPortugueseStemmer()
	}
	return &Tokenizer{
		stemmer:   stemmer,
		stopwords: defaultStopwords(),
		useStem:   useStemming,
	}
}

func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(Fold(text))
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.useStem && t.stemmer != nil {
			word = t.stemmer.Stem(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountTokens approximates the model token count used for chunk sizing.
func (t *Tokenizer) CountTokens(text string) int {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	// Portuguese words average slightly more subword pieces than English.
	return int(float64(len(words)) * 1.4)
}

// Fold lower-cases text and strips combining marks (ação -> acao).
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// Accent-folded, since Tokenize folds before the lookup.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "ao", "aos", "as", "com", "como", "da", "das", "de", "dela",
		"dele", "do", "dos", "e", "ela", "ele", "em", "entre", "era", "esta",
		"este", "eu", "foi", "ha", "isso", "isto", "ja", "la", "lhe", "mais",
		"mas", "me", "mesmo", "na", "nao", "nas", "nem", "no", "nos", "num",
		"numa", "o", "os", "ou", "para", "pela", "pelas", "pelo", "pelos",
		"por", "qual", "quando", "que", "quem", "se", "sem", "ser", "seu",
		"seus", "sua", "suas", "so", "tambem", "te", "tem", "um", "uma",
		"umas", "uns", "sao", "sobre", "esse", "essa", "aquele", "aquela",
		"the", "of", "and",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
