package bayespam

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"github.com/forPelevin/gomoji"
	"github.com/kljensen/snowball"
	"github.com/rivo/uniseg"
)

// stemmerLangs maps detected languages to snowball stemmer names.
// anything not listed gets the no-op fallback.
var stemmerLangs = map[whatlanggo.Lang]string{
	whatlanggo.Eng: "english",
	whatlanggo.Rus: "russian",
	whatlanggo.Spa: "spanish",
	whatlanggo.Fra: "french",
	whatlanggo.Swe: "swedish",
	whatlanggo.Hun: "hungarian",
}

// Tokenize turns text into an ordered sequence of normalized tokens:
// sentence segmentation, per-sentence language detection, word segmentation,
// lowercasing, stemming and alphanumeric filtering. Pure and deterministic,
// identical input always produces the identical sequence. Never fails, empty
// or symbol-only input yields an empty sequence.
func Tokenize(text string) []string {
	text = gomoji.RemoveEmojis(text)

	res := []string{}
	state := -1
	var sentence string
	for text != "" {
		sentence, text, state = uniseg.FirstSentenceInString(text, state)
		res = appendSentenceTokens(res, sentence)
	}
	return res
}

// appendSentenceTokens splits a single sentence into words and appends the
// normalized survivors. the stemmer is picked per sentence, detection over a
// single word is too noisy to be useful.
func appendSentenceTokens(res []string, sentence string) []string {
	lang := stemmerLang(sentence)

	state := -1
	var word string
	for sentence != "" {
		word, sentence, state = uniseg.FirstWordInString(sentence, state)
		if !isAlphaNumeric(word) {
			continue
		}
		res = append(res, stem(strings.ToLower(word), lang))
	}
	return res
}

// stemmerLang returns the snowball language for a piece of text, or empty
// string when detection is inconclusive or the language has no stemmer.
func stemmerLang(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return stemmerLangs[info.Lang]
}

// stem applies the selected snowball stemmer, keeping the token as-is on
// no-op fallback or stemmer failure.
func stem(token, lang string) string {
	if lang == "" {
		return token
	}
	stemmed, err := snowball.Stem(token, lang, false)
	if err != nil {
		return token
	}
	return stemmed
}

// isAlphaNumeric reports if the token consists of letters and digits only.
// word segmentation emits spaces and punctuation as separate segments, this
// filter drops them along with symbol-only tokens.
func isAlphaNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
