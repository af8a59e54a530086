// Package language implements the rule-augmented RU/KZ/ENG detector:
// a statistical confidence model backstopped by Kazakh-character-ratio
// and function-word heuristics, so short or code-mixed tickets don't
// get misrouted by the model alone.
package language

import (
	"regexp"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/ticketfire/backend/internal/models"
)

var (
	urlPattern = regexp.MustCompile(`http\S+`)
	fwrePattern = regexp.MustCompile(`(?i)FW:|RE:`)
)

// kzChars is the set of Kazakh-specific Cyrillic letters absent from
// standard Russian.
var kzChars = map[rune]struct{}{
	'ә': {}, 'ғ': {}, 'қ': {}, 'ң': {}, 'ө': {}, 'ұ': {}, 'ү': {}, 'һ': {}, 'і': {},
	'Ә': {}, 'Ғ': {}, 'Қ': {}, 'Ң': {}, 'Ө': {}, 'Ұ': {}, 'Ү': {}, 'Һ': {}, 'І': {},
}

var kzFunctionWords = map[string]struct{}{
	"және": {}, "бұл": {}, "мен": {}, "бар": {}, "деп": {}, "үшін": {}, "бір": {}, "не": {},
	"да": {}, "де": {}, "ол": {}, "біз": {}, "сіз": {}, "жоқ": {}, "болды": {}, "бола": {},
	"туралы": {}, "дейін": {}, "егер": {}, "немесе": {}, "себебі": {},
}

var englishCommonWords = map[string]struct{}{
	"i": {}, "the": {}, "is": {}, "are": {}, "you": {}, "my": {}, "me": {}, "we": {}, "it": {},
	"to": {}, "in": {}, "of": {}, "and": {}, "a": {}, "an": {}, "this": {}, "that": {}, "for": {},
	"not": {}, "can": {}, "do": {}, "have": {}, "please": {}, "hello": {}, "hi": {}, "hey": {},
	"your": {}, "with": {}, "from": {}, "been": {}, "was": {}, "am": {}, "be": {}, "but": {},
	"they": {}, "there": {}, "what": {}, "how": {}, "why": {}, "when": {}, "will": {}, "no": {},
}

const (
	highConfidence       = 0.80
	lowConfidence         = 0.40
	engMinConfidence      = 0.90
	kzCharNoiseThreshold  = 0.03
	kzCharStrongThreshold = 0.15
)

// Detector wraps a lingua-go confidence model scoped to the three
// languages this system ever routes tickets in.
type Detector struct {
	inner lingua.LanguageDetector
}

// New builds a Detector. Construction loads lingua's language models, so
// callers should build one and reuse it rather than constructing per
// request.
func New() *Detector {
	languages := []lingua.Language{lingua.Russian, lingua.Kazakh, lingua.English}
	inner := lingua.NewLanguageDetectorBuilder().FromLanguages(languages...).Build()
	return &Detector{inner: inner}
}

// Detect returns one of models.LanguageRU/KZ/ENG for the given free text.
// It is deterministic and pure over its input.
func (d *Detector) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return models.LanguageRU
	}

	clean := preprocess(text)
	kzRatio := kzCharRatio(clean)
	hasKZWords := hasKZFunctionWords(clean)

	confidence := d.confidenceMap(clean)
	topLang, topConf := topLanguage(confidence)

	switch {
	case topConf >= highConfidence:
		if topLang == models.LanguageENG && (topConf < engMinConfidence || !hasEnglishWords(clean)) {
			return models.LanguageRU
		}
		return topLang

	case topConf >= lowConfidence:
		if kzRatio >= kzCharStrongThreshold || hasKZWords {
			return models.LanguageKZ
		}
		if topLang == models.LanguageKZ && topConf < 0.55 && kzRatio < kzCharNoiseThreshold && !hasKZWords {
			ruConf := confidence[models.LanguageRU]
			engConf := confidence[models.LanguageENG]
			if engConf > ruConf {
				return models.LanguageENG
			}
			return models.LanguageRU
		}
		return topLang

	default:
		if kzRatio >= kzCharStrongThreshold || hasKZWords {
			return models.LanguageKZ
		}
		return models.LanguageRU
	}
}

func (d *Detector) confidenceMap(text string) map[string]float64 {
	out := map[string]float64{
		models.LanguageRU:  0,
		models.LanguageKZ:  0,
		models.LanguageENG: 0,
	}
	for _, cv := range d.inner.ComputeLanguageConfidenceValues(text) {
		switch cv.Language() {
		case lingua.Russian:
			out[models.LanguageRU] = cv.Value()
		case lingua.Kazakh:
			out[models.LanguageKZ] = cv.Value()
		case lingua.English:
			out[models.LanguageENG] = cv.Value()
		}
	}
	return out
}

func topLanguage(confidence map[string]float64) (string, float64) {
	top, topVal := models.LanguageRU, -1.0
	// Fixed iteration order so ties resolve the same way every call.
	for _, lang := range []string{models.LanguageRU, models.LanguageKZ, models.LanguageENG} {
		if v := confidence[lang]; v > topVal {
			top, topVal = lang, v
		}
	}
	return top, topVal
}

func preprocess(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = fwrePattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func kzCharRatio(text string) float64 {
	var alpha, kz int
	for _, c := range text {
		if !isAlpha(c) {
			continue
		}
		alpha++
		if _, ok := kzChars[c]; ok {
			kz++
		}
	}
	if alpha == 0 {
		return 0
	}
	return float64(kz) / float64(alpha)
}

func isAlpha(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') ||
		('а' <= c && c <= 'я') || ('А' <= c && c <= 'Я') ||
		c == 'ё' || c == 'Ё' || isKZExtra(c)
}

func isKZExtra(c rune) bool {
	_, ok := kzChars[c]
	return ok
}

func hasKZFunctionWords(text string) bool {
	return wordsIntersect(text, kzFunctionWords)
}

func hasEnglishWords(text string) bool {
	return wordsIntersect(text, englishCommonWords)
}

func wordsIntersect(text string, set map[string]struct{}) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}
