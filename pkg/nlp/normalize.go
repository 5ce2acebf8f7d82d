package nlp

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanText lowercases, strips diacritics and replaces everything that is
// not a letter or digit with single spaces.
func CleanText(text string) string {
	text = strings.ToLower(text)

	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		result = text
	}

	result = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, result)

	return strings.Join(strings.Fields(result), " ")
}

// Tidy normalizes a transcript for storage: NFC, invisible format runes
// dropped, whitespace collapsed.
func Tidy(text string) string {
	text = norm.NFC.String(text)
	text = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// IsBlank is true for text with nothing speakable in it, such as the lone
// "." some transcription models return for silence.
func IsBlank(text string) bool {
	return CleanText(text) == ""
}

// Matches compares two strings ignoring case, accents and punctuation.
func Matches(a, b string) bool {
	return CleanText(a) == CleanText(b)
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
