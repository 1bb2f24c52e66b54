// Package transform implements the reversible text pipeline between raw
// platform messages and the stored corpus form: canonicalization for
// comparison, anonymization before storage, and reification before sending.
package transform

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	texttransform "golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// markdownMarkers strips styling syntax while keeping the styled text.
// Order matters: multi-character markers first so "**" is not eaten as "*"+"*".
var markdownMarkers = []*regexp.Regexp{
	regexp.MustCompile("```[a-zA-Z0-9]*\n?"),
	regexp.MustCompile("``|`"),
	regexp.MustCompile(`\*\*\*|\*\*|\*`),
	regexp.MustCompile(`___|__|(?:^|\s)_|_(?:$|\s)`),
	regexp.MustCompile(`~~`),
	regexp.MustCompile(`\|\|`),
	regexp.MustCompile(`(?m)^#{1,3}\s+`),
	regexp.MustCompile(`(?m)^>>?>?\s`),
}

var foldChain = texttransform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// StripMarkdown removes structural styling markers, preserving the text they
// wrapped.
func StripMarkdown(s string) string {
	for _, re := range markdownMarkers {
		s = re.ReplaceAllString(s, replacementFor(re))
	}
	return s
}

func replacementFor(re *regexp.Regexp) string {
	// The underscore rule consumes the surrounding whitespace to avoid
	// stripping snake_case; put a single space back.
	if strings.Contains(re.String(), `\s`) && strings.Contains(re.String(), "_") {
		return " "
	}
	return ""
}

// Fold applies compatibility decomposition, removes diacritics and lowercases,
// so visually equivalent renderings of a word compare equal.
func Fold(s string) string {
	folded, _, err := texttransform.String(foldChain, s)
	if err != nil {
		// Malformed input passes through unchanged.
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// Canonicalize normalizes raw message text to its comparison-stable form.
// Pure and deterministic; mention syntax is left intact for the anonymizer.
func Canonicalize(s string) string {
	return Fold(StripMarkdown(s))
}
