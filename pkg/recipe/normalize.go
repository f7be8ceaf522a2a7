package recipe

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Placeholder shown for a missing soak or cook time.
const Dash = "—"

// NormalizeText puts text in Unicode NFC so a kana typed with a combining
// voiced mark stores and matches like its precomposed form.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}

// SplitKeywords turns the comma separated keyword field into trimmed NFC
// tokens. Blank tokens are dropped, so empty text yields an empty list.
func SplitKeywords(text string) []string {
	keywords := []string{}
	for _, k := range strings.Split(NormalizeText(text), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// SafeImage normalizes an image reference: nil and blank strings are both
// "no image".
func SafeImage(url *string) *string {
	if url == nil || strings.TrimSpace(*url) == "" {
		return nil
	}
	return url
}

// NormalizeImage is SafeImage for plain strings.
func NormalizeImage(url string) *string {
	return SafeImage(&url)
}

// HasImage reports whether url refers to an image.
func HasImage(url *string) bool {
	return SafeImage(url) != nil
}

// DisplayImage returns the recipe's main image or fallback when it has none.
func DisplayImage(r Recipe, fallback string) string {
	if img := SafeImage(r.Image); img != nil {
		return *img
	}
	return fallback
}

// OrDash renders free-text durations, substituting Dash for empty values.
func OrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return Dash
	}
	return s
}

// MatchName reports whether the recipe name contains term. Matching is
// case-sensitive containment over NFC forms.
func MatchName(r Recipe, term string) bool {
	return strings.Contains(NormalizeText(r.Name), NormalizeText(term))
}

// FilterByName returns the recipes whose name contains term, in input order.
func FilterByName(recipes []Recipe, term string) []Recipe {
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if MatchName(r, term) {
			out = append(out, r)
		}
	}
	return out
}
