package attendance

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// normalizeName normalizes an identity for comparison (lowercase, no
// diacritics, spaces for dashes). Gallery identities come from file names,
// session usernames from the login form; the two are often typed
// differently for the same person.
func normalizeName(name string) string {
	name = removeDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

// sameIdentity reports whether two identity labels name the same person.
func sameIdentity(a, b string) bool {
	return normalizeName(a) == normalizeName(b)
}
