package seed

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var repeatedUnderscore = regexp.MustCompile(`_+`)

// SanitizeEntityName turns any spelling of a category, label or tag into its
// lookup key: "Design Tools", "designTools" and " Design_Tools " all become
// "design_tools".
func SanitizeEntityName(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	s = html.UnescapeString(s)
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	s = splitCamel(s)
	s = strings.ToLower(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	s = repeatedUnderscore.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// splitCamel puts an underscore at lower->Upper boundaries and before the
// last capital of an acronym run ("HTMLParser" -> "HTML_Parser").
func splitCamel(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
