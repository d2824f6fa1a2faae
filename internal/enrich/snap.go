package enrich

import (
	"regexp"
	"strings"

	"github.com/reiver/go-porterstemmer"
)

var separators = regexp.MustCompile(`[\s\-]+`)

// tidy applies the cheap fixes a model gets wrong all the time: case,
// spaces and hyphens. Anything else is left for validation to report.
func tidy(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return separators.ReplaceAllString(value, "_")
}

func stemKey(value string) string {
	parts := strings.Split(value, "_")
	for i, p := range parts {
		parts[i] = stem(p)
	}
	return strings.Join(parts, "_")
}

func stem(token string) (out string) {
	defer func() {
		// the stemmer panics on some short non-ascii input
		if r := recover(); r != nil {
			out = token
		}
	}()
	return porterstemmer.StemString(token)
}

// snapper maps near misses ("design_tool", "Design-Tools") onto the
// vocabulary value sharing the same stems.
type snapper map[string]string

func newSnapper(values []string) snapper {
	s := make(snapper, len(values))
	for _, v := range values {
		s[stemKey(v)] = v
	}
	return s
}

func (s snapper) snap(value string) string {
	value = tidy(value)
	if v, ok := s[stemKey(value)]; ok {
		return v
	}
	return value
}

func (s snapper) snapAll(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = s.snap(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
