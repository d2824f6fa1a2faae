package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeEntityName(t *testing.T) {
	cases := map[string]string{
		"Design Tools":      "design_tools",
		"designTools":       "design_tools",
		" Design_Tools ":    "design_tools",
		"DesignTools":       "design_tools",
		"design-tools":      "design_tools",
		"Design%20Tools":    "design_tools",
		"R&amp;D":           "r_d",
		"HTMLParser":        "html_parser",
		"ＡＩ Agents":         "ai_agents",
		"__note   taking__": "note_taking",
		"web3 Tools":        "web3_tools",
		"open_source":       "open_source",
		"":                  "",
		"!!!":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeEntityName(in), "input %q", in)
	}
}

func TestSanitizeEntityName_Idempotent(t *testing.T) {
	for _, in := range []string{"Design Tools", "HTMLParser", "AI%20Agents", "a__b"} {
		once := SanitizeEntityName(in)
		assert.Equal(t, once, SanitizeEntityName(once))
	}
}
