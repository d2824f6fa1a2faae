package enrich

import (
	"fmt"
	"strings"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

type strategy struct {
	tier   Tier
	hint   string
	before string
	after  string
}

var strategies = map[Kind]strategy{
	KindFormat: {
		tier:   TierFast,
		hint:   "Your reply could not be parsed. Return only the JSON object, with double-quoted keys and no surrounding text or code fences.",
		before: "Sure! Here is the result: ```json {codename: 'acme', ...} ```",
		after:  `{"codename":"acme","punchline":"...","description":"...","categories":"dev","labels":["cli_tools"],"tags":["open_source"]}`,
	},
	KindValidation: {
		tier:   TierSmart,
		hint:   "Some fields are missing or have the wrong number of values. Fill every required field and keep at most 3 labels and at most 4 tags, with at least one of each.",
		before: `{"codename":"acme","categories":"dev","labels":["cli_tools","devops","testing","hosting"],"tags":[]}`,
		after:  `{"codename":"acme","punchline":"Ship from the terminal","description":"Acme deploys apps from the command line.","categories":"dev","labels":["cli_tools","devops"],"tags":["cli","open_source"]}`,
	},
	KindContent: {
		tier:   TierFast,
		hint:   "The codename and every category, label and tag must be lowercase snake_case: letters and digits joined by single underscores.",
		before: `{"codename":"Acme App","labels":["Note Taking"],"tags":["Open-Source","AI/ML"]}`,
		after:  `{"codename":"acme_app","labels":["note_taking"],"tags":["open_source","ai_powered"]}`,
	},
	KindOverlap: {
		tier:   TierSmart,
		hint:   "Labels and tags must not share a value. Keep a shared value as a label when it describes what the product is, and replace it in the tags with a different tag that still fits.",
		before: `{"categories":"design","labels":["design_tools","prototyping"],"tags":["design_tools","saas"]}`,
		after:  `{"categories":"design","labels":["design_tools","prototyping"],"tags":["collaboration","saas"]}`,
	},
	KindClassification: {
		tier:   TierSmart,
		hint:   "Use only values from the vocabulary. The category must be one of the listed categories, labels must come from that category's list, and tags from the tag list.",
		before: `{"categories":"developer","labels":["package_registry"],"tags":["js"]}`,
		after:  `{"categories":"dev","labels":["package_managers"],"tags":["javascript"]}`,
	},
}

// TierFor is the model tier a repair of the given kind is sent to.
func TierFor(kind Kind) Tier {
	if s, ok := strategies[kind]; ok {
		return s.tier
	}
	return TierSmart
}

// RepairPrompt builds the follow-up prompt for a rejected reply. It only
// depends on its arguments.
func RepairPrompt(v *Vocabulary, inv Invalid, item models.RawDataItem) Prompt {
	s, ok := strategies[inv.Kind]
	if !ok {
		s = strategies[KindValidation]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your previous answer was rejected (%s).\n", inv.Kind)
	b.WriteString("Problems:\n")
	for _, p := range inv.Problems {
		fmt.Fprintf(&b, "- [%s] %s\n", p.Kind, p.Message)
	}
	fmt.Fprintf(&b, "\nHow to fix it: %s\n", s.hint)
	fmt.Fprintf(&b, "\nWrong:\n%s\nRight:\n%s\n", s.before, s.after)
	fmt.Fprintf(&b, "\nYour previous answer:\n%s\n", inv.Raw)
	b.WriteString("\nThe product:\n")
	b.WriteString(describeItem(item))
	b.WriteString("\nReturn the corrected JSON object only.")
	return Prompt{Tier: s.tier, System: v.system(), User: b.String()}
}
