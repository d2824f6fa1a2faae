package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

const (
	maxTags       = 4
	maxLabels     = 3
	maxContentLen = 4000
)

// Tier is the cost class of the model a prompt is sent to.
type Tier string

const (
	TierFast  Tier = "fast"
	TierSmart Tier = "smart"
)

// Response is the object the model is asked to return.
type Response struct {
	Codename    string   `json:"codename"`
	Punchline   string   `json:"punchline"`
	Description string   `json:"description"`
	Categories  string   `json:"categories"`
	Labels      []string `json:"labels"`
	Tags        []string `json:"tags"`
}

type Prompt struct {
	Tier   Tier
	System string
	User   string
}

const systemPrompt = `You classify software products for a curated directory and rewrite their copy.
Answer with a single JSON object that matches the schema below and nothing else: no prose, no code fences.
Rules:
- "categories" is exactly one value from the category list.
- "labels" has 1 to %d values, all from the labels of the chosen category.
- "tags" has 1 to %d values, all from the tag list.
- A value may not appear in both "labels" and "tags".
- Every category, label and tag is lowercase snake_case.
- "codename" is the product's name in lowercase snake_case; keep the given one unless it is clearly wrong.
- "punchline" is one short sentence; "description" is one or two plain sentences.`

// Schema returns the JSON schema for Response with the vocabulary inlined as
// enums.
func (v *Vocabulary) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"codename", "punchline", "description", "categories", "labels", "tags"},
		"properties": map[string]any{
			"codename":    map[string]any{"type": "string", "pattern": "^[a-z0-9]+(_[a-z0-9]+)*$"},
			"punchline":   map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string", "minLength": 1},
			"categories":  map[string]any{"type": "string", "enum": v.Categories},
			"labels": map[string]any{
				"type":        "array",
				"minItems":    1,
				"maxItems":    maxLabels,
				"uniqueItems": true,
				"items":       map[string]any{"type": "string", "enum": v.AllLabels()},
			},
			"tags": map[string]any{
				"type":        "array",
				"minItems":    1,
				"maxItems":    maxTags,
				"uniqueItems": true,
				"items":       map[string]any{"type": "string", "enum": v.Tags},
			},
		},
	}
}

func (v *Vocabulary) describe() string {
	var b strings.Builder
	schema, _ := json.MarshalIndent(v.Schema(), "", "  ")
	b.WriteString("Schema:\n")
	b.Write(schema)
	b.WriteString("\n\nLabels by category:\n")
	for _, c := range v.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", c, strings.Join(v.Labels[c], ", "))
	}
	b.WriteString("\nTags: ")
	b.WriteString(strings.Join(v.Tags, ", "))
	b.WriteString("\n")
	return b.String()
}

func (v *Vocabulary) system() string {
	return fmt.Sprintf(systemPrompt, maxLabels, maxTags) + "\n\n" + v.describe()
}

func describeItem(item models.RawDataItem) string {
	content := item.SiteContent
	if r := []rune(content); len(r) > maxContentLen {
		content = string(r[:maxContentLen])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", item.FullName)
	fmt.Fprintf(&b, "Website: %s\n", item.ProductWebsite)
	fmt.Fprintf(&b, "Codename: %s\n", item.Codename)
	fmt.Fprintf(&b, "Punchline: %s\n", item.Punchline)
	fmt.Fprintf(&b, "Description: %s\n", item.Description)
	fmt.Fprintf(&b, "Content: %s\n", content)
	return b.String()
}

// BuildPrompt is the first-pass prompt for an item.
func BuildPrompt(v *Vocabulary, item models.RawDataItem) Prompt {
	var b strings.Builder
	for i, ex := range v.Examples {
		out, _ := json.Marshal(ex.Output)
		fmt.Fprintf(&b, "Example %d input:\n%s\nExample %d output:\n%s\n\n", i+1, describeItem(ex.Input), i+1, out)
	}
	b.WriteString("Classify this product:\n")
	b.WriteString(describeItem(item))
	return Prompt{Tier: TierFast, System: v.system(), User: b.String()}
}
