package enrich

import (
	"sort"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

// Vocabulary is the controlled set of values the model may classify with.
// Labels are scoped to a category, tags are global.
type Vocabulary struct {
	Categories []string
	Labels     map[string][]string
	Tags       []string
	Examples   []Example
}

// Example is a worked classification shown to the model.
type Example struct {
	Input  models.RawDataItem
	Output Response
}

func (v *Vocabulary) HasCategory(c string) bool {
	_, ok := v.Labels[c]
	return ok
}

func (v *Vocabulary) HasLabel(category, label string) bool {
	for _, l := range v.Labels[category] {
		if l == label {
			return true
		}
	}
	return false
}

func (v *Vocabulary) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AllLabels returns every label across categories, sorted and unique.
func (v *Vocabulary) AllLabels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, labels := range v.Labels {
		for _, l := range labels {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	sort.Strings(out)
	return out
}

// DefaultVocabulary is the directory's taxonomy. Some values (design_tools,
// automation, analytics) exist both as a label and as a tag; the model must
// pick one side for a given item.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Categories: []string{"ai", "data", "design", "dev", "marketing", "productivity", "security", "finance"},
		Labels: map[string][]string{
			"ai": {
				"ai_agents", "chatbots", "code_assistants", "image_generation",
				"llm_ops", "speech", "writing_assistants",
			},
			"data": {
				"analytics", "data_visualization", "databases", "etl",
				"spreadsheets", "web_scraping",
			},
			"design": {
				"design_tools", "icons", "illustration", "mockups",
				"prototyping", "typography", "ui_kits",
			},
			"dev": {
				"api_tools", "cli_tools", "code_editors", "devops", "frameworks",
				"hosting", "package_managers", "testing", "version_control",
			},
			"marketing": {
				"advertising", "email_marketing", "landing_pages", "seo",
				"social_media", "analytics",
			},
			"productivity": {
				"automation", "calendars", "knowledge_base", "note_taking",
				"task_management", "time_tracking",
			},
			"security": {
				"authentication", "password_managers", "privacy", "vulnerability_scanning",
			},
			"finance": {
				"accounting", "invoicing", "payments", "personal_finance",
			},
		},
		Tags: []string{
			"ai_powered", "analytics", "api", "automation", "browser_extension",
			"cli", "collaboration", "design_tools", "desktop_app", "developer_tools",
			"free", "freemium", "javascript", "mobile_app", "no_code", "node",
			"open_source", "paid", "python", "saas", "self_hosted", "team",
		},
		Examples: []Example{
			{
				Input: models.RawDataItem{
					FullName:       "Figma",
					ProductWebsite: "https://figma.com",
					Codename:       "figma",
					Punchline:      "Design together",
					Description:    "Collaborative interface design tool",
				},
				Output: Response{
					Codename:    "figma",
					Punchline:   "Collaborative interface design in the browser",
					Description: "Figma lets teams design, prototype and hand off interfaces together in real time.",
					Categories:  "design",
					Labels:      []string{"design_tools", "prototyping"},
					Tags:        []string{"collaboration", "freemium", "saas"},
				},
			},
			{
				Input: models.RawDataItem{
					FullName:       "Ollama",
					ProductWebsite: "https://ollama.com",
					Codename:       "ollama",
					Punchline:      "Get up and running with large language models",
					Description:    "Run Llama and other models locally",
				},
				Output: Response{
					Codename:    "ollama",
					Punchline:   "Run large language models on your own machine",
					Description: "Ollama downloads and serves open models locally behind a simple CLI and API.",
					Categories:  "ai",
					Labels:      []string{"llm_ops"},
					Tags:        []string{"open_source", "cli", "self_hosted", "api"},
				},
			},
		},
	}
}
