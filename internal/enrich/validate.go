package enrich

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

// Kind classifies why a model response was rejected. Kinds are listed from
// most to least fundamental; an Invalid carries the first one that applies.
type Kind string

const (
	KindFormat         Kind = "format"
	KindValidation     Kind = "validation"
	KindContent        Kind = "content"
	KindOverlap        Kind = "overlap"
	KindClassification Kind = "classification"
)

var kindOrder = []Kind{KindFormat, KindValidation, KindContent, KindOverlap, KindClassification}

type Problem struct {
	Kind    Kind
	Message string
}

// Outcome is either Valid or Invalid.
type Outcome interface {
	outcome()
}

type Valid struct {
	Item models.EnrichedDataItem
}

type Invalid struct {
	Raw      string
	Kind     Kind
	Problems []Problem
	// Item is the best-effort parse; it is empty for format problems.
	Item models.EnrichedDataItem
}

func (Valid) outcome()   {}
func (Invalid) outcome() {}

// OnlyClassification reports whether every problem is a classification one.
func (inv Invalid) OnlyClassification() bool {
	if len(inv.Problems) == 0 {
		return false
	}
	for _, p := range inv.Problems {
		if p.Kind != KindClassification {
			return false
		}
	}
	return true
}

func (inv Invalid) Error() string {
	msgs := make([]string, len(inv.Problems))
	for i, p := range inv.Problems {
		msgs[i] = p.Message
	}
	return fmt.Sprintf("%s: %s", inv.Kind, strings.Join(msgs, "; "))
}

var (
	snakeCase = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
	fences    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// extractJSON pulls the object out of a reply that may be wrapped in code
// fences or a sentence of chatter.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if m := fences.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

type validator struct {
	vocab      *Vocabulary
	categories snapper
	labels     snapper
	tags       snapper
}

func newValidator(v *Vocabulary) *validator {
	return &validator{
		vocab:      v,
		categories: newSnapper(v.Categories),
		labels:     newSnapper(v.AllLabels()),
		tags:       newSnapper(v.Tags),
	}
}

// Validate checks a raw model reply against the vocabulary. Near-miss values
// are snapped to the vocabulary before any rule runs.
func Validate(v *Vocabulary, raw string, item models.RawDataItem) Outcome {
	return newValidator(v).validate(raw, item)
}

func (val *validator) validate(raw string, item models.RawDataItem) Outcome {
	body, ok := extractJSON(raw)
	if !ok {
		return Invalid{Raw: raw, Kind: KindFormat, Problems: []Problem{{KindFormat, "reply contains no JSON object"}}}
	}
	var resp Response
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&resp); err != nil {
		return Invalid{Raw: raw, Kind: KindFormat, Problems: []Problem{{KindFormat, "reply is not valid JSON: " + err.Error()}}}
	}

	resp.Codename = strings.TrimSpace(resp.Codename)
	resp.Punchline = strings.TrimSpace(resp.Punchline)
	resp.Description = strings.TrimSpace(resp.Description)
	resp.Categories = val.categories.snap(resp.Categories)
	resp.Labels = val.labels.snapAll(resp.Labels)
	resp.Tags = val.tags.snapAll(resp.Tags)

	enriched := models.EnrichedDataItem{
		RawDataItem: item,
		Tags:        resp.Tags,
		Labels:      resp.Labels,
		Categories:  resp.Categories,
	}
	if resp.Codename != "" {
		enriched.Codename = resp.Codename
	}
	if resp.Punchline != "" {
		enriched.Punchline = resp.Punchline
	}
	if resp.Description != "" {
		enriched.Description = resp.Description
	}

	problems := val.check(resp)
	if len(problems) == 0 {
		return Valid{Item: enriched}
	}
	return Invalid{Raw: raw, Kind: primaryKind(problems), Problems: problems, Item: enriched}
}

func (val *validator) check(resp Response) []Problem {
	var problems []Problem
	add := func(kind Kind, format string, args ...any) {
		problems = append(problems, Problem{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	required := []struct{ field, value string }{
		{"codename", resp.Codename},
		{"punchline", resp.Punchline},
		{"description", resp.Description},
		{"categories", resp.Categories},
	}
	for _, r := range required {
		if r.value == "" {
			add(KindValidation, "%s is required", r.field)
		}
	}
	if len(resp.Tags) == 0 || len(resp.Tags) > maxTags {
		add(KindValidation, "tags must have 1 to %d values, got %d", maxTags, len(resp.Tags))
	}
	if len(resp.Labels) == 0 || len(resp.Labels) > maxLabels {
		add(KindValidation, "labels must have 1 to %d values, got %d", maxLabels, len(resp.Labels))
	}

	if resp.Codename != "" && !snakeCase.MatchString(resp.Codename) {
		add(KindContent, "codename %q is not snake_case", resp.Codename)
	}
	if resp.Categories != "" && !snakeCase.MatchString(resp.Categories) {
		add(KindContent, "category %q is not snake_case", resp.Categories)
	}
	for _, l := range resp.Labels {
		if !snakeCase.MatchString(l) {
			add(KindContent, "label %q is not snake_case", l)
		}
	}
	for _, t := range resp.Tags {
		if !snakeCase.MatchString(t) {
			add(KindContent, "tag %q is not snake_case", t)
		}
	}

	labels := make(map[string]bool, len(resp.Labels))
	for _, l := range resp.Labels {
		labels[l] = true
	}
	for _, t := range resp.Tags {
		if labels[t] {
			add(KindOverlap, "%q is used as both a label and a tag", t)
		}
	}

	if resp.Categories != "" && !val.vocab.HasCategory(resp.Categories) {
		add(KindClassification, "unknown category %q", resp.Categories)
	} else if resp.Categories != "" {
		for _, l := range resp.Labels {
			if !val.vocab.HasLabel(resp.Categories, l) {
				add(KindClassification, "label %q does not belong to category %q", l, resp.Categories)
			}
		}
	}
	for _, t := range resp.Tags {
		if !val.vocab.HasTag(t) {
			add(KindClassification, "unknown tag %q", t)
		}
	}
	return problems
}

func primaryKind(problems []Problem) Kind {
	for _, k := range kindOrder {
		for _, p := range problems {
			if p.Kind == k {
				return k
			}
		}
	}
	return KindValidation
}
