// Package progress derives completion scores from step payloads. Scores are
// computed server-side from the canonical payload shape; callers never supply
// their own numbers.
package progress

import (
	"math"

	"waypoint/api/internal/schema"
)

// SectionScore is the contribution of one weighted section.
type SectionScore struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Weight int     `json:"weight"`
	Filled int     `json:"filled"`
	Total  int     `json:"total"`
	Score  float64 `json:"score"`
}

// Score computes the 0-100 completion score for a step payload. Section
// contributions are kept as floats and rounded once at the end, so partial
// fills accumulate without per-section truncation.
func Score(def *schema.StepDefinition, payload schema.Payload) int {
	if def == nil {
		return 0
	}
	sum := 0.0
	for _, section := range def.Sections {
		sum += sectionScore(section, payload).Score
	}
	if sum > 100 {
		sum = 100
	}
	if sum < 0 {
		sum = 0
	}
	return int(math.Round(sum))
}

// SectionScores returns the per-section breakdown alongside the rounded
// total, for progress detail views.
func SectionScores(def *schema.StepDefinition, payload schema.Payload) ([]SectionScore, int) {
	if def == nil {
		return nil, 0
	}
	scores := make([]SectionScore, 0, len(def.Sections))
	sum := 0.0
	for _, section := range def.Sections {
		s := sectionScore(section, payload)
		scores = append(scores, s)
		sum += s.Score
	}
	if sum > 100 {
		sum = 100
	}
	return scores, int(math.Round(sum))
}

func sectionScore(section schema.Section, payload schema.Payload) SectionScore {
	out := SectionScore{Key: section.Key, Label: section.Label, Weight: section.Weight}
	if section.Collection != "" {
		out.Filled, out.Total = collectionSlots(section, payload)
	} else {
		out.Filled, out.Total = fieldSlots(section.Fields, payload)
	}
	if out.Total == 0 {
		return out
	}
	score := float64(out.Filled) / float64(out.Total) * float64(section.Weight)
	if score > float64(section.Weight) {
		score = float64(section.Weight)
	}
	out.Score = score
	return out
}

func fieldSlots(fields []schema.Field, payload schema.Payload) (filled, total int) {
	total = len(fields)
	for _, field := range fields {
		value, ok := payload.Lookup(field.Path)
		if ok && fieldFilled(field, value) {
			filled++
		}
	}
	return filled, total
}

// collectionSlots counts every record field of every record as one slot. An
// empty or absent collection contributes zero slots and therefore zero score.
func collectionSlots(section schema.Section, payload schema.Payload) (filled, total int) {
	value, ok := payload.Lookup(section.Collection)
	if !ok {
		return 0, 0
	}
	records, ok := value.([]any)
	if !ok || len(records) == 0 {
		return 0, 0
	}
	total = len(records) * len(section.RecordFields)
	for _, record := range records {
		for _, field := range section.RecordFields {
			v, found := schema.LookupIn(record, field.Path)
			if found && fieldFilled(field, v) {
				filled++
			}
		}
	}
	return filled, total
}

func fieldFilled(field schema.Field, value any) bool {
	if schema.IsEmptyValue(value) {
		return false
	}
	if field.Kind == schema.KindEnum && len(field.Options) > 0 {
		s, ok := value.(string)
		if !ok {
			return false
		}
		for _, option := range field.Options {
			if s == option {
				return true
			}
		}
		return false
	}
	return true
}
