package progress

import (
	"testing"

	"waypoint/api/internal/schema"
)

func TestScoreEmptyPayload(t *testing.T) {
	for _, def := range schema.Steps() {
		if got := Score(def, nil); got != 0 {
			t.Errorf("step %d: empty payload scored %d", def.Number, got)
		}
	}
}

func TestScoreFullPayloadIsHundred(t *testing.T) {
	def := schema.Step(1)
	payload := schema.Payload{
		"problem": map[string]any{
			"statement":  "parking is scarce downtown",
			"background": "surveyed 40 commuters",
			"urgency":    "worsens every quarter",
		},
		"target": map[string]any{
			"audience": "daily commuters",
			"context":  "weekday mornings",
			"needs":    []any{"predictable spots"},
		},
		"goal": map[string]any{
			"objective":     "cut search time in half",
			"successMetric": "avg minutes to park",
		},
	}
	if got := Score(def, payload); got != 100 {
		t.Errorf("full payload scored %d, want 100", got)
	}
}

func TestScorePartialPersonaRecord(t *testing.T) {
	// One persona with two of its nine slots filled and nothing else:
	// 2/9 of the 35-point section, rounded once at the end.
	def := schema.Step(3)
	payload := schema.Payload{
		"personas": []any{map[string]any{
			"id": float64(1),
			"profile": map[string]any{
				"name":       "Jae",
				"occupation": "nurse",
			},
		}},
	}
	if got := Score(def, payload); got != 8 {
		t.Errorf("partial persona scored %d, want 8", got)
	}
}

func TestScoreEmptyCollection(t *testing.T) {
	def := schema.Step(3)
	payload := schema.Payload{"personas": []any{}}
	if got := Score(def, payload); got != 0 {
		t.Errorf("empty collection scored %d, want 0", got)
	}
}

func TestScoreMonotonicUnderFills(t *testing.T) {
	def := schema.Step(1)
	payload := schema.Payload{}
	fills := []struct {
		section string
		field   string
		value   any
	}{
		{"problem", "statement", "no parking"},
		{"problem", "background", "interviews"},
		{"problem", "urgency", "high"},
		{"target", "audience", "commuters"},
		{"target", "needs", []any{"spots"}},
		{"goal", "objective", "halve search time"},
	}

	previous := Score(def, payload)
	for _, fill := range fills {
		section, _ := payload[fill.section].(map[string]any)
		if section == nil {
			section = map[string]any{}
			payload[fill.section] = section
		}
		section[fill.field] = fill.value

		current := Score(def, payload)
		if current < previous {
			t.Fatalf("score decreased from %d to %d after filling %s.%s",
				previous, current, fill.section, fill.field)
		}
		previous = current
	}
}

func TestScoreRange(t *testing.T) {
	def := schema.Step(2)
	payloads := []schema.Payload{
		nil,
		{"market": map[string]any{"size": "large"}},
		{"competitors": []any{
			map[string]any{"name": "ParkCo", "strength": "brand", "weakness": "price", "differentiation": "none"},
			map[string]any{"name": "SpotNow"},
		}},
		{"junk": "value"},
	}
	for i, payload := range payloads {
		got := Score(def, payload)
		if got < 0 || got > 100 {
			t.Errorf("payload %d: score %d out of range", i, got)
		}
	}
}

func TestScoreEnumField(t *testing.T) {
	def := schema.Step(5)
	valid := schema.Payload{
		"features": []any{map[string]any{"priority": "must"}},
	}
	invalid := schema.Payload{
		"features": []any{map[string]any{"priority": "urgent"}},
	}
	if Score(def, valid) <= Score(def, invalid) {
		t.Error("valid enum value should score higher than an unknown one")
	}
}

func TestSectionScoresBreakdown(t *testing.T) {
	def := schema.Step(1)
	payload := schema.Payload{
		"problem": map[string]any{"statement": "x", "background": "y", "urgency": "z"},
	}
	scores, total := SectionScores(def, payload)
	if len(scores) != len(def.Sections) {
		t.Fatalf("got %d sections, want %d", len(scores), len(def.Sections))
	}
	if scores[0].Filled != 3 || scores[0].Total != 3 {
		t.Errorf("problem section = %d/%d, want 3/3", scores[0].Filled, scores[0].Total)
	}
	if total != 40 {
		t.Errorf("total = %d, want 40", total)
	}
}
