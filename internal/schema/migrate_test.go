package schema

import (
	"reflect"
	"testing"
)

func TestMigrateLiftsSingularPersona(t *testing.T) {
	legacy := Payload{
		"profile":         map[string]any{"name": "Jae", "occupation": "nurse"},
		"behaviorPattern": map[string]any{"routine": "night shifts"},
	}

	migrated, ambiguity := Migrate(3, legacy)
	if ambiguity != nil {
		t.Fatalf("unexpected ambiguity: %+v", ambiguity)
	}

	personas, ok := migrated["personas"].([]any)
	if !ok || len(personas) != 1 {
		t.Fatalf("expected one lifted persona, got %v", migrated["personas"])
	}
	persona, ok := personas[0].(map[string]any)
	if !ok {
		t.Fatalf("persona record is not a map: %v", personas[0])
	}
	if persona["id"] != float64(1) {
		t.Errorf("persona id = %v, want 1", persona["id"])
	}
	profile, _ := persona["profile"].(map[string]any)
	if profile["name"] != "Jae" {
		t.Errorf("profile not preserved: %v", persona["profile"])
	}
	pattern, _ := persona["behaviorPattern"].(map[string]any)
	if pattern["routine"] != "night shifts" {
		t.Errorf("behaviorPattern not preserved: %v", persona["behaviorPattern"])
	}
	scenario, ok := persona["behaviorScenario"].(map[string]any)
	if !ok || len(scenario) != 0 {
		t.Errorf("behaviorScenario should be an empty map, got %v", persona["behaviorScenario"])
	}
	if _, stillThere := migrated["profile"]; stillThere {
		t.Error("legacy root profile should be removed after lifting")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	payloads := []Payload{
		{
			"profile":         map[string]any{"name": "Jae"},
			"behaviorPattern": map[string]any{"routine": "mornings"},
		},
		{
			"personas": []any{map[string]any{
				"id":      float64(1),
				"profile": map[string]any{"name": "Sol"},
			}},
			"legacyNotes": "kept around",
		},
		{
			"problem": map[string]any{"statement": "parking is scarce"},
			"scratch": map[string]any{"draft": "misc"},
		},
	}
	stepNumbers := []int{3, 3, 1}

	for i, payload := range payloads {
		once, _ := Migrate(stepNumbers[i], payload)
		twice, _ := Migrate(stepNumbers[i], once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("payload %d: migrate not idempotent:\nonce:  %v\ntwice: %v", i, once, twice)
		}
	}
}

func TestMigrateKeepsUnknownFieldsInExtras(t *testing.T) {
	payload := Payload{
		"problem":  map[string]any{"statement": "too many forms"},
		"scribble": "do not lose me",
		"blank":    "",
	}

	migrated, ambiguity := Migrate(1, payload)
	if ambiguity != nil {
		t.Fatalf("unexpected ambiguity: %+v", ambiguity)
	}
	extras, ok := migrated["extras"].(map[string]any)
	if !ok {
		t.Fatalf("expected extras bucket, got %v", migrated)
	}
	if extras["scribble"] != "do not lose me" {
		t.Errorf("non-empty unknown field dropped: %v", extras)
	}
	if _, kept := extras["blank"]; kept {
		t.Error("empty unknown field should not be kept")
	}
	if _, atRoot := migrated["scribble"]; atRoot {
		t.Error("unknown field left at payload root")
	}
}

func TestMigrateAmbiguousPayloadPassesThrough(t *testing.T) {
	payload := Payload{
		"mystery":  map[string]any{"x": 1},
		"whatever": "value",
	}

	migrated, ambiguity := Migrate(1, payload)
	if ambiguity == nil {
		t.Fatal("expected an ambiguity for an unrecognized shape")
	}
	if ambiguity.StepNumber != 1 {
		t.Errorf("ambiguity step = %d", ambiguity.StepNumber)
	}
	if !reflect.DeepEqual(migrated, payload) {
		t.Errorf("ambiguous payload must pass through unchanged, got %v", migrated)
	}
}

func TestMigrateEmptyAndUnknownStep(t *testing.T) {
	if out, amb := Migrate(1, nil); out != nil || amb != nil {
		t.Errorf("nil payload should pass through, got %v %v", out, amb)
	}
	payload := Payload{"anything": "goes"}
	if out, amb := Migrate(99, payload); amb != nil || !reflect.DeepEqual(out, payload) {
		t.Errorf("unknown step should pass through, got %v %v", out, amb)
	}
}

func TestMigrateDoesNotMutateInput(t *testing.T) {
	payload := Payload{
		"profile": map[string]any{"name": "Jae"},
	}
	_, _ = Migrate(3, payload)
	if _, ok := payload["profile"]; !ok {
		t.Error("Migrate mutated its input payload")
	}
}
