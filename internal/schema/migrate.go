package schema

// extrasKey is the default bucket for fields that have no canonical
// destination; migration never drops a non-empty value.
const extrasKey = "extras"

// Ambiguity describes a payload that matched neither a legacy shape nor
// the canonical one. It is informational: the payload passes through
// unchanged and downstream scoring treats its fields as empty.
type Ambiguity struct {
	StepNumber int
	Keys       []string
}

// Migrate normalizes a raw payload into the canonical shape for a step.
//
// The pipeline runs the step's registered legacy migrations in order, then
// sweeps any remaining unknown root keys into the extras bucket. When the
// payload carries no canonical marker at all (no known root key and no
// migration fired) it is returned unchanged together with an Ambiguity, so
// a later schema-registry extension can still reach the original fields.
//
// Migrate is idempotent: migrate(migrate(p)) == migrate(p).
func Migrate(stepNumber int, payload Payload) (Payload, *Ambiguity) {
	def := Step(stepNumber)
	if def == nil || len(payload) == 0 {
		return payload, nil
	}

	out := payload.Clone()
	migrated := false
	for _, migration := range def.Migrations {
		next, changed := migration.Apply(out)
		if changed {
			out = next
			migrated = true
		}
	}

	canonical := def.CanonicalKeys()
	hasCanonical := migrated
	for key := range out {
		if canonical[key] {
			hasCanonical = true
			break
		}
	}
	if !hasCanonical {
		keys := make([]string, 0, len(payload))
		for key := range payload {
			keys = append(keys, key)
		}
		return payload, &Ambiguity{StepNumber: stepNumber, Keys: keys}
	}

	// Sweep unknown root keys into extras so no value is dropped. Empty
	// values have nothing to preserve and are discarded.
	var extras map[string]any
	if existing, ok := out[extrasKey].(map[string]any); ok {
		extras = existing
	}
	for key, value := range out {
		if canonical[key] {
			continue
		}
		delete(out, key)
		if IsEmptyValue(value) {
			continue
		}
		if extras == nil {
			extras = make(map[string]any)
		}
		if _, taken := extras[key]; !taken {
			extras[key] = value
		}
	}
	if len(extras) > 0 {
		out[extrasKey] = extras
	}

	return out, nil
}

// liftSingularPersona migrates the original single-persona shape, where
// profile and behaviorPattern sat at the payload root, into the personas
// array. The canonical marker is the personas key itself, so a second run
// is a no-op.
func liftSingularPersona(payload Payload) (Payload, bool) {
	if _, exists := payload["personas"]; exists {
		return payload, false
	}
	profile, hasProfile := payload["profile"].(map[string]any)
	pattern, hasPattern := payload["behaviorPattern"].(map[string]any)
	if !hasProfile && !hasPattern {
		return payload, false
	}

	persona := map[string]any{
		"id":               float64(1),
		"profile":          map[string]any{},
		"behaviorPattern":  map[string]any{},
		"behaviorScenario": map[string]any{},
	}
	if hasProfile {
		persona["profile"] = profile
		delete(payload, "profile")
	}
	if hasPattern {
		persona["behaviorPattern"] = pattern
		delete(payload, "behaviorPattern")
	}
	if scenario, ok := payload["behaviorScenario"].(map[string]any); ok {
		persona["behaviorScenario"] = scenario
		delete(payload, "behaviorScenario")
	}

	payload["personas"] = []any{persona}
	return payload, true
}
