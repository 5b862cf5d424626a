// Package prompt builds the synthesis and repair prompts sent to the oracle.
// Both builders are pure: the same inputs always produce the same text.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"funcsmith/internal/funcdef"
)

// codeRules is the fixed rule set governing the shape of generated code. It
// is embedded verbatim in every prompt, synthesis and repair alike.
const codeRules = `Rules for the generated code:
1. Produce exactly one JavaScript function declaration whose name matches the requested name.
2. The function takes a single argument "params" (a plain object matching the parameter schema).
3. The function may be async. It must return a string, or a JSON-serializable value.
4. The only way to reach the outside world is the global "api" object whose methods are listed below. Each api method takes one plain-object argument and returns a string.
5. Also available: JSON, Math, log(...values) for diagnostics, and uid() for random identifiers. Nothing else exists: no require, no import, no process, no filesystem, no network.
6. Reply with the function source only. No prose, no markdown fences.`

// Synthesis produces the first-attempt prompt for a function spec.
// capabilityDoc is the human-readable description of the available api
// methods, typically Registry.Describe().
func Synthesis(spec funcdef.Spec, capabilityDoc string) string {
	var sb strings.Builder
	sb.WriteString("Write a JavaScript function for the following specification.\n\n")
	writeSpec(&sb, spec)
	writeCapabilities(&sb, capabilityDoc)
	sb.WriteString("\n")
	sb.WriteString(codeRules)
	return sb.String()
}

// Repair produces the follow-up prompt after a failed attempt. It embeds the
// failing code plus the validator's error and repeats every original
// constraint, so the oracle can correct rather than regenerate blind.
func Repair(spec funcdef.Spec, capabilityDoc, previousCode, errMessage string) string {
	var sb strings.Builder
	sb.WriteString("The JavaScript function below was rejected. Correct it and reply with the full fixed source.\n\n")
	fmt.Fprintf(&sb, "Rejected code:\n%s\n\n", strings.TrimSpace(previousCode))
	fmt.Fprintf(&sb, "Rejection reason: %s\n\n", errMessage)
	sb.WriteString("Original specification:\n")
	writeSpec(&sb, spec)
	writeCapabilities(&sb, capabilityDoc)
	sb.WriteString("\n")
	sb.WriteString(codeRules)
	return sb.String()
}

func writeSpec(sb *strings.Builder, spec funcdef.Spec) {
	fmt.Fprintf(sb, "Name: %s\n", spec.Name)
	fmt.Fprintf(sb, "Description: %s\n", spec.Description)
	schema, err := json.MarshalIndent(spec.Parameters, "", "  ")
	if err != nil {
		schema = []byte(`{"type":"object"}`)
	}
	fmt.Fprintf(sb, "Parameter schema:\n%s\n", schema)
}

func writeCapabilities(sb *strings.Builder, capabilityDoc string) {
	doc := strings.TrimSpace(capabilityDoc)
	if doc == "" {
		doc = "(no capabilities available)"
	}
	fmt.Fprintf(sb, "\nAvailable api methods:\n%s\n", doc)
}
