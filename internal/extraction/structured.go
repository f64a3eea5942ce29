package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/galleykit/galley/internal/types"
)

// maxRepairAttempts limits provider-side self-repair loops when
// structured output parsing/validation fails.
const maxRepairAttempts = 2

// recipePageSchema is the canonical schema for one extracted page.
// Providers embed it in the prompt and the output is validated against
// it locally before reaching the workflow.
const recipePageSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "ingredients": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "quantity": {"type": "string"},
          "unit": {"type": "string"},
          "category": {"type": "string"}
        },
        "required": ["name"]
      }
    },
    "instructions": {
      "type": "array",
      "items": {"type": "string"}
    },
    "servings": {"type": "integer"},
    "prep_time_minutes": {"type": "integer"},
    "cook_time_minutes": {"type": "integer"},
    "page_number": {"type": "integer"}
  },
  "required": ["title", "ingredients", "instructions"]
}`

// extractionPrompt instructs the model to read one photographed page.
const extractionPrompt = `You are reading a photograph of a single page from a physical cookbook.

Extract the recipe content visible on this page. The page may hold a complete recipe or only part of one (e.g., the instructions continue from a previous page, in which case leave the title empty).

Rules:
- Keep ingredient quantities exactly as printed, as strings ("1/2", "2-3").
- Keep instruction steps in reading order, one array entry per step.
- Use 0 for servings/times not printed on the page.
- If a printed page number is visible, report it; otherwise use 0.
- Return ONLY valid JSON conforming to this schema, no markdown, no commentary.

Schema:
` + recipePageSchema

// decodePage parses and validates model output into an extracted page.
func decodePage(content string) (types.ExtractedPage, error) {
	raw, err := parseStructuredJSON(content)
	if err != nil {
		return types.ExtractedPage{}, err
	}
	if err := validateStructuredJSON([]byte(recipePageSchema), raw); err != nil {
		return types.ExtractedPage{}, err
	}

	var page types.ExtractedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return types.ExtractedPage{}, fmt.Errorf("failed to decode extracted page: %w", err)
	}
	return page, nil
}

// parseStructuredJSON parses JSON from model output, with lightweight
// recovery for markdown code fences and surrounding text.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("failed to normalize structured output: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("failed to parse structured JSON")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	start := strings.Index(trimmed, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(trimmed, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// validateStructuredJSON validates parsed JSON against the canonical
// schema.
func validateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaRaw)); err != nil {
		return fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile structured schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

// repairPrompt asks the model to fix its previous non-conforming output.
func repairPrompt(lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 12000 {
		lastOutput = lastOutput[:12000] + "\n...[truncated]"
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Validation issue:
%v`, recipePageSchema, lastOutput, issue)
}
