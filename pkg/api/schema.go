package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

const draftSchemaURL = "https://recipe-site.schemas.local/draft.schema.json"

const draftSchemaTemplate = `{
  "type": "object",
  "required": ["name"],
  "additionalProperties": false,
  "properties": {
    "name":        {"type": "string", "minLength": 1, "maxLength": 200},
    "category":    {"enum": %s},
    "keywords":    {"type": "string", "maxLength": 1000},
    "soak_time":   {"type": "string", "maxLength": 100},
    "cook_time":   {"type": "string", "maxLength": 100},
    "description": {"type": "string", "maxLength": 10000},
    "image":       {"type": "string"},
    "steps": {
      "type": "array",
      "maxItems": 100,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "description": {"type": "string", "maxLength": 5000},
          "image_url":   {"type": "string"}
        }
      }
    }
  }
}`

// compileDraftSchema builds the request schema for a recipe draft. The
// category enum follows recipe.Categories.
func compileDraftSchema() (*jsonschema.Schema, error) {
	categories := []string{""}
	for _, c := range recipe.Categories() {
		categories = append(categories, string(c))
	}
	enum, err := json.Marshal(categories)
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(draftSchemaURL, strings.NewReader(fmt.Sprintf(draftSchemaTemplate, enum))); err != nil {
		return nil, fmt.Errorf("draft schema load failed: %w", err)
	}
	compiled, err := c.Compile(draftSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("draft schema compile failed: %w", err)
	}
	return compiled, nil
}

// validateDraft checks raw request JSON against the schema.
func validateDraft(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	return nil
}
