// Package contract declares the structured result requested from the model,
// the classification policy sent along with it and the parser that turns the
// service payload back into a models.BalanceResult.
package contract

import (
	"fmt"
	"reflect"
	"sync"

	legacygenai "github.com/google/generative-ai-go/genai"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/snappy-loop/skynet/internal/models"
	"google.golang.org/genai"
)

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	resolved   *jsonschema.Resolved
	schemaErr  error
)

// Schema returns the JSON Schema of models.BalanceResult.
// Descriptions come from struct tags; warningMessage is the only optional field.
func Schema() *jsonschema.Schema {
	loadSchema()
	if schemaErr != nil {
		panic("contract: " + schemaErr.Error())
	}
	return schema.CloneSchemas()
}

func loadSchema() {
	schemaOnce.Do(func() {
		enum := make([]any, 0, len(models.NeutralizationTypes))
		for _, t := range models.NeutralizationTypes {
			enum = append(enum, string(t))
		}
		s, err := jsonschema.For[models.BalanceResult](&jsonschema.ForOptions{
			TypeSchemas: map[reflect.Type]*jsonschema.Schema{
				reflect.TypeFor[models.NeutralizationType](): {Type: "string", Enum: enum},
			},
		})
		if err != nil {
			schemaErr = fmt.Errorf("infer schema: %w", err)
			return
		}
		// The service schema never declared additionalProperties.
		s.AdditionalProperties = nil
		rs, err := s.Resolve(nil)
		if err != nil {
			schemaErr = fmt.Errorf("resolve schema: %w", err)
			return
		}
		schema, resolved = s, rs
	})
}

// schemaType returns the single non-null JSON type of s.
func schemaType(s *jsonschema.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	for _, t := range s.Types {
		if t != "null" {
			return t
		}
	}
	return ""
}

// GeminiSchema converts Schema to the unified genai SDK schema.
func GeminiSchema() *genai.Schema {
	return geminiConvSchema(Schema())
}

func geminiConvSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	gs := &genai.Schema{
		Description: s.Description,
		Items:       geminiConvSchema(s.Items),
		Required:    s.Required,
	}
	for _, v := range s.Enum {
		gs.Enum = append(gs.Enum, fmt.Sprintf("%v", v))
	}
	if n := len(s.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range s.Properties {
			gs.Properties[k] = geminiConvSchema(prop)
		}
		gs.PropertyOrdering = s.PropertyOrder
	}
	switch schemaType(s) {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "boolean":
		gs.Type = genai.TypeBoolean
	case "integer":
		gs.Type = genai.TypeInteger
	case "number":
		gs.Type = genai.TypeNumber
	}
	return gs
}

// LegacySchema converts Schema to the generative-ai-go schema.
func LegacySchema() *legacygenai.Schema {
	return legacyConvSchema(Schema())
}

func legacyConvSchema(s *jsonschema.Schema) *legacygenai.Schema {
	if s == nil {
		return nil
	}
	ls := &legacygenai.Schema{
		Description: s.Description,
		Items:       legacyConvSchema(s.Items),
		Required:    s.Required,
	}
	for _, v := range s.Enum {
		ls.Enum = append(ls.Enum, fmt.Sprintf("%v", v))
	}
	if n := len(s.Properties); n > 0 {
		ls.Properties = make(map[string]*legacygenai.Schema, n)
		for k, prop := range s.Properties {
			ls.Properties[k] = legacyConvSchema(prop)
		}
	}
	switch schemaType(s) {
	case "object":
		ls.Type = legacygenai.TypeObject
	case "array":
		ls.Type = legacygenai.TypeArray
	case "string":
		ls.Type = legacygenai.TypeString
	case "boolean":
		ls.Type = legacygenai.TypeBoolean
	case "integer":
		ls.Type = legacygenai.TypeInteger
	case "number":
		ls.Type = legacygenai.TypeNumber
	}
	return ls
}
