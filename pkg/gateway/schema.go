package gateway

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// paramSchema validates RPC params against a compiled JSON Schema.
type paramSchema struct {
	schema *gojsonschema.Schema
}

func compileParamSchema(schemaJSON string) (*paramSchema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}
	return &paramSchema{schema: schema}, nil
}

func (p *paramSchema) validate(params map[string]interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := p.schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("invalid params: %v", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Errorf("invalid params: %s", strings.Join(issues, "; "))
}

// Request schemas for the session actions. Anything not named here is
// rejected before the handler runs.
const (
	saveSessionSchema = `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "maxLength": 512}
		},
		"additionalProperties": false
	}`

	emptyParamsSchema = `{
		"type": "object",
		"additionalProperties": false
	}`

	sessionIDSchema = `{
		"type": "object",
		"properties": {
			"sessionId": {"type": "string", "minLength": 1}
		},
		"required": ["sessionId"],
		"additionalProperties": false
	}`

	scrollUpdateSchema = `{
		"type": "object",
		"properties": {
			"data": {
				"type": "object",
				"properties": {
					"url": {"type": "string"},
					"scrollX": {"type": "integer"},
					"scrollY": {"type": "integer"},
					"timestamp": {"type": "integer"}
				},
				"required": ["url", "scrollX", "scrollY"],
				"additionalProperties": true
			}
		},
		"required": ["data"],
		"additionalProperties": false
	}`
)
