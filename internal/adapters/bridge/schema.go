package bridge

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/bnema/taskwatch/internal/domain"
)

const envelopeSchemaURL = "https://taskwatch.local/schemas/envelope.json"

//go:embed schemas/envelope.json
var envelopeSchema []byte

// Validator checks command envelopes before they reach the dispatcher.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("parse envelope schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(envelopeSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add envelope schema: %w", err)
	}
	schema, err := compiler.Compile(envelopeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

func (v *Validator) Validate(envelope []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(envelope))
	if err != nil {
		return fmt.Errorf("%w: envelope is not valid JSON: %v", domain.ErrInvalidInput, err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
