package schema

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks JSON documents against a compiled schema.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles doc once for repeated validation.
func NewValidator(doc *Document) (*Validator, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "schema: marshal document")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, eris.Wrap(err, "schema: add resource")
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, eris.Wrap(err, "schema: compile")
	}
	return &Validator{compiled: compiled}, nil
}

// Validate reports whether data conforms to the schema.
func (v *Validator) Validate(data []byte) error {
	var value any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return eris.Wrap(err, "schema: unmarshal data")
	}
	if err := v.compiled.Validate(value); err != nil {
		return eris.Wrap(err, "schema: data does not match schema")
	}
	return nil
}

// Validate compiles doc and checks data against it.
func Validate(doc *Document, data []byte) error {
	v, err := NewValidator(doc)
	if err != nil {
		return err
	}
	return v.Validate(data)
}
