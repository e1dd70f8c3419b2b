package schema

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// CompileShape compiles the simplified profile: a flat JSON object mapping
// field names to "string", "number" or "boolean". Key order is preserved.
// Any other value yields an unconstrained property instead of an error.
func CompileShape(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(ErrInvalidShape, "schema: read shape")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrInvalidShape
	}

	doc := &Document{Type: KindObject, AdditionalProperties: closed()}
	seen := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(ErrInvalidShape, "schema: read shape key")
		}
		key, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, eris.Wrapf(ErrInvalidShape, "schema: read shape value for %q", key)
		}
		prop := &Document{Type: shapeKind(value)}

		// A repeated key keeps its first position and its last value.
		if i, dup := seen[key]; dup {
			doc.Properties[i].Schema = prop
			continue
		}
		seen[key] = len(doc.Properties)
		doc.Properties = append(doc.Properties, Property{Name: key, Schema: prop})
		doc.Required = append(doc.Required, key)
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(ErrInvalidShape, "schema: close shape")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, eris.Wrap(ErrInvalidShape, "schema: trailing data after shape")
	}
	if doc.Required == nil {
		doc.Required = []string{}
	}
	return doc, nil
}

func shapeKind(value json.RawMessage) Kind {
	var name string
	if err := json.Unmarshal(value, &name); err != nil {
		return ""
	}
	switch Kind(name) {
	case KindString, KindNumber, KindBoolean:
		return Kind(name)
	}
	return ""
}
