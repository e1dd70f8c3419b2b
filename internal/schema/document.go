package schema

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Document is a JSON Schema node. Properties keep declaration order, which a
// plain map would lose. An empty Type means an unconstrained schema.
type Document struct {
	Type                 Kind
	Description          string
	Enum                 []string
	Properties           []Property
	Required             []string
	AdditionalProperties *bool
	Items                *Document
}

// Property is a named child of an object Document.
type Property struct {
	Name   string
	Schema *Document
}

// Property returns the named child schema, or nil.
func (d *Document) Property(name string) *Document {
	for _, p := range d.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

// MarshalJSON writes the document with properties in declaration order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) write(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	field := func(name string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(name)
		buf.Write(k)
		buf.WriteByte(':')
		if doc, ok := v.(*Document); ok {
			return doc.write(buf)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return eris.Wrapf(err, "schema: marshal %s", name)
		}
		buf.Write(b)
		return nil
	}

	if d.Type != "" {
		if err := field("type", d.Type); err != nil {
			return err
		}
	}
	if d.Description != "" {
		if err := field("description", d.Description); err != nil {
			return err
		}
	}
	if len(d.Enum) > 0 {
		if err := field("enum", d.Enum); err != nil {
			return err
		}
	}
	if d.Type == KindObject {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteString(`"properties":{`)
		for i, p := range d.Properties {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(p.Name)
			buf.Write(k)
			buf.WriteByte(':')
			if err := p.Schema.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

		required := d.Required
		if required == nil {
			required = []string{}
		}
		if err := field("required", required); err != nil {
			return err
		}
	}
	if d.AdditionalProperties != nil {
		if err := field("additionalProperties", *d.AdditionalProperties); err != nil {
			return err
		}
	}
	if d.Items != nil {
		if err := field("items", d.Items); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// Map returns the document as generic JSON values, for clients that take a
// map. Property order is not preserved.
func (d *Document) Map() map[string]any {
	out := map[string]any{}
	if d.Type != "" {
		out["type"] = string(d.Type)
	}
	if d.Description != "" {
		out["description"] = d.Description
	}
	if len(d.Enum) > 0 {
		enum := make([]any, len(d.Enum))
		for i, e := range d.Enum {
			enum[i] = e
		}
		out["enum"] = enum
	}
	if d.Type == KindObject {
		props := make(map[string]any, len(d.Properties))
		for _, p := range d.Properties {
			props[p.Name] = p.Schema.Map()
		}
		out["properties"] = props
		required := make([]any, len(d.Required))
		for i, r := range d.Required {
			required[i] = r
		}
		out["required"] = required
	}
	if d.AdditionalProperties != nil {
		out["additionalProperties"] = *d.AdditionalProperties
	}
	if d.Items != nil {
		out["items"] = d.Items.Map()
	}
	return out
}

// PropertyMap returns the object's properties as generic JSON values.
func (d *Document) PropertyMap() map[string]any {
	props := make(map[string]any, len(d.Properties))
	for _, p := range d.Properties {
		props[p.Name] = p.Schema.Map()
	}
	return props
}
