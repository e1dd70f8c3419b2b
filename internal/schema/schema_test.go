package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFields(t *testing.T, raw string) []Field {
	t.Helper()
	var fields []Field
	require.NoError(t, json.Unmarshal([]byte(raw), &fields))
	return fields
}

func propertyNames(d *Document) []string {
	names := make([]string, 0, len(d.Properties))
	for _, p := range d.Properties {
		names = append(names, p.Name)
	}
	return names
}

// assertStrict walks every object in the document and checks that required
// equals the property keys and additional properties are forbidden.
func assertStrict(t *testing.T, d *Document) {
	t.Helper()
	if d.Type == KindObject {
		assert.Equal(t, propertyNames(d), d.Required)
		require.NotNil(t, d.AdditionalProperties)
		assert.False(t, *d.AdditionalProperties)
		for _, p := range d.Properties {
			assertStrict(t, p.Schema)
		}
	}
	if d.Items != nil {
		assertStrict(t, d.Items)
	}
}

func TestCompileFields_Flat(t *testing.T) {
	doc, err := CompileFields(mustFields(t, `[
		{"key":"name","type":"string"},
		{"key":"age","type":"number"}
	]`))
	require.NoError(t, err)

	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"number"}},"required":["name","age"],"additionalProperties":false}`,
		string(b))
}

func TestCompileFields_NestedStrictEverywhere(t *testing.T) {
	doc, err := CompileFields(mustFields(t, `[
		{"key":"vendor","type":"object","children":[
			{"key":"name","type":"string","description":"legal name"},
			{"key":"address","type":"object","children":[
				{"key":"city","type":"string"},
				{"key":"zip","type":"string"}
			]}
		]},
		{"key":"lines","type":"array","items":{"key":"line","type":"object","children":[
			{"key":"sku","type":"string"},
			{"key":"qty","type":"number"},
			{"key":"taxable","type":"boolean"}
		]}},
		{"key":"tags","type":"array","items":{"key":"tag","type":"string"}}
	]`))
	require.NoError(t, err)

	assertStrict(t, doc)
	assert.Equal(t, []string{"vendor", "lines", "tags"}, doc.Required)
	assert.Equal(t, "legal name", doc.Property("vendor").Property("name").Description)
	assert.Equal(t, []string{"sku", "qty", "taxable"}, doc.Property("lines").Items.Required)
	assert.Equal(t, KindString, doc.Property("tags").Items.Type)
}

func TestCompileFields_PreservesDeclarationOrder(t *testing.T) {
	doc, err := CompileFields(mustFields(t, `[
		{"key":"zeta","type":"string"},
		{"key":"alpha","type":"string"},
		{"key":"mid","type":"boolean"}
	]`))
	require.NoError(t, err)

	b, err := json.Marshal(doc)
	require.NoError(t, err)

	var outer struct {
		Properties json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(b, &outer))

	var keys []string
	dec := json.NewDecoder(bytes.NewReader(outer.Properties))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
}

func TestCompileFields_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"unknown type", `[{"key":"a","type":"date"}]`, ErrUnknownFieldType},
		{"empty type", `[{"key":"a"}]`, ErrUnknownFieldType},
		{"array without items", `[{"key":"a","type":"array"}]`, ErrMissingItemsDefinition},
		{"object without children", `[{"key":"a","type":"object"}]`, ErrMissingChildren},
		{"nested unknown", `[{"key":"a","type":"object","children":[{"key":"b","type":"array","items":{"type":"uuid"}}]}]`, ErrUnknownFieldType},
		{"missing key", `[{"type":"string"}]`, ErrMissingKey},
		{"duplicate key", `[{"key":"name","type":"string"},{"key":"name","type":"number"}]`, ErrDuplicateKey},
		{"nested duplicate key", `[{"key":"a","type":"object","children":[{"key":"b","type":"string"},{"key":"b","type":"string"}]}]`, ErrDuplicateKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFields(mustFields(t, tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, IsDefinitionError(err))
		})
	}
}

func TestCompileFields_EmptyChildrenAllowed(t *testing.T) {
	doc, err := CompileFields(mustFields(t, `[{"key":"meta","type":"object","children":[]}]`))
	require.NoError(t, err)

	b, err := json.Marshal(doc.Property("meta"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{},"required":[],"additionalProperties":false}`, string(b))
}

func TestCompileShape(t *testing.T) {
	doc, err := CompileShape([]byte(`{"name":"string","age":"number","vip":"boolean","dob":"date","extra":{"x":1}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age", "vip", "dob", "extra"}, doc.Required)
	assert.Equal(t, KindString, doc.Property("name").Type)
	assert.Equal(t, KindNumber, doc.Property("age").Type)
	assert.Equal(t, KindBoolean, doc.Property("vip").Type)

	b, err := json.Marshal(doc.Property("dob"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
	assertStrict(t, doc)
}

func TestCompileShape_Invalid(t *testing.T) {
	for _, raw := range []string{``, `[]`, `"string"`, `{"a":`, `{"a":"string"} {}`} {
		_, err := CompileShape([]byte(raw))
		assert.True(t, errors.Is(err, ErrInvalidShape), "input %q: %v", raw, err)
	}
}

func TestValidate_AcceptsConformingAndRejectsDrift(t *testing.T) {
	doc, err := CompileShape([]byte(`{"name":"string","age":"number"}`))
	require.NoError(t, err)
	v, err := NewValidator(doc)
	require.NoError(t, err)

	assert.NoError(t, v.Validate([]byte(`{"name":"Ada","age":36}`)))
	assert.Error(t, v.Validate([]byte(`{"name":"Ada","age":36,"email":"a@b"}`)), "extra key")
	assert.Error(t, v.Validate([]byte(`{"name":"Ada"}`)), "missing key")
	assert.Error(t, v.Validate([]byte(`{"name":"Ada","age":"36"}`)), "wrong type")
	assert.Error(t, v.Validate([]byte(`not json`)))
}

func TestValidate_NestedRequired(t *testing.T) {
	doc, err := CompileFields(mustFields(t, `[
		{"key":"lines","type":"array","items":{"key":"line","type":"object","children":[
			{"key":"sku","type":"string"}
		]}}
	]`))
	require.NoError(t, err)

	assert.NoError(t, Validate(doc, []byte(`{"lines":[{"sku":"A"},{"sku":"B"}]}`)))
	assert.Error(t, Validate(doc, []byte(`{"lines":[{"sku":"A"},{}]}`)))
	assert.Error(t, Validate(doc, []byte(`{"lines":[{"sku":"A","price":1}]}`)))
}

func TestFieldTreeDocument_ParsesIntoFields(t *testing.T) {
	doc := FieldTreeDocument(3)
	draft := []byte(`{"fields":[
		{"key":"total","type":"number","description":"grand total"},
		{"key":"lines","type":"array","description":"","items":{"key":"line","type":"object","description":"","children":[
			{"key":"sku","type":"string","description":""}
		]}}
	]}`)
	require.NoError(t, Validate(doc, draft))

	var payload struct {
		Fields []Field `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(draft, &payload))
	compiled, err := CompileFields(payload.Fields)
	require.NoError(t, err)
	assert.Equal(t, []string{"total", "lines"}, compiled.Required)

	assert.Error(t, Validate(doc, []byte(`{"fields":[{"key":"a","type":"date","description":""}]}`)))
}

func TestMap_MatchesMarshal(t *testing.T) {
	doc, err := CompileFields(mustFields(t, `[
		{"key":"tags","type":"array","items":{"key":"tag","type":"string"}},
		{"key":"ok","type":"boolean"}
	]`))
	require.NoError(t, err)

	b, err := json.Marshal(doc)
	require.NoError(t, err)
	m, err := json.Marshal(doc.Map())
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(m))
}
