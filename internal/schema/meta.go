package schema

// FieldTreeDocument describes a {"fields": [...]} payload in the declarative
// field format, nested up to depth levels. It is the output schema used when
// a model drafts a field tree from an instruction.
//
// children and items are optional so a model can omit them on leaves.
func FieldTreeDocument(depth int) *Document {
	return &Document{
		Type:                 KindObject,
		Properties:           []Property{{Name: "fields", Schema: &Document{Type: KindArray, Items: fieldDocument(depth)}}},
		Required:             []string{"fields"},
		AdditionalProperties: closed(),
	}
}

func fieldDocument(depth int) *Document {
	doc := &Document{
		Type: KindObject,
		Properties: []Property{
			{Name: "key", Schema: &Document{Type: KindString, Description: "camelCase property name"}},
			{Name: "type", Schema: &Document{
				Type: KindString,
				Enum: []string{string(KindString), string(KindNumber), string(KindBoolean), string(KindArray), string(KindObject)},
			}},
			{Name: "description", Schema: &Document{Type: KindString}},
		},
		Required:             []string{"key", "type", "description"},
		AdditionalProperties: closed(),
	}
	if depth <= 1 {
		return doc
	}
	child := fieldDocument(depth - 1)
	doc.Properties = append(doc.Properties,
		Property{Name: "children", Schema: &Document{Type: KindArray, Items: child}},
		Property{Name: "items", Schema: child},
	)
	return doc
}
