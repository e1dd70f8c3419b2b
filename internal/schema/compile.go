package schema

func closed() *bool {
	f := false
	return &f
}

// Compile converts a parsed node into a strict schema document. Every object
// lists all of its keys as required and forbids additional properties.
func Compile(n Node) *Document {
	switch v := n.(type) {
	case *Primitive:
		return &Document{Type: v.Kind, Description: v.Description}

	case *Array:
		return &Document{
			Type:        KindArray,
			Description: v.Description,
			Items:       Compile(v.Item),
		}

	case *Object:
		doc := &Document{
			Type:                 KindObject,
			Description:          v.Description,
			Properties:           make([]Property, 0, len(v.Children)),
			Required:             make([]string, 0, len(v.Children)),
			AdditionalProperties: closed(),
		}
		for _, c := range v.Children {
			doc.Properties = append(doc.Properties, Property{Name: c.Name(), Schema: Compile(c)})
			doc.Required = append(doc.Required, c.Name())
		}
		return doc
	}
	return &Document{}
}

// CompileFields parses and compiles a top-level field list into a root
// object document.
func CompileFields(fields []Field) (*Document, error) {
	root, err := ParseFields(fields)
	if err != nil {
		return nil, err
	}
	return Compile(root), nil
}
