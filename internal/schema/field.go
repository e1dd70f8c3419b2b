// Package schema turns declarative field trees into strict structured-output
// schema documents and validates extraction results against them.
package schema

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Kind is the declared type of a field.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

var (
	// ErrUnknownFieldType means a node declared a type outside the recognised kinds.
	ErrUnknownFieldType = eris.New("unknown field type")
	// ErrMissingItemsDefinition means an array node has no item definition.
	ErrMissingItemsDefinition = eris.New("array field is missing its items definition")
	// ErrMissingChildren means an object node has no children definition.
	ErrMissingChildren = eris.New("object field is missing its children definition")
	// ErrMissingKey means a property node has an empty key.
	ErrMissingKey = eris.New("field is missing its key")
	// ErrDuplicateKey means two sibling fields share a key.
	ErrDuplicateKey = eris.New("field key is declared more than once")
	// ErrInvalidShape means a simplified shape was not a JSON object.
	ErrInvalidShape = eris.New("shape must be a JSON object of field names to type names")
)

// IsDefinitionError reports whether err describes a malformed field tree.
func IsDefinitionError(err error) bool {
	return errors.Is(err, ErrUnknownFieldType) ||
		errors.Is(err, ErrMissingItemsDefinition) ||
		errors.Is(err, ErrMissingChildren) ||
		errors.Is(err, ErrMissingKey) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrInvalidShape)
}

// Field is the wire form of a declarative field definition. Children is used
// when Type is object, Items when Type is array.
type Field struct {
	Key         string  `json:"key"`
	Type        Kind    `json:"type"`
	Description string  `json:"description,omitempty"`
	Children    []Field `json:"children,omitempty"`
	Items       *Field  `json:"items,omitempty"`
}

// Node is a parsed field: one of *Primitive, *Array or *Object.
type Node interface {
	node()
	Name() string
}

// Primitive is a string, number or boolean leaf.
type Primitive struct {
	Key         string
	Description string
	Kind        Kind
}

// Array holds a single item definition.
type Array struct {
	Key         string
	Description string
	Item        Node
}

// Object holds ordered children.
type Object struct {
	Key         string
	Description string
	Children    []Node
}

func (*Primitive) node() {}
func (*Array) node()     {}
func (*Object) node()    {}

func (p *Primitive) Name() string { return p.Key }
func (a *Array) Name() string     { return a.Key }
func (o *Object) Name() string    { return o.Key }

// Parse converts a wire field into its tagged variant, validating the whole
// subtree. path is used only for error context.
func Parse(f Field) (Node, error) {
	return parse(f, f.Key)
}

func parse(f Field, path string) (Node, error) {
	switch f.Type {
	case KindString, KindNumber, KindBoolean:
		return &Primitive{Key: f.Key, Description: f.Description, Kind: f.Type}, nil

	case KindArray:
		if f.Items == nil {
			return nil, eris.Wrapf(ErrMissingItemsDefinition, "schema: field %q", path)
		}
		item, err := parse(*f.Items, path+"[]")
		if err != nil {
			return nil, err
		}
		return &Array{Key: f.Key, Description: f.Description, Item: item}, nil

	case KindObject:
		if f.Children == nil {
			return nil, eris.Wrapf(ErrMissingChildren, "schema: field %q", path)
		}
		children, err := parseChildren(f.Children, path)
		if err != nil {
			return nil, err
		}
		return &Object{Key: f.Key, Description: f.Description, Children: children}, nil

	default:
		return nil, eris.Wrapf(ErrUnknownFieldType, "schema: field %q has type %q", path, f.Type)
	}
}

func parseChildren(fields []Field, parent string) ([]Node, error) {
	children := make([]Node, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, c := range fields {
		if c.Key == "" {
			return nil, eris.Wrapf(ErrMissingKey, "schema: child %d of %q", i, parent)
		}
		if _, dup := seen[c.Key]; dup {
			return nil, eris.Wrapf(ErrDuplicateKey, "schema: child %d of %q repeats key %q", i, parent, c.Key)
		}
		seen[c.Key] = struct{}{}
		path := c.Key
		if parent != "" {
			path = parent + "." + c.Key
		}
		n, err := parse(c, path)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return children, nil
}

// ParseFields parses a top-level list of fields as the children of an
// anonymous root object.
func ParseFields(fields []Field) (*Object, error) {
	children, err := parseChildren(fields, "")
	if err != nil {
		return nil, err
	}
	return &Object{Children: children}, nil
}
