package superschema

import (
	language "github.com/BigSchema/stitch/internal/language"
)

var (
	typenameFieldDef = &language.FieldDefinition{
		Name: "__typename",
		Type: language.NonNullNamedType("String"),
	}
	schemaFieldDef = &language.FieldDefinition{
		Name: "__schema",
		Type: language.NonNullNamedType("__Schema"),
	}
	typeFieldDef = &language.FieldDefinition{
		Name: "__type",
		Arguments: language.ArgumentDefinitionList{
			{Name: "name", Type: language.NonNullNamedType("String")},
		},
		Type: language.NamedType("__Type"),
	}
)

// GetRootType returns the merged root type for the operation kind, or nil.
func (ss *SuperSchema) GetRootType(op language.Operation) *language.Definition {
	return ss.rootTypes[op]
}

// GetType returns the merged type with the given name, or nil.
func (ss *SuperSchema) GetType(name string) *language.Definition {
	return ss.Schema.Types[name]
}

// GetPossibleTypes returns the concrete object types a value of the given
// type may have at runtime.
func (ss *SuperSchema) GetPossibleTypes(def *language.Definition) []*language.Definition {
	if def.Kind == language.Object {
		return []*language.Definition{def}
	}
	return ss.Schema.PossibleTypes[def.Name]
}

// GetFieldDef resolves a field definition on the parent type, falling
// through to the protocol meta-fields: __schema and __type on the Query
// root and __typename on every composite type.
func (ss *SuperSchema) GetFieldDef(parent *language.Definition, name string) *language.FieldDefinition {
	if name == "__typename" && isComposite(parent.Kind) {
		return typenameFieldDef
	}
	if ss.Schema.Query != nil && parent.Name == ss.Schema.Query.Name {
		switch name {
		case "__schema":
			return schemaFieldDef
		case "__type":
			return typeFieldDef
		}
	}
	return parent.Fields.ForName(name)
}

// IsSubType reports whether sub satisfies a type condition on super: they
// are the same type, sub implements the interface, or sub is a member of
// the union.
func (ss *SuperSchema) IsSubType(super, sub *language.Definition) bool {
	if super == nil || sub == nil {
		return false
	}
	if super.Name == sub.Name {
		return true
	}
	for _, possible := range ss.Schema.PossibleTypes[super.Name] {
		if possible.Name == sub.Name {
			return true
		}
	}
	for _, abstract := range ss.Schema.Implements[sub.Name] {
		if abstract.Name == super.Name {
			return true
		}
	}
	return false
}
