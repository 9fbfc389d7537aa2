package language

import "github.com/vektah/gqlparser/v2/ast"

type (
	QueryDocument          = ast.QueryDocument
	SchemaDocument         = ast.SchemaDocument
	Schema                 = ast.Schema
	OperationDefinition    = ast.OperationDefinition
	OperationList          = ast.OperationList
	SelectionSet           = ast.SelectionSet
	Selection              = ast.Selection
	Field                  = ast.Field
	InlineFragment         = ast.InlineFragment
	FragmentDefinition     = ast.FragmentDefinition
	FragmentDefinitionList = ast.FragmentDefinitionList
	FragmentSpread         = ast.FragmentSpread
	Directive              = ast.Directive
	DirectiveList          = ast.DirectiveList
	DirectiveDefinition    = ast.DirectiveDefinition
	DirectiveLocation      = ast.DirectiveLocation
	ArgumentList           = ast.ArgumentList
	Argument               = ast.Argument
	ArgumentDefinition     = ast.ArgumentDefinition
	ArgumentDefinitionList = ast.ArgumentDefinitionList
	Value                  = ast.Value
	FieldDefinition        = ast.FieldDefinition
	FieldList              = ast.FieldList
	EnumValueDefinition    = ast.EnumValueDefinition
	EnumValueList          = ast.EnumValueList
	VariableDefinition     = ast.VariableDefinition
	VariableDefinitionList = ast.VariableDefinitionList
	Type                   = ast.Type
	Definition             = ast.Definition
	DefinitionList         = ast.DefinitionList
	Position               = ast.Position
	Path                   = ast.Path
	PathName               = ast.PathName
	PathIndex              = ast.PathIndex
	Source                 = ast.Source
)

type DefinitionKind = ast.DefinitionKind

type Operation = ast.Operation

type ValueKind = ast.ValueKind

const (
	Query        Operation = ast.Query
	Mutation     Operation = ast.Mutation
	Subscription Operation = ast.Subscription

	Object      DefinitionKind = ast.Object
	Interface   DefinitionKind = ast.Interface
	Union       DefinitionKind = ast.Union
	Scalar      DefinitionKind = ast.Scalar
	Enum        DefinitionKind = ast.Enum
	InputObject DefinitionKind = ast.InputObject

	Variable     ValueKind = ast.Variable
	IntValue     ValueKind = ast.IntValue
	FloatValue   ValueKind = ast.FloatValue
	StringValue  ValueKind = ast.StringValue
	BlockValue   ValueKind = ast.BlockValue
	BooleanValue ValueKind = ast.BooleanValue
	NullValue    ValueKind = ast.NullValue
	EnumValue    ValueKind = ast.EnumValue
	ListValue    ValueKind = ast.ListValue
	ObjectValue  ValueKind = ast.ObjectValue
)

// NamedType returns a nullable reference to the named type.
func NamedType(name string) *Type { return ast.NamedType(name, nil) }

// NonNullNamedType returns a non-null reference to the named type.
func NonNullNamedType(name string) *Type { return ast.NonNullNamedType(name, nil) }

// ListType wraps t in a nullable list reference.
func ListType(t *Type) *Type { return ast.ListType(t, nil) }
