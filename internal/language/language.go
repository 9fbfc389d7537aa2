package language

import (
	"strings"

	gqlparser "github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

type Error = gqlerror.Error

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates an SDL source into an executable schema.
func LoadSchema(name, source string) (*Schema, error) {
	sch, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// FormatQueryDocument renders a query document back to GraphQL source.
func FormatQueryDocument(doc *QueryDocument) string {
	var sb strings.Builder
	formatter.NewFormatter(&sb).FormatQueryDocument(doc)
	return sb.String()
}

// FormatSchema renders an executable schema as SDL.
func FormatSchema(sch *Schema) string {
	var sb strings.Builder
	formatter.NewFormatter(&sb).FormatSchema(sch)
	return sb.String()
}
