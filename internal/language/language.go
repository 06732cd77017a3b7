package language

import (
	"bytes"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Print renders a query document as GraphQL source text.
func Print(doc *QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("  ")).FormatQueryDocument(doc)
	return buf.String()
}

// Normalize parses and re-prints source so documents can be compared
// independently of whitespace.
func Normalize(source string) (string, error) {
	doc, err := ParseQuery(source)
	if err != nil {
		return "", err
	}
	return Print(doc), nil
}

// ParseType parses a GraphQL type reference such as "String!" or "[ID!]".
func ParseType(source string) (*Type, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: "query($v: " + source + ") { __typename }"})
	if err != nil {
		return nil, fmt.Errorf("invalid type %q: %w", source, err)
	}
	defs := doc.Operations[0].VariableDefinitions
	if len(defs) != 1 || defs[0].Type == nil {
		return nil, fmt.Errorf("invalid type %q", source)
	}
	t := defs[0].Type
	t.Position = nil
	return t, nil
}
