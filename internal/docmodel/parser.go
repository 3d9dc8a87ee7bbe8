// Package docmodel extracts the documented exports of a JavaScript or
// TypeScript module, together with their JSDoc @example tags.
package docmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Parser parses modules with tree-sitter. The TypeScript grammar is a
// superset of JavaScript, so it serves .js, .mjs and .ts alike; .jsx and .tsx
// use the TSX grammar.
type Parser struct {
	ts  *sitter.Language
	tsx *sitter.Language
}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{
		ts:  sitter.NewLanguage(typescript.LanguageTypescript()),
		tsx: sitter.NewLanguage(typescript.LanguageTSX()),
	}
}

// ParseFile reads and parses the module at path. Symbol locations carry path
// as their filename.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]Symbol, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.Parse(ctx, path, source)
}

// Parse returns the exported symbols of source in declaration order.
func (p *Parser) Parse(ctx context.Context, filename string, source []byte) ([]Symbol, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	lang := p.ts
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsx", ".jsx":
		lang = p.tsx
	}
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	tree := parser.ParseCtx(ctx, source, nil)
	if tree == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to parse %s", filename)
	}
	defer tree.Close()

	e := &extractor{filename: filename, source: source}
	root := tree.RootNode()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		node := root.NamedChild(i)
		if node.Kind() == "export_statement" {
			e.exportStatement(node)
		}
	}
	return e.symbols, nil
}

type extractor struct {
	filename string
	source   []byte
	symbols  []Symbol
}

func (e *extractor) exportStatement(node *sitter.Node) {
	examples := e.docExamples(node)

	decl := node.ChildByFieldName("declaration")
	if decl == nil {
		return
	}
	// export /** doc */ function f() {}
	if examples == nil {
		examples = e.docExamples(decl)
	}
	loc := e.location(node)

	switch decl.Kind() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		e.add(Symbol{Name: e.name(decl), Kind: KindFunction, Location: loc, Examples: examples})
	case "class_declaration", "abstract_class_declaration":
		e.add(Symbol{Name: e.name(decl), Kind: KindClass, Location: loc, Examples: examples, Members: e.members(decl)})
	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			declarator := decl.NamedChild(i)
			if declarator.Kind() != "variable_declarator" {
				continue
			}
			kind := KindOther
			if value := declarator.ChildByFieldName("value"); value != nil && isFunctionValue(value.Kind()) {
				kind = KindFunction
			}
			e.add(Symbol{Name: e.name(declarator), Kind: kind, Location: e.location(declarator), Examples: examples})
		}
	case "interface_declaration", "type_alias_declaration", "enum_declaration":
		e.add(Symbol{Name: e.name(decl), Kind: KindOther, Location: loc, Examples: examples})
	}
}

func (e *extractor) add(sym Symbol) {
	if sym.Name == "" {
		return
	}
	e.symbols = append(e.symbols, sym)
}

// members returns the documented methods of a class body.
func (e *extractor) members(class *sitter.Node) []Symbol {
	body := class.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var members []Symbol
	for i := uint(0); i < body.NamedChildCount(); i++ {
		method := body.NamedChild(i)
		if method.Kind() != "method_definition" {
			continue
		}
		doc := e.docComment(method)
		if doc == "" {
			continue
		}
		name := e.name(method)
		if name == "" {
			continue
		}
		members = append(members, Symbol{
			Name:     name,
			Kind:     KindFunction,
			Location: e.location(method),
			Examples: Examples(doc),
		})
	}
	return members
}

// docComment returns the JSDoc comment directly preceding node, if any.
func (e *extractor) docComment(node *sitter.Node) string {
	prev := node.PrevNamedSibling()
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	text := prev.Utf8Text(e.source)
	if !isDocComment(text) {
		return ""
	}
	return text
}

func (e *extractor) docExamples(node *sitter.Node) []string {
	doc := e.docComment(node)
	if doc == "" {
		return nil
	}
	return Examples(doc)
}

func (e *extractor) name(node *sitter.Node) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return nameNode.Utf8Text(e.source)
}

func (e *extractor) location(node *sitter.Node) Location {
	pos := node.StartPosition()
	return Location{
		Filename: e.filename,
		Line:     int(pos.Row) + 1,
		Col:      int(pos.Column),
	}
}

func isFunctionValue(kind string) bool {
	switch kind {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}
