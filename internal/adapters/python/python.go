// Package python implements the AST-based outline and reference adapter
// for Python source, using tree-sitter to walk declaration nodes.
package python

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/repomcp/repomcpd/internal/adapters"
)

// Adapter parses Python source to an AST and extracts syntactic
// declarations. Parsing is pure: no execution of default-argument
// expressions, no import side effects.
type Adapter struct {
	parser *sitter.Parser
}

// New creates a Python adapter with its own tree-sitter parser instance.
// Parsers are not safe for concurrent use, so callers needing parallelism
// should create one Adapter per goroutine.
func New() *Adapter {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Adapter{parser: p}
}

// SupportsPath reports whether path is a Python source file.
func (a *Adapter) SupportsPath(path string) bool {
	return strings.HasSuffix(path, ".py")
}

// Outline walks the AST and returns every declaration in text.
// Unparseable input yields an empty list, never an error.
func (a *Adapter) Outline(path string, text []byte) []adapters.Symbol {
	tree, err := a.parser.ParseCtx(context.Background(), nil, text)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil
	}

	var symbols []adapters.Symbol
	walk(root, text, "", adapters.ScopeModule, false, "", &symbols)
	adapters.SortSymbols(symbols)
	return symbols
}

// ExtractReferences finds import aliases, bare names, and attribute
// chains whose trailing component matches a known symbol.
func (a *Adapter) ExtractReferences(path string, text []byte, knownSymbols []string) []adapters.Reference {
	tree, err := a.parser.ParseCtx(context.Background(), nil, text)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	known := make(map[string]struct{}, len(knownSymbols))
	for _, s := range knownSymbols {
		known[trailingComponent(s)] = struct{}{}
	}

	var refs []adapters.Reference
	walkReferences(tree.RootNode(), text, path, known, &refs)
	adapters.SortReferences(refs)
	return refs
}

func trailingComponent(symbol string) string {
	if idx := strings.LastIndex(symbol, "."); idx >= 0 {
		return symbol[idx+1:]
	}
	return symbol
}

// walk recurses every node, emitting a Symbol for each declaration node
// type. conditional/declContext propagate from the nearest enclosing
// if/try/match ancestor; parent/scopeKind propagate from the nearest
// enclosing def/class.
func walk(n *sitter.Node, src []byte, parent string, scope adapters.ScopeKind, conditional bool, declContext string, out *[]adapters.Symbol) {
	if n == nil {
		return
	}

	childConditional, childDeclContext := conditional, declContext
	childParent, childScope := parent, scope

	switch n.Type() {
	case "if_statement":
		childConditional, childDeclContext = true, "if "+firstLine(conditionText(n, src))
	case "try_statement":
		childConditional, childDeclContext = true, "try"
	case "match_statement":
		childConditional, childDeclContext = true, "match"

	case "function_definition":
		if sym := functionSymbol(n, src, parent, scope, conditional, declContext); sym != nil {
			*out = append(*out, *sym)
			childParent, childScope = sym.Name, adapters.ScopeFunction
		}

	case "class_definition":
		if sym := classSymbol(n, src, parent, scope, conditional, declContext); sym != nil {
			*out = append(*out, *sym)
			childParent, childScope = sym.Name, adapters.ScopeClass
		}

	case "decorated_definition":
		// The decorated node wraps the actual def/class as a named child;
		// let that child emit the symbol so decorators don't duplicate it.

	case "expression_statement":
		if sym := moduleConstant(n, src, parent, scope, conditional, declContext); sym != nil {
			*out = append(*out, *sym)
		}

	case "assignment":
		if scope == adapters.ScopeModule || scope == adapters.ScopeClass {
			if sym := assignmentSymbol(n, src, parent, scope, conditional, declContext); sym != nil {
				*out = append(*out, *sym)
			}
		}
	}

	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		walk(n.NamedChild(i), src, childParent, childScope, childConditional, childDeclContext, out)
	}
}

func conditionText(n *sitter.Node, src []byte) string {
	cond := n.ChildByFieldName("condition")
	if cond == nil {
		return ""
	}
	return text(cond, src)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

func functionSymbol(n *sitter.Node, src []byte, parent string, scope adapters.ScopeKind, conditional bool, declContext string) *adapters.Symbol {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, src)

	kind := adapters.KindFunction
	if scope == adapters.ScopeClass {
		kind = adapters.KindMethod
	}

	async := hasAsyncKeyword(n, src)
	sig := functionSignature(n, src, name, async)

	return &adapters.Symbol{
		Kind:          kind,
		Name:          name,
		Signature:     sig,
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Doc:           leadingDocstring(n, src),
		ParentSymbol:  parent,
		ScopeKind:     scope,
		IsConditional: conditional,
		DeclContext:   declContext,
	}
}

// hasAsyncKeyword reports whether the function_definition node n itself
// carries a leading "async" token child, as tree-sitter-python emits for
// `async def`.
func hasAsyncKeyword(n *sitter.Node, src []byte) bool {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c != nil && c.Type() == "async" {
			return true
		}
	}
	return false
}

func functionSignature(n *sitter.Node, src []byte, name string, async bool) string {
	params := n.ChildByFieldName("parameters")
	paramText := "()"
	if params != nil {
		paramText = renderParams(params, src)
	}

	returnType := n.ChildByFieldName("return_type")
	ret := ""
	if returnType != nil {
		ret = " -> " + text(returnType, src)
	}

	prefix := "def "
	if async {
		prefix = "async def "
	}
	return prefix + name + paramText + ret + ":"
}

// renderParams reproduces parameter names and default-value markers
// without evaluating the default expressions themselves.
func renderParams(params *sitter.Node, src []byte) string {
	var parts []string
	count := int(params.NamedChildCount())
	for i := 0; i < count; i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			parts = append(parts, text(p, src))
		case "typed_parameter":
			parts = append(parts, text(p, src))
		case "default_parameter", "typed_default_parameter":
			nameNode := p.ChildByFieldName("name")
			if nameNode != nil {
				parts = append(parts, text(nameNode, src)+"=...")
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			parts = append(parts, text(p, src))
		default:
			parts = append(parts, text(p, src))
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func classSymbol(n *sitter.Node, src []byte, parent string, scope adapters.ScopeKind, conditional bool, declContext string) *adapters.Symbol {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, src)

	sig := "class " + name
	if superclasses := n.ChildByFieldName("superclasses"); superclasses != nil {
		sig += text(superclasses, src)
	}
	sig += ":"

	return &adapters.Symbol{
		Kind:          adapters.KindClass,
		Name:          name,
		Signature:     sig,
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Doc:           leadingDocstring(n, src),
		ParentSymbol:  parent,
		ScopeKind:     scope,
		IsConditional: conditional,
		DeclContext:   declContext,
	}
}

// moduleConstant recognizes `NAME = value` or `NAME: Type = value`
// expression statements at module or class scope as constants.
func moduleConstant(n *sitter.Node, src []byte, parent string, scope adapters.ScopeKind, conditional bool, declContext string) *adapters.Symbol {
	if scope != adapters.ScopeModule && scope != adapters.ScopeClass {
		return nil
	}
	if n.NamedChildCount() == 0 {
		return nil
	}
	inner := n.NamedChild(0)
	if inner.Type() != "assignment" {
		return nil
	}
	return assignmentSymbolFromNode(inner, src, parent, scope, conditional, declContext)
}

func assignmentSymbol(n *sitter.Node, src []byte, parent string, scope adapters.ScopeKind, conditional bool, declContext string) *adapters.Symbol {
	return assignmentSymbolFromNode(n, src, parent, scope, conditional, declContext)
}

func assignmentSymbolFromNode(n *sitter.Node, src []byte, parent string, scope adapters.ScopeKind, conditional bool, declContext string) *adapters.Symbol {
	left := n.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return nil
	}
	name := text(left, src)
	if !isConstantName(name) {
		return nil
	}

	kind := adapters.KindConst
	if scope == adapters.ScopeClass {
		kind = adapters.KindProperty
	}

	return &adapters.Symbol{
		Kind:          kind,
		Name:          name,
		Signature:     text(n, src),
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		ParentSymbol:  parent,
		ScopeKind:     scope,
		IsConditional: conditional,
		DeclContext:   declContext,
	}
}

func isConstantName(name string) bool {
	return name == strings.ToUpper(name) && strings.ToUpper(name) != strings.ToLower(name)
}

// leadingDocstring returns the first line of a leading string-literal
// statement inside n's body, if present.
func leadingDocstring(n *sitter.Node, src []byte) string {
	body := n.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	strNode := first.NamedChild(0)
	if strNode.Type() != "string" {
		return ""
	}
	raw := text(strNode, src)
	raw = strings.Trim(raw, "\"'")
	raw = strings.TrimPrefix(raw, "\"\"")
	raw = strings.TrimPrefix(raw, "''")
	return firstLine(strings.TrimSpace(raw))
}

func text(n *sitter.Node, src []byte) string {
	return n.Content(src)
}

func walkReferences(n *sitter.Node, src []byte, path string, known map[string]struct{}, out *[]adapters.Reference) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "import_from_statement", "import_statement":
		for _, name := range importedNames(n, src) {
			if _, ok := known[name]; ok {
				*out = append(*out, adapters.Reference{
					Symbol: name, Path: path, Line: int(n.StartPoint().Row) + 1,
					Kind: adapters.RefImport, Evidence: text(n, src), Strategy: adapters.StrategyAST,
				})
			}
		}

	case "identifier":
		name := text(n, src)
		if _, ok := known[name]; ok && !isDeclarationSite(n) {
			*out = append(*out, adapters.Reference{
				Symbol: name, Path: path, Line: int(n.StartPoint().Row) + 1,
				Kind: adapters.RefReference, Evidence: lineSnippet(n, src), Strategy: adapters.StrategyAST,
			})
		}

	case "attribute":
		attr := n.ChildByFieldName("attribute")
		if attr != nil {
			name := text(attr, src)
			if _, ok := known[name]; ok {
				kind := adapters.RefAttribute
				if parent := n.Parent(); parent != nil && parent.Type() == "call" {
					kind = adapters.RefCall
				}
				*out = append(*out, adapters.Reference{
					Symbol: name, Path: path, Line: int(n.StartPoint().Row) + 1,
					Kind: kind, Evidence: lineSnippet(n, src), Strategy: adapters.StrategyAST,
				})
			}
		}
	}

	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		walkReferences(n.NamedChild(i), src, path, known, out)
	}
}

func isDeclarationSite(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "function_definition", "class_definition":
		return parent.ChildByFieldName("name") == n
	}
	return false
}

func importedNames(n *sitter.Node, src []byte) []string {
	var names []string
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "dotted_name", "identifier":
			names = append(names, text(c, src))
		case "aliased_import":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				names = append(names, text(alias, src))
			}
		}
	}
	return names
}

func lineSnippet(n *sitter.Node, src []byte) string {
	return firstLine(text(n, src))
}
