// Package lexical implements the shared deterministic scanner used as
// the outline adapter for TS/JS, Java, Go, Rust, C++, and C#: no AST, just
// a token walk that skips string and comment spans and recognizes
// declarators by keyword. Brace/paren depth is not tracked, so a keyword
// is matched at any nesting depth. Macro-heavy or template-heavy code
// degrades to fewer symbols, never to an error.
package lexical

import (
	"strings"

	"github.com/repomcp/repomcpd/internal/adapters"
)

// declarator is one recognized keyword form, e.g. "class X", "func X(".
type declarator struct {
	keyword string
	kind    adapters.SymbolKind
	// takesParen is true for function-like forms that carry a parameter
	// list (functions/methods/records); false for brace-only forms
	// (class/interface/struct/enum/namespace). Outline does not consult
	// it: the name is taken whether or not a "(" follows.
	takesParen bool
}

// Language bundles the declarator table and extension list for one
// lexical language.
type Language struct {
	Name        string
	Extensions  []string
	declarators []declarator
}

var languages = []Language{
	{
		Name:       "typescript",
		Extensions: []string{".ts", ".tsx", ".js", ".jsx"},
		declarators: []declarator{
			{"class", adapters.KindClass, false},
			{"interface", adapters.KindInterface, false},
			{"enum", adapters.KindEnum, false},
			{"namespace", adapters.KindNamespace, false},
			{"function", adapters.KindFunction, true},
		},
	},
	{
		Name:       "java",
		Extensions: []string{".java"},
		declarators: []declarator{
			{"class", adapters.KindClass, false},
			{"interface", adapters.KindInterface, false},
			{"enum", adapters.KindEnum, false},
			{"record", adapters.KindRecord, true},
		},
	},
	{
		Name:       "go",
		Extensions: []string{".go"},
		declarators: []declarator{
			{"func", adapters.KindFunction, true},
			{"type", adapters.KindType, false},
		},
	},
	{
		Name:       "rust",
		Extensions: []string{".rs"},
		declarators: []declarator{
			{"fn", adapters.KindFunction, true},
			{"struct", adapters.KindStruct, false},
			{"trait", adapters.KindTrait, false},
			{"enum", adapters.KindEnum, false},
			{"impl", adapters.KindImpl, false},
			{"mod", adapters.KindModule, false},
		},
	},
	{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".h", ".c"},
		declarators: []declarator{
			{"class", adapters.KindClass, false},
			{"struct", adapters.KindStruct, false},
			{"namespace", adapters.KindNamespace, false},
			{"enum", adapters.KindEnum, false},
		},
	},
	{
		Name:       "csharp",
		Extensions: []string{".cs"},
		declarators: []declarator{
			{"class", adapters.KindClass, false},
			{"interface", adapters.KindInterface, false},
			{"struct", adapters.KindStruct, false},
			{"enum", adapters.KindEnum, false},
			{"namespace", adapters.KindNamespace, false},
		},
	},
}

// Adapter is the shared lexical scanner, parameterized per language by
// extension.
type Adapter struct{}

// New creates the lexical fallback adapter covering every non-Python
// language in the extension tables above.
func New() *Adapter { return &Adapter{} }

// SupportsPath reports whether any registered language claims path's
// extension.
func (a *Adapter) SupportsPath(path string) bool {
	return languageFor(path) != nil
}

func languageFor(path string) *Language {
	ext := extOf(path)
	for i := range languages {
		for _, e := range languages[i].Extensions {
			if e == ext {
				return &languages[i]
			}
		}
	}
	return nil
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

// Outline scans text for declarator keywords at any brace depth and
// returns one Symbol per match, signature taken as the declarator line
// truncated at balanced parens/braces.
func (a *Adapter) Outline(path string, text []byte) []adapters.Symbol {
	lang := languageFor(path)
	if lang == nil {
		return nil
	}

	toks := scan(text)
	var symbols []adapters.Symbol

	for i, tok := range toks {
		if tok.kind != tokWord {
			continue
		}
		decl := matchDeclarator(lang, tok.text)
		if decl == nil {
			continue
		}

		name, sigEnd := extractName(toks, i, *decl)
		if name == "" {
			continue
		}

		startLine := tok.line
		endLine := sigEnd

		symbols = append(symbols, adapters.Symbol{
			Kind:      decl.kind,
			Name:      name,
			Signature: signatureLine(text, tok.byteOffset),
			StartLine: startLine,
			EndLine:   endLine,
		})
	}

	adapters.SortSymbols(symbols)
	return symbols
}

func matchDeclarator(lang *Language, word string) *declarator {
	for i := range lang.declarators {
		if lang.declarators[i].keyword == word {
			return &lang.declarators[i]
		}
	}
	return nil
}

// extractName returns the identifier following a declarator keyword
// token and the line of the token after it, which Outline uses as the
// symbol's end line. The closing brace of the declaration body is not
// searched for.
func extractName(toks []token, declIdx int, decl declarator) (string, int) {
	j := declIdx + 1

	// Rust "impl X for Y" / "impl X": name is the type after impl.
	if decl.keyword == "impl" {
		var parts []string
		for j < len(toks) && toks[j].kind == tokWord {
			parts = append(parts, toks[j].text)
			j++
		}
		if len(parts) == 0 {
			return "", toks[minInt(declIdx+1, len(toks)-1)].line
		}
		return strings.Join(parts, " "), toks[j-1].line
	}

	// Go methods: "func (r *Receiver) Name(" — skip the parenthesized
	// receiver before reading the method name.
	if j < len(toks) && toks[j].kind == tokPunct && toks[j].text == "(" {
		depth := 1
		j++
		for j < len(toks) && depth > 0 {
			if toks[j].kind == tokPunct {
				if toks[j].text == "(" {
					depth++
				} else if toks[j].text == ")" {
					depth--
				}
			}
			j++
		}
	}

	if j >= len(toks) || toks[j].kind != tokWord {
		return "", toks[declIdx].line
	}
	name := toks[j].text

	endLine := toks[j].line
	if j+1 < len(toks) {
		endLine = toks[j+1].line
	}
	return name, endLine
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// signatureLine returns the source line containing byteOffset, truncated
// at the first balanced '{' or ';' — a stable, deterministic declarator
// rendering even for macro-heavy or template-heavy code.
func signatureLine(text []byte, byteOffset int) string {
	start := byteOffset
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	end := byteOffset
	for end < len(text) && text[end] != '\n' {
		end++
	}
	line := string(text[start:end])

	if idx := strings.IndexAny(line, "{;"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

// ExtractReferences finds whole-word matches of knownSymbols outside
// string/comment spans.
func (a *Adapter) ExtractReferences(path string, text []byte, knownSymbols []string) []adapters.Reference {
	if languageFor(path) == nil {
		return nil
	}

	known := make(map[string]struct{}, len(knownSymbols))
	for _, s := range knownSymbols {
		known[trailing(s)] = struct{}{}
	}

	toks := scan(text)
	var refs []adapters.Reference

	for i, tok := range toks {
		if tok.kind != tokWord {
			continue
		}
		if _, ok := known[tok.text]; !ok {
			continue
		}

		kind := adapters.RefReference
		if i+1 < len(toks) && toks[i+1].kind == tokPunct && toks[i+1].text == "(" {
			kind = adapters.RefCall
		} else if i > 0 && toks[i-1].kind == tokPunct && (toks[i-1].text == "." || toks[i-1].text == "::") {
			kind = adapters.RefAttribute
		} else if i > 0 && (toks[i-1].text == "import" || toks[i-1].text == "use" || toks[i-1].text == "include") {
			kind = adapters.RefImport
		}

		refs = append(refs, adapters.Reference{
			Symbol:     tok.text,
			Path:       path,
			Line:       tok.line,
			Kind:       kind,
			Evidence:   tok.text,
			Strategy:   adapters.StrategyLexical,
			Confidence: adapters.ConfidenceLow,
		})
	}

	adapters.SortReferences(refs)
	return refs
}

func trailing(symbol string) string {
	if idx := strings.LastIndexAny(symbol, ".:"); idx >= 0 {
		return symbol[idx+1:]
	}
	return symbol
}
