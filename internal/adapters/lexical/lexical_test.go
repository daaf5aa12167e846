package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutline_GoFunctionsAndTypes(t *testing.T) {
	src := []byte(`package widget

type Widget struct {
	Name string
}

func New(name string) *Widget {
	return &Widget{Name: name}
}

func (w *Widget) String() string {
	return w.Name
}
`)

	a := New()
	symbols := a.Outline("widget.go", src)
	require.NotEmpty(t, symbols)

	var names []string
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Widget")
	assert.Contains(t, names, "New")
	assert.Contains(t, names, "String")
}

func TestOutline_SkipsStringAndCommentSpans(t *testing.T) {
	src := []byte(`// func decoy() {}
const s = "func fake() {}"
func Real() {}
`)
	a := New()
	symbols := a.Outline("x.go", src)

	var names []string
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Real")
	assert.NotContains(t, names, "decoy")
	assert.NotContains(t, names, "fake")
}

func TestOutline_RustImplBlock(t *testing.T) {
	src := []byte(`struct Widget;

impl Widget {
    fn new() -> Self { Widget }
}

impl Display for Widget {
    fn fmt(&self) {}
}
`)
	a := New()
	symbols := a.Outline("widget.rs", src)

	var kinds = map[string]bool{}
	for _, s := range symbols {
		kinds[s.Name] = true
	}
	assert.True(t, kinds["Widget"])
	assert.True(t, kinds["new"])
}

func TestSupportsPath_CoversAllLexicalLanguages(t *testing.T) {
	a := New()
	for _, ext := range []string{".ts", ".tsx", ".js", ".java", ".go", ".rs", ".cpp", ".h", ".cs"} {
		assert.True(t, a.SupportsPath("file"+ext), "expected support for %s", ext)
	}
	assert.False(t, a.SupportsPath("file.py"))
}

func TestExtractReferences_FindsCallSites(t *testing.T) {
	src := []byte(`func main() {
	Widget()
	w.Widget()
}
`)
	a := New()
	refs := a.ExtractReferences("main.go", src, []string{"Widget"})
	require.NotEmpty(t, refs)
}
