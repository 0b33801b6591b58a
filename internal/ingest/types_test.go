package ingest

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypesAreFormatted(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"SourceConfig", "SessionOptions", "SearchOptions", "RawItem", "Article"} {
		requireStructFormatted(t, "types.go", name)
	}
}

// requireStructFormatted checks that the named struct type in file is laid out as gofmt would.
func requireStructFormatted(t *testing.T, file, typeName string) {
	t.Helper()

	src, err := os.ReadFile(file)
	require.NoError(t, err)
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, src, parser.ParseComments)
	require.NoError(t, err)

	var st *ast.StructType
	ast.Inspect(f, func(n ast.Node) bool {
		if ts, ok := n.(*ast.TypeSpec); ok && ts.Name.Name == typeName {
			st, _ = ts.Type.(*ast.StructType)
			return false
		}
		return true
	})
	require.NotNil(t, st, typeName)

	var buf bytes.Buffer
	require.NoError(t, format.Node(&buf, fset, &printer.CommentedNode{Node: st, Comments: f.Comments}))
	start, end := fset.Position(st.Pos()).Offset, fset.Position(st.End()).Offset
	require.Equal(t, buf.String(), string(src[start:end]), typeName)
}
