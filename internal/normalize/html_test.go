package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripHTML(t *testing.T) {
	t.Parallel()

	in := `<div><script>var x = 1;</script><style>p{}</style><p>Hello   <b>world</b></p>
<p>second</p></div>`
	require.Equal(t, "Hello world second", StripHTML(in))
	require.Empty(t, StripHTML("   "))
}

func TestToMarkdownKeepsLinksAndImages(t *testing.T) {
	t.Parallel()

	out, err := ToMarkdown(`<div><p>See <a href="https://example.com/a">notice</a></p><p></p><p></p><img src="https://example.com/i.png" alt="pic"></div>`)
	require.NoError(t, err)
	require.Contains(t, out, "[notice](https://example.com/a)")
	require.Contains(t, out, "![pic](https://example.com/i.png)")
	require.NotContains(t, out, "\n\n\n")
}

func TestCollapseBlankLines(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a\n\nb", CollapseBlankLines("\n a\n\n\n  \n\nb\n\n"[1:]))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Title body", Summarize("# Title **body**", 200))
	long := strings.Repeat("芯", 250)
	got := Summarize(long, 200)
	require.Equal(t, strings.Repeat("芯", 197)+"...", got)
	require.Len(t, []rune(got), 200)
	require.Equal(t, "ab", Summarize("abcdef", 2))
	require.Equal(t, "quote", Summarize("> quote", 5))
}
