package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

func TestByExternalIDLastWins(t *testing.T) {
	t.Parallel()

	out := ByExternalID([]ingest.RawItem{
		{ExternalID: "1", Title: "first"},
		{ExternalID: "2", Title: "other"},
		{ExternalID: "1", Title: "second"},
	})
	require.Len(t, out, 2)
	require.Equal(t, "second", out[0].Title)
	require.Equal(t, "other", out[1].Title)
}

func TestByExternalIDKeepsUnkeyed(t *testing.T) {
	t.Parallel()

	out := ByExternalID([]ingest.RawItem{{Title: "a"}, {Title: "b"}, {ExternalID: "x", Title: "c"}})
	require.Len(t, out, 3)
	require.Empty(t, ByExternalID(nil))
}

func TestBySourceURL(t *testing.T) {
	t.Parallel()

	out := BySourceURL([]ingest.Article{
		{SourceURL: "https://a", Title: "old"},
		{SourceURL: "https://b", Title: "b"},
		{SourceURL: "https://a", Title: "new"},
	})
	require.Len(t, out, 2)
	require.Equal(t, "new", out[0].Title)
	require.Equal(t, "https://b", out[1].SourceURL)
}
