package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

func sample() []ingest.Article {
	return []ingest.Article{{
		Title:       "教务通知 <重要>",
		SourceURL:   "https://jw.scut.edu.cn/n/1?a=1&b=2",
		Priority:    ingest.PriorityHigh,
		Tags:        []string{"选课"},
		PublishedAt: "2025-03-01",
		FetchedAt:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}}
}

func TestEncodeJSONKeepsUnicodeAndSnakeCase(t *testing.T) {
	t.Parallel()

	data, ct, err := Encode(FormatJSON, sample())
	require.NoError(t, err)
	require.Equal(t, "application/json", ct)
	require.Contains(t, string(data), "教务通知 <重要>")
	require.Contains(t, string(data), "a=1&b=2")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "high", decoded[0]["priority"])
	require.Equal(t, false, decoded[0]["is_favorited"])
	require.Contains(t, decoded[0], "ai_summary")
	require.NotContains(t, decoded[0], "Layout")
}

func TestEncodeYAML(t *testing.T) {
	t.Parallel()

	data, ct, err := Encode("yaml", sample())
	require.NoError(t, err)
	require.Equal(t, "application/yaml", ct)

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, "https://jw.scut.edu.cn/n/1?a=1&b=2", decoded[0]["source_url"])
}

func TestEncodeEmptyAndUnknown(t *testing.T) {
	t.Parallel()

	data, _, err := Encode(FormatJSON, nil)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))

	_, _, err = Encode("csv", nil)
	require.Error(t, err)
}

func TestResolveStdoutAndFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	dest, closer, err := Resolve(context.Background(), "-", &buf)
	require.NoError(t, err)
	loc, err := Write(context.Background(), dest, FormatJSON, sample())
	require.NoError(t, err)
	require.Equal(t, "-", loc)
	require.NoError(t, closer())
	require.Contains(t, buf.String(), "jw.scut.edu.cn")

	path := filepath.Join(t.TempDir(), "out", "articles.json")
	dest, _, err = Resolve(context.Background(), path, &buf)
	require.NoError(t, err)
	loc, err = Write(context.Background(), dest, FormatJSON, sample())
	require.NoError(t, err)
	require.Equal(t, path, loc)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "教务通知")
}

func TestParseGS(t *testing.T) {
	t.Parallel()

	bucket, object, ok := ParseGS("gs://reader-archive/runs/2025/articles.json")
	require.True(t, ok)
	require.Equal(t, "reader-archive", bucket)
	require.Equal(t, "runs/2025/articles.json", object)

	for _, bad := range []string{"gs://", "gs://bucket", "gs:///obj", "s3://b/o"} {
		_, _, ok := ParseGS(bad)
		require.False(t, ok, bad)
	}
	_, _, err := Resolve(context.Background(), "gs://bucket", nil)
	require.Error(t, err)
}

func TestGCSRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := GCS{Bucket: "b", Object: "o"}.Write(context.Background(), []byte("x"), "application/json")
	require.Error(t, err)
}
