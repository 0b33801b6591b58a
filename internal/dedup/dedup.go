// Package dedup collapses duplicate records within one run.
//
// Both helpers apply a last-wins policy: the latest occurrence supplies the content while the
// first occurrence fixes the position in the output.
package dedup

import "github.com/StanHuanng/anthropo-reader/internal/ingest"

// ByExternalID keeps one item per non-empty ExternalID. Items without an ID pass through.
func ByExternalID(items []ingest.RawItem) []ingest.RawItem {
	return By(items, func(it ingest.RawItem) string { return it.ExternalID })
}

// BySourceURL keeps one article per non-empty source URL so a sink never sees two rows with the
// same key in one batch.
func BySourceURL(articles []ingest.Article) []ingest.Article {
	return By(articles, func(a ingest.Article) string { return a.SourceURL })
}

// By collapses in on key. An empty key never collides.
func By[T any](in []T, key func(T) string) []T {
	out := make([]T, 0, len(in))
	index := make(map[string]int, len(in))
	for _, v := range in {
		k := key(v)
		if k == "" {
			out = append(out, v)
			continue
		}
		if pos, ok := index[k]; ok {
			out[pos] = v
			continue
		}
		index[k] = len(out)
		out = append(out, v)
	}
	return out
}
