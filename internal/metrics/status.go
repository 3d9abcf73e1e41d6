package metrics

import "sort"

// Bucket is one row of an aggregated count, e.g. a status code or error kind.
type Bucket struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// FlattenBuckets converts a count map into rows sorted by descending count,
// then by key for stability.
func FlattenBuckets(counts map[string]int) []Bucket {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		rows = append(rows, Bucket{Key: key, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
