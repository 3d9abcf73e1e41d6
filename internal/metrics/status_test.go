package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenBuckets(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		want   []Bucket
	}{
		{name: "nil", counts: nil, want: nil},
		{name: "empty", counts: map[string]int{}, want: nil},
		{
			name:   "single",
			counts: map[string]int{"200": 10},
			want:   []Bucket{{Key: "200", Count: 10}},
		},
		{
			name:   "sorted by count then key",
			counts: map[string]int{"503": 2, "200": 10, "404": 2},
			want: []Bucket{
				{Key: "200", Count: 10},
				{Key: "404", Count: 2},
				{Key: "503", Count: 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlattenBuckets(tt.counts); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenBuckets() = %v, want %v", got, tt.want)
			}
		})
	}
}
