package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		meta     map[string]string
		expected bool
	}{
		// ===== GOOD CASES =====
		{
			name:     "empty filter matches anything",
			filter:   Filter{},
			meta:     map[string]string{"ward": "5"},
			expected: true,
		},
		{
			name:     "single field exact match",
			filter:   Filter{Ward: "5"},
			meta:     map[string]string{"ward": "5", "tag": "roads"},
			expected: true,
		},
		{
			name:     "multiple fields all match",
			filter:   Filter{Ward: "5", Tag: "roads"},
			meta:     map[string]string{"ward": "5", "tag": "roads"},
			expected: true,
		},

		// ===== EDGE CASES =====
		{
			name:     "one field mismatch fails the whole filter",
			filter:   Filter{Ward: "5", Tag: "roads"},
			meta:     map[string]string{"ward": "5", "tag": "water"},
			expected: false,
		},
		{
			name:     "missing key fails",
			filter:   Filter{Source: "sop.pdf"},
			meta:     map[string]string{"ward": "5"},
			expected: false,
		},
		{
			name:     "empty filter matches nil metadata",
			filter:   Filter{},
			meta:     nil,
			expected: true,
		},
		{
			name:     "no substring matching",
			filter:   Filter{Ward: "5"},
			meta:     map[string]string{"ward": "15"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Matches(tt.meta))
		})
	}
}

func TestFilter_Map(t *testing.T) {
	filter := Filter{Ward: "5", UploadedBy: "officer1"}
	m := filter.Map()

	assert.Equal(t, map[string]string{"ward": "5", "uploaded_by": "officer1"}, m)
	assert.True(t, Filter{}.IsZero())
	assert.False(t, filter.IsZero())
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1_0", ChunkID("doc-1", 0))
	assert.Equal(t, "doc-1_12", ChunkID("doc-1", 12))

	// Same inputs always derive the same id.
	assert.Equal(t, ChunkID("abc", 3), ChunkID("abc", 3))
}

func TestNewCollection(t *testing.T) {
	assert.Equal(t, Collection("alice_documents"), NewCollection("alice", ClassDocuments))
	assert.Equal(t, Collection("alice_code"), NewCollection("alice", ClassCode))
}
