package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		limit int
		want  int
	}{
		{name: "empty", total: 0, limit: 20, want: 0},
		{name: "exact fit", total: 40, limit: 20, want: 2},
		{name: "partial last page", total: 41, limit: 20, want: 3},
		{name: "single item", total: 1, limit: 20, want: 1},
		{name: "zero limit", total: 100, limit: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageCount(tt.total, tt.limit))
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "plain", SanitizeUTF8("plain"))
	assert.Equal(t, "", SanitizeUTF8(""))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
}

func TestUUIDRoundTrip(t *testing.T) {
	id := "0d9bb3a0-5f1c-4f59-9f52-1a2b3c4d5e6f"
	assert.Equal(t, id, fromUUID(toUUID(id)))

	assert.False(t, toUUID("").Valid)
	assert.False(t, toUUID("not-a-uuid").Valid)
	assert.Equal(t, "", fromUUID(toUUID("")))
}
