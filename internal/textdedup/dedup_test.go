package textdedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityShortCircuits(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 0},
		{"one empty", "hello", "", 0},
		{"exact match", "Hello World", "hello world", 1},
		{"exact after trim", "  text  ", "text", 1},
		{"length ratio below 0.3", "ab", "abcdefghijklmnop", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a := "the quick brown fox"
	b := "the quick brown fix"
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-9)
}

func TestSimilarityNearDuplicates(t *testing.T) {
	a := "Breaking news: markets rally on strong earnings"
	b := "Breaking news: markets rally on strong earning"
	assert.Greater(t, Similarity(a, b), 0.9)

	c := "completely different content about the weather today"
	assert.Less(t, Similarity(a, c), 0.5)
}

func TestSimilarityDisjointVocabularyReturnsJaccard(t *testing.T) {
	// Same length, zero shared words: jaccard is 0, returned directly.
	a := "aaa bbb ccc"
	b := "ddd eee fff"
	assert.InDelta(t, 0, Similarity(a, b), 1e-9)
}

func TestDedupCollapsesNearDuplicates(t *testing.T) {
	frames := []string{
		"STATION: Central Park",
		"STATION: Central Park",
		"STATION: Central Parc", // OCR wobble on one character
		"NEXT TRAIN 5 MIN",
	}
	got := Dedup(frames, DefaultThreshold)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "NEXT TRAIN 5 MIN")
}

func TestDedupPreservesFirstOccurrenceOrder(t *testing.T) {
	frames := []string{"zebra crossing ahead", "ticket office", "platform nine"}
	got := Dedup(frames, DefaultThreshold)
	assert.Equal(t, frames, got, "distinct texts keep their original order")
}

func TestDedupKeepsLongestRepresentative(t *testing.T) {
	frames := []string{
		"arrivals and departures boar",
		"arrivals and departures board", // longer, cleaner read
	}
	got := Dedup(frames, DefaultThreshold)
	assert.Equal(t, []string{"arrivals and departures board"}, got)
}

func TestDedupEmptyAndSingle(t *testing.T) {
	assert.Empty(t, Dedup(nil, DefaultThreshold))
	assert.Equal(t, []string{"only"}, Dedup([]string{"only"}, DefaultThreshold))
}

func TestDedupIdempotent(t *testing.T) {
	frames := []string{
		"gate 22 boarding",
		"gate 22 boardin",
		"flight delayed",
		"flight delayed",
		"baggage claim 4",
	}
	once := Dedup(frames, DefaultThreshold)
	twice := Dedup(once, DefaultThreshold)
	assert.Equal(t, once, twice)
}
