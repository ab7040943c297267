// Package textdedup collapses near-duplicate strings recognized across video
// frames using a hybrid lexical similarity metric.
package textdedup

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the similarity above which two texts count as duplicates.
const DefaultThreshold = 0.85

// prefixLimit bounds the edit-distance comparison to keep long transcripts cheap.
const prefixLimit = 200

// Similarity scores two texts in [0,1] by combining word-set overlap with
// character-level edit distance over a bounded prefix:
//
//	sim = 0.3*jaccard + 0.7*(1 - lev/maxlen)
//
// Cheap short-circuits handle exact matches, empty inputs, grossly different
// lengths, and near-disjoint vocabularies.
func Similarity(a, b string) float64 {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))

	if na == nb {
		if na == "" {
			return 0
		}
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}

	la, lb := len(na), len(nb)
	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if float64(shorter)/float64(longer) < 0.3 {
		return 0
	}

	j := jaccard(wordSet(na), wordSet(nb))
	if j < 0.1 {
		return j
	}

	pa, pb := truncateRunes(na, prefixLimit), truncateRunes(nb, prefixLimit)
	maxLen := utf8.RuneCountInString(pa)
	if n := utf8.RuneCountInString(pb); n > maxLen {
		maxLen = n
	}
	// ComputeDistance counts rune edits, so normalize by rune length.
	dist := levenshtein.ComputeDistance(pa, pb)
	charSim := 1 - float64(dist)/float64(maxLen)

	return 0.3*j + 0.7*charSim
}

// Dedup collapses near-duplicates from texts, keeping one representative per
// cluster. Candidates are considered longest-first so the richest variant of
// a cluster survives; the returned slice preserves the original first-occurrence
// order of the survivors. Dedup is idempotent.
func Dedup(texts []string, threshold float64) []string {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(texts) <= 1 {
		return append([]string(nil), texts...)
	}

	type candidate struct {
		index int
		text  string
	}
	ordered := make([]candidate, len(texts))
	for i, t := range texts {
		ordered[i] = candidate{index: i, text: t}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].text) > len(ordered[j].text)
	})

	var accepted []candidate
	for _, c := range ordered {
		dup := false
		for _, u := range accepted {
			if Similarity(c.text, u.text) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].index < accepted[j].index })
	out := make([]string, len(accepted))
	for i, c := range accepted {
		out[i] = c.text
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
