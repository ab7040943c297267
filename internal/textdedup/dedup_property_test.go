package textdedup

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genTexts() gopter.Gen {
	return gen.SliceOf(gen.OneConstOf(
		"gate 22 boarding",
		"gate 22 boardin",
		"flight delayed 20 minutes",
		"flight delayed 25 minutes",
		"baggage claim 4",
		"exit via platform two",
		"",
	))
}

// TestDedup_Idempotent verifies dedup(dedup(xs)) == dedup(xs).
func TestDedup_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("dedup is idempotent", prop.ForAll(
		func(texts []string, threshold float64) bool {
			once := Dedup(texts, threshold)
			twice := Dedup(once, threshold)
			if len(once) != len(twice) {
				return false
			}
			for i := range once {
				if once[i] != twice[i] {
					return false
				}
			}
			return true
		},
		genTexts(),
		gen.Float64Range(0.5, 0.99),
	))

	properties.TestingRun(t)
}

// TestDedup_Subset verifies every surviving text appears in the input.
func TestDedup_Subset(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("output is a subset of input", prop.ForAll(
		func(texts []string) bool {
			seen := make(map[string]bool, len(texts))
			for _, s := range texts {
				seen[s] = true
			}
			for _, s := range Dedup(texts, DefaultThreshold) {
				if !seen[s] {
					return false
				}
			}
			return true
		},
		genTexts(),
	))

	properties.TestingRun(t)
}

// TestSimilarity_Bounded verifies scores stay in [0,1].
func TestSimilarity_Bounded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("similarity is within [0,1]", prop.ForAll(
		func(a, b string) bool {
			s := Similarity(a, b)
			return s >= 0 && s <= 1
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
