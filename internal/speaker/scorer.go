package speaker

import (
	"math"
	"strings"
	"unicode/utf8"
)

// SimilarityScorer compares two feature vectors, returning a score in [0, 1]
type SimilarityScorer interface {
	Score(a, b []float64) float64
}

// ElementwiseScorer averages 1 - |a_i - b_i| / 2 over the shared prefix.
// Vectors with no shared prefix score 0.
type ElementwiseScorer struct{}

func (ElementwiseScorer) Score(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += 1 - math.Abs(a[i]-b[i])/2
	}
	return sum / float64(n)
}

// FeatureSize is the length of vectors built by FeaturesFromText
const FeatureSize = 16

// FeaturesFromText builds a stand-in feature vector from transcript text:
// a histogram of word lengths normalized to sum to 1. It carries no
// acoustic information.
func FeaturesFromText(text string) []float64 {
	features := make([]float64, FeatureSize)
	words := strings.Fields(text)
	if len(words) == 0 {
		return features
	}
	for _, w := range words {
		n := utf8.RuneCountInString(w)
		if n >= FeatureSize {
			n = FeatureSize
		}
		features[n-1]++
	}
	for i := range features {
		features[i] /= float64(len(words))
	}
	return features
}
