// Package predict turns class probabilities into the ranked disease list
// returned to callers, and owns the immutable model bundle used to serve it.
package predict

import (
	"fmt"
	"math"

	"github.com/Skufu/symptom2disease/internal/features"
	"github.com/Skufu/symptom2disease/internal/model"
)

// DefaultTopK is the number of diseases returned when k is not positive.
const DefaultTopK = 3

// Prediction is one ranked disease.
type Prediction struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
}

// Rank returns the min(k, classes) most probable diseases, most probable
// first, ties in class index order, probabilities rounded to 3 decimals.
// No threshold is applied.
func Rank(probs []float64, k int, labels *features.LabelIndex) ([]Prediction, error) {
	if len(probs) != labels.Len() {
		return nil, fmt.Errorf("got %d probabilities for %d classes", len(probs), labels.Len())
	}
	if k <= 0 {
		k = DefaultTopK
	}
	top := model.TopIndices(probs, k)
	out := make([]Prediction, 0, len(top))
	for _, i := range top {
		disease, err := labels.Decode(i)
		if err != nil {
			return nil, err
		}
		out = append(out, Prediction{Disease: disease, Probability: round3(probs[i])})
	}
	return out, nil
}

func round3(p float64) float64 {
	return math.Round(p*1000) / 1000
}
