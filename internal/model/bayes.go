package model

import (
	"context"
	"fmt"
	"math"

	"github.com/Skufu/symptom2disease/internal/features"
)

// NaiveBayesTrainer fits a Bernoulli naive Bayes model with additive
// smoothing. Alpha <= 0 means 1.
type NaiveBayesTrainer struct {
	Alpha float64
}

func (t *NaiveBayesTrainer) Fit(ctx context.Context, X []features.Vector, y []int, numClasses int) (Classifier, error) {
	width, err := checkTrainingSet(X, y, numClasses)
	if err != nil {
		return nil, err
	}
	alpha := t.Alpha
	if alpha <= 0 {
		alpha = 1
	}

	classCount := make([]float64, numClasses)
	present := make([][]float64, numClasses)
	for c := range present {
		present[c] = make([]float64, width)
	}
	for i, x := range X {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		classCount[y[i]]++
		for _, f := range x.Active() {
			present[y[i]][f]++
		}
	}

	nb := &NaiveBayes{
		Features:   width,
		Classes:    numClasses,
		LogPrior:   make([]float64, numClasses),
		LogPresent: make([][]float64, numClasses),
		LogAbsent:  make([][]float64, numClasses),
	}
	total := float64(len(X))
	for c := 0; c < numClasses; c++ {
		nb.LogPrior[c] = math.Log((classCount[c] + alpha) / (total + alpha*float64(numClasses)))
		nb.LogPresent[c] = make([]float64, width)
		nb.LogAbsent[c] = make([]float64, width)
		denom := classCount[c] + 2*alpha
		for f := 0; f < width; f++ {
			p := (present[c][f] + alpha) / denom
			nb.LogPresent[c][f] = math.Log(p)
			nb.LogAbsent[c][f] = math.Log(1 - p)
		}
	}
	nb.prepare()
	return nb, nil
}

// NaiveBayes is a Bernoulli naive Bayes classifier.
type NaiveBayes struct {
	Features   int         `json:"features"`
	Classes    int         `json:"classes"`
	LogPrior   []float64   `json:"log_prior"`
	LogPresent [][]float64 `json:"log_present"`
	LogAbsent  [][]float64 `json:"log_absent"`

	absentSum []float64
}

func (nb *NaiveBayes) Kind() string     { return KindNaiveBayes }
func (nb *NaiveBayes) NumFeatures() int { return nb.Features }
func (nb *NaiveBayes) NumClasses() int  { return nb.Classes }

func (nb *NaiveBayes) PredictProba(x features.Vector) []float64 {
	active := x.Active()
	scores := make([]float64, nb.Classes)
	maxScore := math.Inf(-1)
	for c := range scores {
		s := nb.LogPrior[c] + nb.absentSum[c]
		for _, f := range active {
			if f < nb.Features {
				s += nb.LogPresent[c][f] - nb.LogAbsent[c][f]
			}
		}
		scores[c] = s
		if s > maxScore {
			maxScore = s
		}
	}
	for c, s := range scores {
		scores[c] = math.Exp(s - maxScore)
	}
	normalizeInPlace(scores)
	return scores
}

func (nb *NaiveBayes) prepare() {
	nb.absentSum = make([]float64, nb.Classes)
	for c := range nb.absentSum {
		for _, v := range nb.LogAbsent[c] {
			nb.absentSum[c] += v
		}
	}
}

func (nb *NaiveBayes) validate() error {
	if nb.Classes < 1 || len(nb.LogPrior) != nb.Classes || len(nb.LogPresent) != nb.Classes || len(nb.LogAbsent) != nb.Classes {
		return fmt.Errorf("naive bayes parameters do not cover %d classes", nb.Classes)
	}
	for c := 0; c < nb.Classes; c++ {
		if len(nb.LogPresent[c]) != nb.Features || len(nb.LogAbsent[c]) != nb.Features {
			return fmt.Errorf("naive bayes class %d does not cover %d features", c, nb.Features)
		}
	}
	nb.prepare()
	return nil
}
