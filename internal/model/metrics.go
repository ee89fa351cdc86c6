package model

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Skufu/symptom2disease/internal/features"
)

// ClassMetrics are the held-out scores of one class (or an average).
type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarizes held-out performance. It is a training diagnostic only.
type Report struct {
	Samples      int
	Accuracy     float64
	TopK         int
	TopKAccuracy float64
	Classes      []ClassMetrics
	Macro        ClassMetrics
	Weighted     ClassMetrics
}

// Evaluate scores c on (X, y). Only classes that occur in y or in the
// predictions are listed. labels maps class indices to names.
func Evaluate(c Classifier, X []features.Vector, y []int, labels []string, k int) Report {
	if k < 1 {
		k = 1
	}
	r := Report{Samples: len(y), TopK: k}
	if len(y) == 0 {
		return r
	}
	tp := map[int]int{}
	predicted := map[int]int{}
	support := map[int]int{}
	correct, topHits := 0, 0
	for i, x := range X {
		probs := c.PredictProba(x)
		top := TopIndices(probs, k)
		pred := top[0]
		predicted[pred]++
		support[y[i]]++
		if pred == y[i] {
			correct++
			tp[pred]++
		}
		for _, t := range top {
			if t == y[i] {
				topHits++
				break
			}
		}
	}
	r.Accuracy = float64(correct) / float64(len(y))
	r.TopKAccuracy = float64(topHits) / float64(len(y))

	seen := map[int]struct{}{}
	for cl := range support {
		seen[cl] = struct{}{}
	}
	for cl := range predicted {
		seen[cl] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for cl := range seen {
		classes = append(classes, cl)
	}
	sort.Ints(classes)

	for _, cl := range classes {
		m := ClassMetrics{Label: labelFor(labels, cl), Support: support[cl]}
		if predicted[cl] > 0 {
			m.Precision = float64(tp[cl]) / float64(predicted[cl])
		}
		if support[cl] > 0 {
			m.Recall = float64(tp[cl]) / float64(support[cl])
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)

		r.Macro.Precision += m.Precision
		r.Macro.Recall += m.Recall
		r.Macro.F1 += m.F1
		w := float64(m.Support)
		r.Weighted.Precision += w * m.Precision
		r.Weighted.Recall += w * m.Recall
		r.Weighted.F1 += w * m.F1
	}
	n := float64(len(classes))
	r.Macro = ClassMetrics{Label: "macro avg", Precision: r.Macro.Precision / n, Recall: r.Macro.Recall / n, F1: r.Macro.F1 / n, Support: len(y)}
	total := float64(len(y))
	r.Weighted = ClassMetrics{Label: "weighted avg", Precision: r.Weighted.Precision / total, Recall: r.Weighted.Recall / total, F1: r.Weighted.F1 / total, Support: len(y)}
	return r
}

// String renders the report as a classification table.
func (r Report) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, m := range r.Classes {
		writeRow(w, m)
	}
	fmt.Fprintln(w, "\t\t\t\t\t")
	fmt.Fprintf(w, "accuracy\t\t\t%.3f\t%d\t\n", r.Accuracy, r.Samples)
	writeRow(w, r.Macro)
	writeRow(w, r.Weighted)
	w.Flush()
	fmt.Fprintf(&sb, "top-%d accuracy: %.3f\n", r.TopK, r.TopKAccuracy)
	return sb.String()
}

func writeRow(w *tabwriter.Writer, m ClassMetrics) {
	fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%d\t\n", m.Label, m.Precision, m.Recall, m.F1, m.Support)
}

func labelFor(labels []string, i int) string {
	if i >= 0 && i < len(labels) {
		return labels[i]
	}
	return fmt.Sprintf("class %d", i)
}
