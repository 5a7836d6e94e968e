// Package evaluate measures a fitted detector against labeled holdout data.
package evaluate

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"text/tabwriter"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Class indexes used by the confusion matrix.
const (
	Normal  = 0
	Anomaly = 1
)

// Classifier is anything that can flag a feature vector as anomalous.
type Classifier interface {
	Classify(features []float64) (bool, error)
}

// ClassMetrics are the per-class quality figures.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ConfusionMatrix counts outcomes; rows are ground truth and columns predictions.
type ConfusionMatrix [2][2]int

// Report summarizes a classifier's performance on a holdout set.
type Report struct {
	Classes     [2]ClassMetrics `json:"classes"`
	Accuracy    float64         `json:"accuracy"`
	MacroAvg    ClassMetrics    `json:"macro_avg"`
	WeightedAvg ClassMetrics    `json:"weighted_avg"`
	Confusion   ConfusionMatrix `json:"confusion"`
}

// Evaluate classifies every holdout reading and compares it with its label.
func Evaluate(c Classifier, holdout []vitals.LabeledReading) (Report, error) {
	if len(holdout) == 0 {
		return Report{}, errors.New("empty holdout set")
	}

	var cm ConfusionMatrix
	for i, r := range holdout {
		predicted, err := c.Classify(r.Features())
		if err != nil {
			return Report{}, fmt.Errorf("classify holdout row %d: %w", i, err)
		}
		cm[class(r.IsAnomaly)][class(predicted)]++
	}

	return cm.Report(), nil
}

// Report derives the metrics from the matrix. Undefined ratios are 0.
func (cm ConfusionMatrix) Report() Report {
	rep := Report{Confusion: cm}
	total := 0
	correct := 0

	for k := Normal; k <= Anomaly; k++ {
		tp := cm[k][k]
		support := cm[k][0] + cm[k][1]
		predicted := cm[0][k] + cm[1][k]

		m := ClassMetrics{
			Precision: ratio(tp, predicted),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		rep.Classes[k] = m

		total += support
		correct += tp
	}

	rep.Accuracy = ratio(correct, total)
	for _, m := range rep.Classes {
		rep.MacroAvg.Precision += m.Precision / 2
		rep.MacroAvg.Recall += m.Recall / 2
		rep.MacroAvg.F1 += m.F1 / 2
		if total > 0 {
			w := float64(m.Support) / float64(total)
			rep.WeightedAvg.Precision += m.Precision * w
			rep.WeightedAvg.Recall += m.Recall * w
			rep.WeightedAvg.F1 += m.F1 * w
		}
	}
	rep.MacroAvg.Support = total
	rep.WeightedAvg.Support = total

	return rep
}

// WriteTo prints the classification report and confusion matrix.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "\tprecision\trecall\tf1-score\tsupport\t")
	fmt.Fprintln(tw, "\t\t\t\t\t")
	for k, name := range []string{"Normal (0)", "Anomaly (1)"} {
		writeRow(tw, name, r.Classes[k])
	}
	fmt.Fprintln(tw, "\t\t\t\t\t")
	fmt.Fprintf(tw, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.MacroAvg.Support)
	writeRow(tw, "macro avg", r.MacroAvg)
	writeRow(tw, "weighted avg", r.WeightedAvg)
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}

	fmt.Fprintf(cw, "\nConfusion matrix (rows = actual, columns = predicted):\n")
	fmt.Fprintf(cw, "[[%d %d]\n [%d %d]]\n", r.Confusion[0][0], r.Confusion[0][1], r.Confusion[1][0], r.Confusion[1][1])
	return cw.n, cw.err
}

func writeRow(w io.Writer, name string, m ClassMetrics) {
	fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", name, m.Precision, m.Recall, m.F1, m.Support)
}

// TrainTestSplit shuffles data with seed and returns disjoint train and test
// sets, the test set holding ceil(len*testFraction) rows.
func TrainTestSplit(data []vitals.LabeledReading, testFraction float64, seed int64) (train, test []vitals.LabeledReading, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}
	nTest := int(math.Ceil(float64(len(data)) * testFraction))
	if nTest == 0 || nTest >= len(data) {
		return nil, nil, fmt.Errorf("cannot split %d rows with test fraction %v", len(data), testFraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(len(data))
	test = make([]vitals.LabeledReading, 0, nTest)
	train = make([]vitals.LabeledReading, 0, len(data)-nTest)
	for i, idx := range perm {
		if i < nTest {
			test = append(test, data[idx])
		} else {
			train = append(train, data[idx])
		}
	}
	return train, test, nil
}

func class(isAnomaly bool) int {
	if isAnomaly {
		return Anomaly
	}
	return Normal
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
