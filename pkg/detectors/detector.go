// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

import (
	"context"
	"errors"
)

// ErrNotTrained is returned when scoring with a model that was never fitted or loaded.
var ErrNotTrained = errors.New("model not trained")

// Detector is the common interface for fitted anomaly detection models.
// A fitted detector is immutable and safe for concurrent use.
type Detector interface {
	// Predict returns anomaly scores for the given samples.
	// Scores are normalized to [0, 1] where higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// Classify reports whether a sample falls on the anomalous side of the threshold.
	Classify(sample []float64) (bool, error)

	// Threshold returns the score at or above which samples are anomalies.
	Threshold() float64

	// Save serializes the fitted model to bytes.
	Save() ([]byte, error)
}

// StreamDetector extends Detector with streaming capabilities.
type StreamDetector interface {
	Detector

	// PredictStream processes samples from a channel and outputs scores.
	PredictStream(ctx context.Context, input <-chan []float64, output chan<- Score) error
}

// Score represents an anomaly detection result.
type Score struct {
	// Value is the anomaly score in [0, 1].
	Value float64
	// IsAnomaly indicates if the score reaches the threshold.
	IsAnomaly bool
	// Features contains the original input features.
	Features []float64
	// Err is set when the sample could not be scored.
	Err error
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64
	// RandomSeed for reproducibility.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.1,
		RandomSeed:    42,
	}
}
