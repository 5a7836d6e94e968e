// Package vitals defines the physiological readings scored by vitalguard.
package vitals

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Plausible bounds for externally supplied readings.
const (
	MinHeartRate   = 0
	MaxHeartRate   = 300
	MinBloodOxygen = 0
	MaxBloodOxygen = 100
)

// ErrInvalidReading is returned for readings that must not reach the model.
var ErrInvalidReading = errors.New("invalid reading")

// Reading is a single wearable sample.
type Reading struct {
	HeartRate   int `json:"heart_rate"`
	BloodOxygen int `json:"blood_oxygen"`
}

// LabeledReading is a Reading with its ground truth. Only training data carries labels.
type LabeledReading struct {
	Reading
	IsAnomaly bool `json:"is_anomaly"`
}

// FeatureNames lists the model features in column order.
func FeatureNames() []string {
	return []string{"heart_rate", "blood_oxygen"}
}

// Features returns the reading as a model feature vector.
func (r Reading) Features() []float64 {
	return []float64{float64(r.HeartRate), float64(r.BloodOxygen)}
}

// FromFeatures rebuilds a Reading from a feature vector.
func FromFeatures(features []float64) (Reading, error) {
	if len(features) != 2 {
		return Reading{}, fmt.Errorf("%w: expected 2 features, got %d", ErrInvalidReading, len(features))
	}
	hr, err := integral(features[0], "heart_rate")
	if err != nil {
		return Reading{}, err
	}
	bo, err := integral(features[1], "blood_oxygen")
	if err != nil {
		return Reading{}, err
	}
	r := Reading{HeartRate: hr, BloodOxygen: bo}
	return r, r.Validate()
}

// Validate checks the reading against the plausible ranges.
func (r Reading) Validate() error {
	if r.HeartRate < MinHeartRate || r.HeartRate > MaxHeartRate {
		return fmt.Errorf("%w: heart_rate %d outside [%d,%d]", ErrInvalidReading, r.HeartRate, MinHeartRate, MaxHeartRate)
	}
	if r.BloodOxygen < MinBloodOxygen || r.BloodOxygen > MaxBloodOxygen {
		return fmt.Errorf("%w: blood_oxygen %d outside [%d,%d]", ErrInvalidReading, r.BloodOxygen, MinBloodOxygen, MaxBloodOxygen)
	}
	return nil
}

// Matrix converts readings to the row-major feature matrix used by detectors.
func Matrix(readings []LabeledReading) [][]float64 {
	data := make([][]float64, len(readings))
	for i, r := range readings {
		data[i] = r.Features()
	}
	return data
}

// Parse builds a validated Reading from raw text fields such as CSV cells.
func Parse(heartRate, bloodOxygen string) (Reading, error) {
	hr, err := parseInt(heartRate, "heart_rate")
	if err != nil {
		return Reading{}, err
	}
	bo, err := parseInt(bloodOxygen, "blood_oxygen")
	if err != nil {
		return Reading{}, err
	}
	r := Reading{HeartRate: hr, BloodOxygen: bo}
	return r, r.Validate()
}

// rawReading keeps the literal JSON values so non-integers are rejected instead of truncated.
type rawReading struct {
	HeartRate   json.RawMessage `json:"heart_rate"`
	BloodOxygen json.RawMessage `json:"blood_oxygen"`
}

// Decode parses and validates a JSON encoded reading.
func Decode(data []byte) (Reading, error) {
	var raw rawReading
	if err := json.Unmarshal(data, &raw); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	if len(raw.HeartRate) == 0 || len(raw.BloodOxygen) == 0 {
		return Reading{}, fmt.Errorf("%w: heart_rate and blood_oxygen are required", ErrInvalidReading)
	}
	return Parse(string(raw.HeartRate), string(raw.BloodOxygen))
}

func parseInt(s, field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidReading, field, s)
	}
	return v, nil
}

func integral(f float64, field string) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s %v is not an integer", ErrInvalidReading, field, f)
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %v out of range", ErrInvalidReading, field, f)
	}
	return int(f), nil
}
