// Package simulator produces synthetic wearable readings for training and live scoring.
package simulator

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// DefaultContamination is the share of injected anomalies in training data.
const DefaultContamination = 0.1

// Half-open [min,max) integer ranges used by the generators.
type span struct{ min, max int }

var (
	trainHeartRate   = span{60, 100}
	trainBloodOxygen = span{90, 100}
	trainLowHeart    = span{40, 55}
	trainHighHeart   = span{105, 130}
	trainLowOxygen   = span{85, 90}

	liveHeartRate   = span{65, 95}
	liveBloodOxygen = span{95, 100}
	liveLowHeart    = span{45, 55}
	liveHighHeart   = span{105, 120}
	liveLowOxygen   = span{85, 93}
)

// Simulator generates readings from a seeded random source.
// It is safe for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Simulator. A zero seed picks a time based one.
func New(seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// AnomalyCount returns how many anomalies a training set of count records receives.
func AnomalyCount(count int, contamination float64) int {
	return int(math.Round(float64(count) * contamination))
}

// TrainingSet generates count labeled readings with exactly
// AnomalyCount(count, contamination) anomalies at distinct positions.
func (s *Simulator) TrainingSet(count int, contamination float64) ([]vitals.LabeledReading, error) {
	if count <= 0 {
		return nil, errors.New("record count must be positive")
	}
	if contamination < 0 || contamination >= 1 {
		return nil, errors.New("contamination must be in [0, 1)")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]vitals.LabeledReading, count)
	for i := range data {
		data[i].HeartRate = s.draw(trainHeartRate)
		data[i].BloodOxygen = s.draw(trainBloodOxygen)
	}

	for _, i := range s.rng.Perm(count)[:AnomalyCount(count, contamination)] {
		data[i].IsAnomaly = true
		if s.rng.Float64() > 0.5 {
			data[i].HeartRate = s.heartExcursion(trainLowHeart, trainHighHeart)
		} else {
			data[i].BloodOxygen = s.draw(trainLowOxygen)
		}
	}

	return data, nil
}

// LiveReading simulates one unlabeled sample from the device.
func (s *Simulator) LiveReading() vitals.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() > 0.1 {
		return vitals.Reading{
			HeartRate:   s.draw(liveHeartRate),
			BloodOxygen: s.draw(liveBloodOxygen),
		}
	}
	if s.rng.Float64() > 0.5 {
		return vitals.Reading{
			HeartRate:   s.heartExcursion(liveLowHeart, liveHighHeart),
			BloodOxygen: s.draw(liveBloodOxygen),
		}
	}
	return vitals.Reading{
		HeartRate:   s.draw(liveHeartRate),
		BloodOxygen: s.draw(liveLowOxygen),
	}
}

func (s *Simulator) draw(r span) int {
	return r.min + s.rng.Intn(r.max-r.min)
}

// heartExcursion picks the low or high band with equal chance.
func (s *Simulator) heartExcursion(low, high span) int {
	if s.rng.Intn(2) == 0 {
		return s.draw(low)
	}
	return s.draw(high)
}
