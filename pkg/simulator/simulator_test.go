package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnomalyCount(t *testing.T) {
	assert.Equal(t, 100, AnomalyCount(1000, 0.1))
	assert.Equal(t, 500, AnomalyCount(5000, 0.1))
	assert.Equal(t, 1, AnomalyCount(14, 0.1))
	assert.Equal(t, 3, AnomalyCount(26, 0.1))
	assert.Equal(t, 0, AnomalyCount(4, 0.1))
	assert.Equal(t, 0, AnomalyCount(100, 0))
}

func TestTrainingSet(t *testing.T) {
	tests := []struct {
		name          string
		count         int
		contamination float64
	}{
		{name: "default contamination", count: 1000, contamination: DefaultContamination},
		{name: "rounding up", count: 26, contamination: 0.1},
		{name: "higher contamination", count: 400, contamination: 0.3},
		{name: "no anomalies", count: 50, contamination: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := New(7).TrainingSet(tt.count, tt.contamination)
			require.NoError(t, err)
			require.Len(t, data, tt.count)

			anomalies := 0
			for _, r := range data {
				if !r.IsAnomaly {
					assert.GreaterOrEqual(t, r.HeartRate, 60)
					assert.Less(t, r.HeartRate, 100)
					assert.GreaterOrEqual(t, r.BloodOxygen, 90)
					assert.Less(t, r.BloodOxygen, 100)
					continue
				}
				anomalies++

				heartOut := r.HeartRate < 60 || r.HeartRate >= 100
				oxygenOut := r.BloodOxygen < 90
				assert.True(t, heartOut != oxygenOut, "exactly one field perturbed: %+v", r)
				if heartOut {
					assert.True(t, (r.HeartRate >= 40 && r.HeartRate < 55) || (r.HeartRate >= 105 && r.HeartRate < 130))
				}
				if oxygenOut {
					assert.GreaterOrEqual(t, r.BloodOxygen, 85)
				}
			}
			assert.Equal(t, AnomalyCount(tt.count, tt.contamination), anomalies)
		})
	}
}

func TestTrainingSetInvalid(t *testing.T) {
	s := New(1)

	_, err := s.TrainingSet(0, 0.1)
	assert.Error(t, err)

	_, err = s.TrainingSet(10, 1)
	assert.Error(t, err)

	_, err = s.TrainingSet(10, -0.1)
	assert.Error(t, err)
}

func TestTrainingSetDeterministic(t *testing.T) {
	a, err := New(42).TrainingSet(200, 0.1)
	require.NoError(t, err)
	b, err := New(42).TrainingSet(200, 0.1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLiveReading(t *testing.T) {
	s := New(99)
	abnormal := 0
	const n = 5000

	for i := 0; i < n; i++ {
		r := s.LiveReading()
		require.NoError(t, r.Validate())

		normalHeart := r.HeartRate >= 65 && r.HeartRate < 95
		normalOxygen := r.BloodOxygen >= 95 && r.BloodOxygen < 100
		if normalHeart && normalOxygen {
			continue
		}
		abnormal++

		if !normalHeart {
			assert.True(t, (r.HeartRate >= 45 && r.HeartRate < 55) || (r.HeartRate >= 105 && r.HeartRate < 120))
			assert.True(t, normalOxygen, "heart excursion keeps oxygen normal: %+v", r)
		} else {
			assert.GreaterOrEqual(t, r.BloodOxygen, 85)
			assert.Less(t, r.BloodOxygen, 93)
		}
	}

	// roughly one in ten
	assert.InDelta(t, 0.1, float64(abnormal)/n, 0.03)
}

func TestConcurrentUse(t *testing.T) {
	s := New(3)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = s.LiveReading()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
