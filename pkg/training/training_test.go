package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/vitalguard/pkg/evaluate"
	"github.com/hed1ad/vitalguard/pkg/simulator"
)

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Records = 1500
	opts.Trees = 50
	return opts
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{name: "too few records", modify: func(o *Options) { o.Records = 1 }},
		{name: "zero contamination", modify: func(o *Options) { o.Contamination = 0 }},
		{name: "contamination too high", modify: func(o *Options) { o.Contamination = 0.6 }},
		{name: "test fraction one", modify: func(o *Options) { o.TestFraction = 1 }},
		{name: "no trees", modify: func(o *Options) { o.Trees = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			assert.Error(t, opts.Validate())

			_, err := Run(opts, nil)
			assert.Error(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	opts := smallOptions()
	res, err := Run(opts, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Model)
	assert.Len(t, res.Dataset, opts.Records)
	assert.Equal(t, opts.Trees, res.Model.Trees())

	anomaly := res.Report.Classes[evaluate.Anomaly]
	assert.Equal(t, 300, res.Report.Confusion[0][0]+res.Report.Confusion[0][1]+res.Report.Confusion[1][0]+res.Report.Confusion[1][1])
	assert.Greater(t, anomaly.Precision, 0.10)
	assert.Greater(t, anomaly.Recall, 0.10)
}

func TestRunIsReproducible(t *testing.T) {
	opts := smallOptions()
	a, err := Run(opts, nil)
	require.NoError(t, err)
	b, err := Run(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Model.Threshold(), b.Model.Threshold())
	assert.Equal(t, a.Report, b.Report)

	probe := simulator.New(5)
	for i := 0; i < 50; i++ {
		features := probe.LiveReading().Features()
		ca, err := a.Model.Classify(features)
		require.NoError(t, err)
		cb, err := b.Model.Classify(features)
		require.NoError(t, err)
		assert.Equal(t, ca, cb)
	}
}
