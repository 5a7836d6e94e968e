package csv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead(t *testing.T) {
	path := writeFile(t, "heart_rate,blood_oxygen,is_anomaly\n"+
		"72,98,0\n"+
		"120,96,1\n"+
		"80.5,97,0\n"+ // not an integer
		"75,140,0\n"+  // oxygen out of range
		"66,88,true\n"+
		"70,95\n")

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"heart_rate", "blood_oxygen", "is_anomaly"}, r.Headers())

	data, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []vitals.LabeledReading{
		{Reading: vitals.Reading{HeartRate: 72, BloodOxygen: 98}},
		{Reading: vitals.Reading{HeartRate: 120, BloodOxygen: 96}, IsAnomaly: true},
		{Reading: vitals.Reading{HeartRate: 66, BloodOxygen: 88}, IsAnomaly: true},
		{Reading: vitals.Reading{HeartRate: 70, BloodOxygen: 95}},
	}, data)
	assert.Equal(t, 2, r.Skipped())
}

func TestReadStrict(t *testing.T) {
	path := writeFile(t, "72,98,0\n72,abc,0\n")

	r, err := NewReader(path, WithHeader(false), WithStrict(true))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, vitals.ErrInvalidReading)
}

func TestStream(t *testing.T) {
	path := writeFile(t, "heart_rate,blood_oxygen\n72,98\nbad,row\n110,99\n")

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	ch, err := r.Stream(context.Background())
	require.NoError(t, err)

	var got []vitals.LabeledReading
	for row := range ch {
		got = append(got, row)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 110, got[1].HeartRate)
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	f, err := os.Create(path)
	require.NoError(t, err)

	records := []vitals.LabeledReading{
		{Reading: vitals.Reading{HeartRate: 61, BloodOxygen: 99}},
		{Reading: vitals.Reading{HeartRate: 44, BloodOxygen: 93}, IsAnomaly: true},
	}
	w := NewWriter(f)
	require.NoError(t, w.WriteAll(records))
	require.NoError(t, w.Close())

	r, err := NewReader(path, WithStrict(true))
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestNewReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
