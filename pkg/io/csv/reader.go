// Package csv reads and writes reading datasets as CSV files.
//
// The column layout is heart_rate,blood_oxygen[,is_anomaly]. The label
// column is optional; unlabeled rows read back with IsAnomaly false.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	vio "github.com/hed1ad/vitalguard/pkg/io"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

var _ vio.Reader = (*Reader)(nil)

// Reader reads readings from CSV files.
type Reader struct {
	file      *os.File
	reader    *csv.Reader
	hasHeader bool
	strict    bool
	headers   []string
	skipped   int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithStrict makes Read fail on the first malformed row instead of skipping it.
func WithStrict(strict bool) Option {
	return func(r *Reader) {
		r.strict = strict
	}
}

// NewReader creates a new CSV reader.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		file:      file,
		reader:    csv.NewReader(file),
		hasHeader: true,
	}
	r.reader.FieldsPerRecord = -1

	for _, opt := range opts {
		opt(r)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			file.Close()
			return nil, err
		}
		r.headers = headers
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Skipped returns how many malformed rows were dropped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Read returns all rows.
func (r *Reader) Read() ([]vitals.LabeledReading, error) {
	var data []vitals.LabeledReading

	for line := 1; ; line++ {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row, err := parseRow(record)
		if err != nil {
			if r.strict {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
			r.skipped++
			continue
		}
		data = append(data, row)
	}

	return data, nil
}

// Stream returns a channel of rows for real-time processing.
// Malformed rows are skipped.
func (r *Reader) Stream(ctx context.Context) (<-chan vitals.LabeledReading, error) {
	out := make(chan vitals.LabeledReading, 100)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				record, err := r.reader.Read()
				if err == io.EOF {
					return
				}
				if err != nil {
					r.skipped++
					continue
				}

				row, err := parseRow(record)
				if err != nil {
					r.skipped++
					continue
				}

				select {
				case out <- row:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// parseRow converts a CSV record to a validated reading.
func parseRow(record []string) (vitals.LabeledReading, error) {
	if len(record) < 2 {
		return vitals.LabeledReading{}, errors.New("expected at least 2 columns")
	}

	reading, err := vitals.Parse(record[0], record[1])
	if err != nil {
		return vitals.LabeledReading{}, err
	}

	row := vitals.LabeledReading{Reading: reading}
	if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
		label, err := parseLabel(record[2])
		if err != nil {
			return vitals.LabeledReading{}, err
		}
		row.IsAnomaly = label
	}
	return row, nil
}

// parseLabel accepts 0/1 as well as true/false.
func parseLabel(s string) (bool, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid is_anomaly label %q", s)
	}
	return v, nil
}
