// Package io provides input/output utilities for reading datasets.
package io

import (
	"context"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Reader is the interface for reading readings from various sources.
type Reader interface {
	// Read returns the complete dataset.
	Read() ([]vitals.LabeledReading, error)

	// Stream returns a channel of readings for real-time processing.
	Stream(ctx context.Context) (<-chan vitals.LabeledReading, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing datasets.
type Writer interface {
	// Write outputs a single record.
	Write(r vitals.LabeledReading) error

	// WriteAll outputs multiple records.
	WriteAll(records []vitals.LabeledReading) error

	// Close flushes and releases resources.
	Close() error
}
