package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	vio "github.com/hed1ad/vitalguard/pkg/io"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

var _ vio.Writer = (*Writer)(nil)

// Header is the column layout written by Writer.
var Header = []string{"heart_rate", "blood_oxygen", "is_anomaly"}

// Writer writes labeled readings as CSV.
type Writer struct {
	w           *csv.Writer
	closer      io.Closer
	wroteHeader bool
}

// NewWriter wraps w. If w is an io.Closer, Close closes it after flushing.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// Write outputs one record, preceded by the header on first use.
func (w *Writer) Write(r vitals.LabeledReading) error {
	if !w.wroteHeader {
		if err := w.w.Write(Header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	label := "0"
	if r.IsAnomaly {
		label = "1"
	}
	return w.w.Write([]string{
		strconv.Itoa(r.HeartRate),
		strconv.Itoa(r.BloodOxygen),
		label,
	})
}

// WriteAll outputs all records.
func (w *Writer) WriteAll(records []vitals.LabeledReading) error {
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered rows.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
