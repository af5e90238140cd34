// Package datalog appends raw sensor readings to a durable CSV sink.
package datalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05.000000"
)

// Header is the fixed first line of every log.
var Header = []string{"Date", "Time", "Node-Sensor-TypeData", "Value Received"}

var ErrClosed = errors.New("datalog: writer closed")

// Writer appends one CSV line per record and flushes after each.
type Writer struct {
	mu     sync.Mutex
	csv    *csv.Writer
	closer io.Closer
	count  uint64
	closed bool
}

// NewWriter writes the header to w and returns a writer appending to it.
// If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer) (*Writer, error) {
	out := &Writer{csv: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		out.closer = c
	}
	if err := out.write(Header); err != nil {
		return nil, err
	}
	return out, nil
}

// Create opens path for the lifetime of a pipeline run. An existing file is
// truncated unless appendExisting is set, in which case the header is only
// written to an empty file.
func Create(path string, appendExisting bool) (*Writer, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendExisting {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("datalog: open %s: %w", path, err)
	}
	if appendExisting {
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("datalog: stat %s: %w", path, err)
		}
		if info.Size() > 0 {
			return &Writer{csv: csv.NewWriter(f), closer: f}, nil
		}
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Record appends "date,time,key,value" for a reading received at at.
func (w *Writer) Record(key, raw string, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.writeLocked([]string{at.Format(DateLayout), at.Format(TimeLayout), key, raw}); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count is the number of records written by this writer.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.csv.Flush()
	err := w.csv.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) write(rec []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(rec)
}

func (w *Writer) writeLocked(rec []string) error {
	if err := w.csv.Write(rec); err != nil {
		return fmt.Errorf("datalog: write: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("datalog: flush: %w", err)
	}
	return nil
}
