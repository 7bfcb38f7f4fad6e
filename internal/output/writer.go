package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirseerhq/sirseer-harvest/internal/record"
)

// Writer handles streaming NDJSON output to a file or io.Writer.
// Each record is encoded on its own line as soon as it is written.
type Writer struct {
	mu        sync.Mutex
	output    io.Writer
	encoder   *json.Encoder
	count     int
	closeFunc func() error
}

// NewWriter creates a new NDJSON writer that writes to the specified output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output:  w,
		encoder: json.NewEncoder(w),
	}
}

// NewFileWriter creates a new NDJSON writer that writes to a file.
// The caller must call Close() when done to ensure the file is properly closed.
func NewFileWriter(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &Writer{
		output:    file,
		encoder:   json.NewEncoder(file),
		closeFunc: file.Close,
	}, nil
}

// Write writes a single record as NDJSON.
func (w *Writer) Write(r record.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(r); err != nil {
		return fmt.Errorf("failed to write record %s: %w", r.ID, err)
	}

	w.count++
	return nil
}

// WriteStore writes every record in s, ordered by ID, and returns how many
// were written before any error.
func (w *Writer) WriteStore(s *record.Store) (int, error) {
	written := 0
	for _, r := range s.All() {
		if err := w.Write(r); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying writer if it's a file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closeFunc != nil {
		err := w.closeFunc()
		w.closeFunc = nil
		return err
	}
	return nil
}
