// Package reader defines the statement reader collaborators: the RawRecord
// model the pipeline consumes, the Reader strategy interface, and a registry
// that picks a reader by sniffing file headers. Readers are stateless; every
// Read call is a pure function of its inputs, so reading the same file twice
// yields identical records.
package reader

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Reader is the strategy interface for all statement format readers.
type Reader interface {
	// Name returns the reader identifier (e.g. "ofx", "csv-generic").
	Name() string

	// CanRead checks whether this reader handles the file, based on its
	// path and the first bytes of content.
	CanRead(path string, header []byte) bool

	// Read parses the statement. Implementations must not retain state
	// between calls.
	Read(ctx context.Context, r io.Reader, meta Metadata) (*Statement, error)
}

// Metadata carries context about the file being read.
type Metadata struct {
	// FilePath is the statement file's path; used as the source identity
	// stamped on every record.
	FilePath string
	// Institution is the institution name supplied by the caller, used
	// when the file format does not carry one.
	Institution string
	// Currency is the fallback currency when the statement omits it.
	Currency string
}

// FormatError reports a malformed statement file. The pipeline converts it
// into a per-file failure report; one bad file never aborts the batch.
type FormatError struct {
	File string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed statement file %s: %v", e.File, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// headerSize is how many bytes FindReader sniffs. Enough for the magic
// markers and header rows of the supported financial formats.
const headerSize = 512

// Registry holds the registered readers.
type Registry struct {
	readers []Reader
}

// NewRegistry creates an empty registry. Built-in readers are registered by
// the caller to keep this package free of format dependencies.
func NewRegistry(readers ...Reader) *Registry {
	return &Registry{readers: readers}
}

// Register adds a custom reader.
func (r *Registry) Register(reader Reader) {
	r.readers = append(r.readers, reader)
}

// Names returns the identifiers of all registered readers.
func (r *Registry) Names() []string {
	names := make([]string, len(r.readers))
	for i, reader := range r.readers {
		names[i] = reader.Name()
	}
	return names
}

// FindReader returns the first reader claiming the file, sniffing up to 512
// header bytes. Files smaller than the sniff window are fine; readers see
// whatever was read.
func (r *Registry) FindReader(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	header = header[:n]

	for _, reader := range r.readers {
		if reader.CanRead(path, header) {
			return reader, nil
		}
	}
	return nil, fmt.Errorf("no reader found for file: %s", path)
}
