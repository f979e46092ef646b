// Package storage defines the destinations normalized rows are written to
// at the end of a run, and the CSV export that rides on a blob store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JakeFAU/vacancy-crawler/internal/storage/csvfile"
	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// RowSink persists a batch of normalized rows.
type RowSink interface {
	WriteRows(ctx context.Context, rows []vacancy.NormalizedRow) error
	Close() error
}

// BlobStore uploads an object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Export encodes rows as CSV and uploads them to a BlobStore.
type Export struct {
	store BlobStore
	path  string
	uri   string
}

// NewExport returns a RowSink writing the CSV export to path in store.
func NewExport(store BlobStore, path string) (*Export, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if path == "" {
		return nil, fmt.Errorf("export path is required")
	}
	return &Export{store: store, path: path}, nil
}

// WriteRows implements RowSink.
func (e *Export) WriteRows(ctx context.Context, rows []vacancy.NormalizedRow) error {
	var buf bytes.Buffer
	if err := csvfile.Write(&buf, rows); err != nil {
		return err
	}
	uri, err := e.store.PutObject(ctx, e.path, "text/csv", &buf)
	if err != nil {
		return fmt.Errorf("upload export: %w", err)
	}
	e.uri = uri
	return nil
}

// URI returns the location of the last successful upload.
func (e *Export) URI() string {
	return e.uri
}

// Close implements RowSink.
func (e *Export) Close() error {
	return nil
}

// Multi fans rows out to every sink. Every sink is attempted; the errors
// are joined.
type Multi []RowSink

// WriteRows implements RowSink.
func (m Multi) WriteRows(ctx context.Context, rows []vacancy.NormalizedRow) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteRows(ctx, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements RowSink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
