package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrUnsupportedURI is returned when no store owns a URI
	ErrUnsupportedURI = errors.New("unsupported storage uri")
)

// ObjectStore persists preview artifacts and serves job sources
type ObjectStore interface {
	// Put uploads a local file and returns the URI callers use to fetch it
	Put(ctx context.Context, localPath string, opts PutOptions) (string, error)

	// Get returns a reader for the object at uri
	Get(ctx context.Context, uri string) (io.ReadCloser, error)

	// Head returns metadata for the object at uri
	Head(ctx context.Context, uri string) (*Metadata, error)

	// Owns reports whether uri addresses this store
	Owns(uri string) bool
}

// PutOptions describe an uploaded artifact
type PutOptions struct {
	// Parent is the source content ID, when the source lives in a content store
	Parent string

	// Variant names the artifact: thumbnail, image, pdf or converted_video
	Variant string

	// ContentType overrides detection
	ContentType string
}

// Metadata contains storage object metadata
type Metadata struct {
	Size        int64
	ContentType string
	ETag        string
}

// DerivedChecker is implemented by stores that can tell whether previews
// were already generated for a source.
type DerivedChecker interface {
	HasDerived(ctx context.Context, parentID string, variant string) (bool, error)
}

// Mux routes reads to the store owning a URI and writes to its primary store
type Mux struct {
	primary ObjectStore
	stores  []ObjectStore
}

// NewMux creates a mux. The primary store receives every Put.
func NewMux(primary ObjectStore, others ...ObjectStore) *Mux {
	return &Mux{
		primary: primary,
		stores:  append([]ObjectStore{primary}, others...),
	}
}

// Put uploads to the primary store
func (m *Mux) Put(ctx context.Context, localPath string, opts PutOptions) (string, error) {
	return m.primary.Put(ctx, localPath, opts)
}

// Get reads from the owning store
func (m *Mux) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	s, err := m.route(uri)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, uri)
}

// Head reads metadata from the owning store
func (m *Mux) Head(ctx context.Context, uri string) (*Metadata, error) {
	s, err := m.route(uri)
	if err != nil {
		return nil, err
	}
	return s.Head(ctx, uri)
}

// Owns reports whether any store owns uri
func (m *Mux) Owns(uri string) bool {
	_, err := m.route(uri)
	return err == nil
}

// HasDerived delegates to the primary store when it supports the check
func (m *Mux) HasDerived(ctx context.Context, parentID string, variant string) (bool, error) {
	if dc, ok := m.primary.(DerivedChecker); ok {
		return dc.HasDerived(ctx, parentID, variant)
	}
	return false, nil
}

func (m *Mux) route(uri string) (ObjectStore, error) {
	for _, s := range m.stores {
		if s.Owns(uri) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedURI, uri)
}

// objectKey builds a time-partitioned key: Y/M/D/H/Min/<short id>/<filename>
func objectKey(now time.Time, filename string) string {
	shortID := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("%d/%d/%d/%d/%d/%s/%s",
		now.Year(),
		int(now.Month()),
		now.Day(),
		now.Hour(),
		now.Minute(),
		shortID,
		filepath.Base(filename),
	)
}

// detectContentType sniffs the MIME type of a local file
func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}
