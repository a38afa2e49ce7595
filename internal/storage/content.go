package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
)

const (
	contentScheme = "content://"

	// DerivationPreview is the derivation type of every preview artifact
	DerivationPreview = "preview"
)

// ContentStore reads sources from and writes previews to a simple-content service
type ContentStore struct {
	service  simplecontent.Service
	ownerID  uuid.UUID
	tenantID uuid.UUID
}

// ContentStoreOption configures a ContentStore
type ContentStoreOption func(*ContentStore)

// WithOwner sets the owner and tenant used for artifacts without a parent
func WithOwner(ownerID, tenantID uuid.UUID) ContentStoreOption {
	return func(cs *ContentStore) {
		cs.ownerID = ownerID
		cs.tenantID = tenantID
	}
}

// NewContentStore creates a store backed by simple-content
func NewContentStore(service simplecontent.Service, opts ...ContentStoreOption) *ContentStore {
	cs := &ContentStore{service: service}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// ContentURI formats a content ID as a store URI
func ContentURI(id string) string {
	return contentScheme + id
}

// ParseContentURI extracts the content ID from content://<uuid>
func ParseContentURI(uri string) (uuid.UUID, error) {
	if !strings.HasPrefix(uri, contentScheme) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnsupportedURI, uri)
	}
	id, err := uuid.Parse(strings.TrimPrefix(uri, contentScheme))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid content ID: %w", err)
	}
	return id, nil
}

// Put uploads a derived preview when the parent is known, a standalone
// content otherwise
func (cs *ContentStore) Put(ctx context.Context, localPath string, opts PutOptions) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	fileName := filepath.Base(localPath)
	variant := opts.Variant
	if variant == "" {
		variant = "artifact"
	}

	if parentID, err := uuid.Parse(opts.Parent); err == nil {
		derived, err := cs.service.UploadDerivedContent(ctx, simplecontent.UploadDerivedContentRequest{
			ParentID:       parentID,
			DerivationType: DerivationPreview,
			Variant:        variant,
			Reader:         f,
			FileName:       fileName,
			Tags:           []string{DerivationPreview, variant},
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload derived content: %w", err)
		}
		return ContentURI(derived.ID.String()), nil
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	content, err := cs.service.UploadContent(ctx, simplecontent.UploadContentRequest{
		OwnerID:      cs.ownerID,
		TenantID:     cs.tenantID,
		Name:         fileName,
		DocumentType: contentType,
		Reader:       f,
		FileName:     fileName,
		Tags:         []string{DerivationPreview, variant},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload content: %w", err)
	}
	return ContentURI(content.ID.String()), nil
}

// Get downloads content by URI
func (cs *ContentStore) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	id, err := ParseContentURI(uri)
	if err != nil {
		return nil, err
	}

	reader, err := cs.service.DownloadContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to download content: %w", err)
	}
	return reader, nil
}

// Head returns size and MIME type from content details
func (cs *ContentStore) Head(ctx context.Context, uri string) (*Metadata, error) {
	id, err := ParseContentURI(uri)
	if err != nil {
		return nil, err
	}

	details, err := cs.service.GetContentDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get content details: %w", err)
	}

	return &Metadata{
		Size:        details.FileSize,
		ContentType: details.MimeType,
	}, nil
}

// Owns reports whether uri is a content:// URI
func (cs *ContentStore) Owns(uri string) bool {
	return strings.HasPrefix(uri, contentScheme)
}

// HasDerived checks whether a preview variant already exists for a parent
func (cs *ContentStore) HasDerived(ctx context.Context, parentID string, variant string) (bool, error) {
	id, err := uuid.Parse(parentID)
	if err != nil {
		return false, fmt.Errorf("invalid content ID: %w", err)
	}

	derived, err := cs.service.ListDerivedContent(ctx,
		simplecontent.WithParentID(id),
		simplecontent.WithDerivationType(DerivationPreview),
	)
	if err != nil {
		return false, fmt.Errorf("failed to list derived content: %w", err)
	}

	for _, d := range derived {
		if d.Variant == variant {
			return true, nil
		}
	}
	return false, nil
}
