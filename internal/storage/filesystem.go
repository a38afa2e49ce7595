package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileScheme = "file://"

// FilesystemStorage stores artifacts under a local base directory
type FilesystemStorage struct {
	baseDir string
	now     func() time.Time
}

// NewFilesystemStorage creates a new filesystem store
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	// Ensure base directory exists
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FilesystemStorage{
		baseDir: abs,
		now:     time.Now,
	}, nil
}

// Put copies a local file into the store and returns its file:// URI
func (fs *FilesystemStorage) Put(ctx context.Context, localPath string, opts PutOptions) (string, error) {
	key := objectKey(fs.now(), localPath)
	dest := filepath.Join(fs.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return fileScheme + dest, nil
}

// Get returns a reader for the file at uri
func (fs *FilesystemStorage) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	path, err := fs.resolve(uri)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Head returns metadata for the file at uri
func (fs *FilesystemStorage) Head(ctx context.Context, uri string) (*Metadata, error) {
	path, err := fs.resolve(uri)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &Metadata{
		Size:        info.Size(),
		ContentType: detectContentType(path),
	}, nil
}

// Owns reports whether uri is a file:// URI inside the base directory
func (fs *FilesystemStorage) Owns(uri string) bool {
	_, err := fs.resolve(uri)
	return err == nil
}

func (fs *FilesystemStorage) resolve(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileScheme) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURI, uri)
	}
	path := filepath.Clean(strings.TrimPrefix(uri, fileScheme))

	// Security: prevent directory traversal
	rel, err := filepath.Rel(fs.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key: path traversal detected")
	}
	return path, nil
}
