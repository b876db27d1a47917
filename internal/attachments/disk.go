package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DiskStore keeps attachments as files in one directory.
type DiskStore struct {
	dir string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory files are written to.
func (d *DiskStore) Dir() string { return d.dir }

func (d *DiskStore) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	ref := uuid.New().String() + ext
	if !validRef(ref) {
		return "", fmt.Errorf("failed to save attachment: %w", ErrInvalidRef)
	}

	path := filepath.Join(d.dir, ref)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close attachment: %w", err)
	}
	return ref, nil
}

func (d *DiskStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, ErrInvalidRef
	}
	f, err := os.Open(filepath.Join(d.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return f, nil
}

func (d *DiskStore) Delete(ctx context.Context, ref string) error {
	if !validRef(ref) {
		return ErrInvalidRef
	}
	err := os.Remove(filepath.Join(d.dir, ref))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}
