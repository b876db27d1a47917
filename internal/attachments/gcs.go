package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GCSStore keeps attachments as objects in a Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore connects to Cloud Storage. An empty credentialsFile uses
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (g *GCSStore) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	ref := uuid.New().String() + ext
	if !validRef(ref) {
		return "", fmt.Errorf("failed to save attachment: %w", ErrInvalidRef)
	}

	w := g.client.Bucket(g.bucket).Object(ref).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = mime.TypeByExtension(ext)
	w.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to copy attachment to GCS object %s: %w", ref, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", ref, err)
	}
	return ref, nil
}

func (g *GCSStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, ErrInvalidRef
	}
	rc, err := g.client.Bucket(g.bucket).Object(ref).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %s: %w", ref, err)
	}
	return rc, nil
}

func (g *GCSStore) Delete(ctx context.Context, ref string) error {
	if !validRef(ref) {
		return ErrInvalidRef
	}
	err := g.client.Bucket(g.bucket).Object(ref).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", ref, err)
	}
	return nil
}

// Close releases the client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}
