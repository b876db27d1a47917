// Package attachments stores uploaded images behind opaque refs. Messages of
// kind image carry a ref as their content.
package attachments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/appdevjohn/Social-Network-Backend/internal/tasks"
)

// ErrInvalidRef is returned for refs that could not have been issued by a store.
var ErrInvalidRef = errors.New("invalid attachment ref")

// Store persists attachment bytes.
type Store interface {
	// Save stores r and returns a new ref ending in ext (e.g. ".png").
	Save(ctx context.Context, ext string, r io.Reader) (string, error)

	// Open returns the stored bytes for ref.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes ref. Deleting a missing ref is not an error.
	Delete(ctx context.Context, ref string) error
}

// Releaser deletes attachments in the background once the rows that
// referenced them are gone.
type Releaser struct {
	runner *tasks.Runner
	store  Store
}

// NewReleaser creates a releaser scheduling deletes on runner.
func NewReleaser(runner *tasks.Runner, store Store) *Releaser {
	return &Releaser{runner: runner, store: store}
}

// Release schedules best-effort deletion of refs. Failures are logged by the
// runner and never reach the caller.
func (r *Releaser) Release(refs []string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		ref := ref
		r.runner.Go("attachment.delete", func(ctx context.Context) error {
			if err := r.store.Delete(ctx, ref); err != nil {
				return err
			}
			slog.Debug("Attachment released", "ref", ref)
			return nil
		})
	}
}

// URL renders ref as a client-facing URL.
func URL(prefix, ref string) string {
	if ref == "" || strings.Contains(ref, "://") {
		return ref
	}
	return prefix + ref
}

// validRef accepts a single path element with no traversal.
func validRef(ref string) bool {
	return ref != "" && ref != "." && ref != ".." &&
		!strings.ContainsAny(ref, `/\`)
}
