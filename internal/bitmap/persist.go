package bitmap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Persister writes edited bitmaps as PNG files with unique names into Dir.
type Persister struct {
	Dir string
}

// Persist encodes img into a new file and returns its location. A file left
// half written by a failure is removed.
func (p Persister) Persist(ctx context.Context, img image.Image) (location string, err error) {
	if img == nil {
		return "", fmt.Errorf("%w: nil bitmap", ErrPersist)
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create storage directory %s: %w", ErrPersist, p.Dir, err)
	}

	path := filepath.Join(p.Dir, uuid.NewString()+".png")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		return "", errors.Join(fmt.Errorf("%w: encode %s: %w", ErrPersist, path, err), f.Close())
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}

	log.Ctx(ctx).Debug().Str("location", path).Msg("persisted bitmap")
	return path, nil
}
