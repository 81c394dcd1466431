package bitmap

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
)

// Resolver turns an opaque source identifier into readable bytes.
type Resolver interface {
	Open(source string) (io.ReadCloser, error)
	// Path returns a local file path for the source, for tools that need one.
	Path(source string) (string, error)
}

// DirResolver resolves sources as slash-separated paths relative to Root.
// With an empty Root sources are plain file paths.
type DirResolver struct {
	Root string
}

func (d DirResolver) Path(source string) (string, error) {
	if d.Root == "" {
		return source, nil
	}
	name := filepath.FromSlash(source)
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrSourceUnreadable, source, d.Root)
	}
	return filepath.Join(d.Root, name), nil
}

func (d DirResolver) Open(source string) (io.ReadCloser, error) {
	path, err := d.Path(source)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	return f, nil
}

// FrameExtractor pulls a single full-size frame out of a video source.
type FrameExtractor interface {
	Frame(ctx context.Context, source string) (image.Image, error)
}
