package bitmap

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"pickcrop/internal/media"
)

// Loaded is a bitmap prepared for display together with the size of the
// source it was decoded from.
type Loaded struct {
	Bitmap   image.Image
	Original Dimensions
}

// Decoder synchronously decodes sources into display-sized bitmaps.
type Decoder struct {
	Resolver Resolver
	Frames   FrameExtractor
}

// Load decodes source so that it fits within w x h. The source is read twice:
// once for its dimensions, then fully at a power-of-two reduction.
func (d *Decoder) Load(ctx context.Context, source string, w, h int) (Loaded, error) {
	if err := checkTarget(w, h); err != nil {
		return Loaded{}, err
	}
	original, err := d.dimensions(source)
	if err != nil {
		return Loaded{}, err
	}
	factor := sampleSize(original, w, h)

	rc, err := d.Resolver.Open(source)
	if err != nil {
		return Loaded{}, err
	}
	defer rc.Close()

	img, err := decodeSampled(rc, factor, w, h)
	if err != nil {
		return Loaded{}, fmt.Errorf("%s: %w", source, err)
	}
	log.Ctx(ctx).Debug().
		Str("source", source).
		Int("sample", factor).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("decoded bitmap")
	return Loaded{Bitmap: img, Original: original}, nil
}

// Thumbnail extracts a frame of a video source and scales it to fit w x h.
// Sources that are not videos fail with ErrUnsupportedMediaOperation.
func (d *Decoder) Thumbnail(ctx context.Context, source string, w, h int) (Loaded, error) {
	if err := checkTarget(w, h); err != nil {
		return Loaded{}, err
	}
	kind, err := d.mediaType(source)
	if err != nil {
		return Loaded{}, err
	}
	if kind != media.Video {
		return Loaded{}, fmt.Errorf("%w: thumbnail of non-video %s", ErrUnsupportedMediaOperation, source)
	}
	if d.Frames == nil {
		return Loaded{}, fmt.Errorf("%w: no frame extractor configured", ErrUnsupportedMediaOperation)
	}

	frame, err := d.Frames.Frame(ctx, source)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{Bitmap: Fit(frame, w, h), Original: dimensionsOf(frame)}, nil
}

func checkTarget(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: invalid target size %dx%d", ErrDecode, w, h)
	}
	return nil
}

func (d *Decoder) dimensions(source string) (Dimensions, error) {
	rc, err := d.Resolver.Open(source)
	if err != nil {
		return Dimensions{}, err
	}
	defer rc.Close()

	dims, err := ReadDimensions(rc)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%s: %w", source, err)
	}
	return dims, nil
}

func (d *Decoder) mediaType(source string) (media.Type, error) {
	rc, err := d.Resolver.Open(source)
	if err != nil {
		return media.Unknown, err
	}
	defer rc.Close()

	kind, _, err := media.Detect(rc)
	if err != nil {
		return media.Unknown, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	return kind, nil
}
