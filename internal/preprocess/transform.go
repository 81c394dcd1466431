// Package preprocess applies committed edits to full resolution sources.
package preprocess

import (
	"context"
	"crypto/md5"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"pickcrop/internal/crop"
)

// Edit is a rotation followed by an optional crop, in the rotated frame.
type Edit struct {
	Rotation crop.Angle
	Points   *crop.Points
}

// Empty reports whether the edit leaves the source unchanged.
func (e Edit) Empty() bool {
	return e.Rotation == 0 && e.Points == nil
}

func (e Edit) String() string {
	s := fmt.Sprintf("rotate(%d)", e.Rotation)
	if e.Points != nil {
		s += e.Points.String()
	}
	return s
}

// ID is a stable short name for the edit, used in output file names.
func (e Edit) ID() string {
	sum := md5.Sum([]byte(e.String()))
	return fmt.Sprintf("%x", sum[:6])
}

// Transformer applies an edit to an encoded image.
type Transformer interface {
	Transform(ctx context.Context, r io.Reader, w io.Writer, edit Edit) error
}

// ImagingTransformer implements Transformer with the imaging library and
// writes JPEG output.
type ImagingTransformer struct {
	Quality int
}

// NewImagingTransformer returns a transformer writing JPEGs at quality 90.
func NewImagingTransformer() *ImagingTransformer {
	return &ImagingTransformer{Quality: 90}
}

// Transform reads an image from r, rotates it clockwise, crops it to the
// edit's points and writes the result to w.
func (t *ImagingTransformer) Transform(ctx context.Context, r io.Reader, w io.Writer, edit Edit) error {
	if !edit.Rotation.Valid() {
		return fmt.Errorf("invalid rotation angle %d", edit.Rotation)
	}

	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	var img image.Image = src
	switch edit.Rotation {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	if edit.Points != nil {
		bounds := img.Bounds()
		cropRect := edit.Points.Rect().Canon()
		if cropRect.Dx() <= 0 || cropRect.Dy() <= 0 {
			return fmt.Errorf("invalid crop dimensions: width=%d, height=%d", cropRect.Dx(), cropRect.Dy())
		}
		if !cropRect.In(bounds) {
			log.Ctx(ctx).Debug().
				Stringer("crop", cropRect).
				Stringer("bounds", bounds).
				Msg("clamping crop to image bounds")
			cropRect = cropRect.Intersect(bounds)
			if cropRect.Empty() {
				return fmt.Errorf("crop rectangle is outside image bounds")
			}
		}
		img = imaging.Crop(img, cropRect)
	}

	quality := t.Quality
	if quality <= 0 {
		quality = 90
	}
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}
