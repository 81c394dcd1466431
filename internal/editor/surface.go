// Package editor holds the editing surface of a single source and the result
// set collected across sources.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"pickcrop/internal/bitmap"
	"pickcrop/internal/crop"
	"pickcrop/internal/media"
)

// ErrNotLoaded is returned by operations that need a bitmap before one arrived.
var ErrNotLoaded = errors.New("no bitmap loaded")

// Loader delivers display bitmaps asynchronously. *bitmap.Pipeline is the
// production Loader.
type Loader interface {
	Load(ctx context.Context, source string, w, h int) *bitmap.Future[bitmap.Loaded]
	Thumbnail(ctx context.Context, source string, w, h int) *bitmap.Future[bitmap.Loaded]
}

// Finalized is the outcome of an editing session.
type Finalized struct {
	Rotation crop.Angle
	Points   crop.Points
	Bitmap   image.Image
	// Cropped is false when the overlay still covers the whole bitmap.
	Cropped bool
}

// Surface owns the displayed bitmap, its rotation and the crop overlay of one
// source. It is not safe for concurrent use: all calls must come from the
// goroutine that owns the session.
type Surface struct {
	loader Loader

	source string
	kind   media.Type
	view   image.Point

	bitmap   image.Image
	original bitmap.Dimensions
	bounds   image.Rectangle
	rotation crop.Angle

	model   crop.Model
	router  crop.Router
	locked  bool
	pending *bitmap.Future[bitmap.Loaded]
}

// NewSurface returns an empty surface that loads bitmaps through loader.
func NewSurface(loader Loader) *Surface {
	return &Surface{loader: loader}
}

// SetSource starts editing source. Videos are edited through a thumbnail.
// Loading starts as soon as the view has a size.
func (s *Surface) SetSource(ctx context.Context, source string, kind media.Type) {
	s.source = source
	s.kind = kind
	s.bitmap = nil
	s.rotation = 0
	s.router.Release()
	s.request(ctx)
}

// Resize sets the view size and reloads the bitmap to fit it.
func (s *Surface) Resize(ctx context.Context, w, h int) {
	s.view = image.Pt(w, h)
	s.request(ctx)
}

func (s *Surface) request(ctx context.Context) {
	if s.source == "" || s.view.X <= 0 || s.view.Y <= 0 {
		return
	}
	if s.kind == media.Video {
		s.pending = s.loader.Thumbnail(ctx, s.source, s.view.X, s.view.Y)
	} else {
		s.pending = s.loader.Load(ctx, s.source, s.view.X, s.view.Y)
	}
}

// Loading reports whether a requested bitmap has not been applied yet.
func (s *Surface) Loading() bool {
	return s.pending != nil
}

// Poll applies a finished load without blocking. It reports whether the
// surface changed. A failed load is returned once and leaves the surface as it was.
func (s *Surface) Poll(ctx context.Context) (bool, error) {
	if s.pending == nil || !s.pending.Ready() {
		return false, nil
	}
	l, err := s.pending.Result()
	s.pending = nil
	if err != nil {
		return false, fmt.Errorf("load %s: %w", s.source, err)
	}
	s.apply(ctx, l)
	return true, nil
}

// Await blocks until the pending load finishes and applies it.
func (s *Surface) Await(ctx context.Context) error {
	if s.pending == nil {
		return nil
	}
	if _, err := s.pending.Await(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	_, err := s.Poll(ctx)
	return err
}

func (s *Surface) apply(ctx context.Context, l bitmap.Loaded) {
	s.bitmap = l.Bitmap
	s.original = l.Original
	if s.rotation != 0 {
		s.bitmap = s.rotate(s.bitmap, s.rotation)
	}
	s.layout()
	log.Ctx(ctx).Debug().
		Str("source", s.source).
		Int("rotation", int(s.rotation)).
		Stringer("bounds", s.bounds).
		Msg("bitmap applied")
}

// layout centres the bitmap in the view and resets the overlay to cover it.
func (s *Surface) layout() {
	b := s.bitmap.Bounds()
	left := (s.view.X - b.Dx()) / 2
	top := (s.view.Y - b.Dy()) / 2
	s.bounds = image.Rect(left, top, left+b.Dx(), top+b.Dy())
	s.model.SetImageBounds(s.bounds)
	s.router.Release()
}

// Rotate turns the image a quarter turn clockwise and resets the overlay.
func (s *Surface) Rotate() error {
	if s.kind == media.Video {
		return fmt.Errorf("%w: rotate video %s", bitmap.ErrUnsupportedMediaOperation, s.source)
	}
	if s.bitmap == nil {
		return ErrNotLoaded
	}
	s.rotation = s.rotation.Next()
	s.bitmap = s.rotate(s.bitmap, 90)
	s.layout()
	return nil
}

// rotate turns img clockwise by a and shrinks the result to fit the view.
func (s *Surface) rotate(img image.Image, a crop.Angle) image.Image {
	switch a {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}
	return bitmap.Fit(img, s.view.X, s.view.Y)
}

// HandlePointer routes one pointer event to the overlay and reports whether
// the overlay changed.
func (s *Surface) HandlePointer(ev crop.Event) bool {
	if s.bitmap == nil {
		return false
	}
	return s.router.Handle(ev, &s.model, s.locked)
}

// Gesture returns the region captured by the gesture in progress.
func (s *Surface) Gesture() crop.Region {
	return s.router.Gesture().Region
}

// SetAspectRatioLocked toggles the aspect-ratio lock for later gestures.
func (s *Surface) SetAspectRatioLocked(locked bool) {
	s.locked = locked
}

func (s *Surface) AspectRatioLocked() bool { return s.locked }
func (s *Surface) Source() string          { return s.source }
func (s *Surface) Kind() media.Type        { return s.kind }
func (s *Surface) Rotation() crop.Angle    { return s.rotation }
func (s *Surface) Bitmap() image.Image     { return s.bitmap }
func (s *Surface) Bounds() image.Rectangle { return s.bounds }
func (s *Surface) Overlay() image.Rectangle {
	return s.model.Overlay()
}

// Original returns the dimensions of the source as decoded, before rotation.
func (s *Surface) Original() bitmap.Dimensions {
	return s.original
}

// Mapping returns the conversion between the overlay and source pixels.
func (s *Surface) Mapping() crop.Mapping {
	m := crop.Mapping{
		Bounds:        s.bounds,
		OriginalWidth: s.original.Width,
		Rotation:      s.rotation,
	}
	if s.bitmap != nil {
		m.Displayed = s.bitmap.Bounds().Size()
	}
	return m
}

// CropPoints returns the overlay in source pixels.
func (s *Surface) CropPoints() crop.Points {
	return s.Mapping().ToSource(s.model.Overlay())
}

// ResultBitmap returns the overlay's extent of the displayed bitmap. When the
// overlay covers the whole bitmap the bitmap itself is returned.
func (s *Surface) ResultBitmap() (image.Image, bool) {
	o := s.model.Overlay()
	b := s.bitmap.Bounds()
	if o.Dx() == b.Dx() && o.Dy() == b.Dy() {
		return s.bitmap, false
	}
	return imaging.Crop(s.bitmap, o.Sub(s.bounds.Min).Add(b.Min)), true
}

// Finalize returns the rotation, crop points and result bitmap of the session.
func (s *Surface) Finalize() (Finalized, error) {
	if s.bitmap == nil {
		return Finalized{}, ErrNotLoaded
	}
	img, cropped := s.ResultBitmap()
	return Finalized{
		Rotation: s.rotation,
		Points:   s.CropPoints(),
		Bitmap:   img,
		Cropped:  cropped,
	}, nil
}
