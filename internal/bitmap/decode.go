package bitmap

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions is a width and height in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point returns the dimensions as an image.Point.
func (d Dimensions) Point() image.Point {
	return image.Pt(d.Width, d.Height)
}

func dimensionsOf(img image.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{Width: b.Dx(), Height: b.Dy()}
}

// ReadDimensions decodes only the header of an image and returns its size as
// displayed, i.e. with width and height swapped when the EXIF orientation
// turns the image on its side.
func ReadDimensions(r io.Reader) (Dimensions, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	d := Dimensions{Width: cfg.Width, Height: cfg.Height}
	if orientation(io.MultiReader(&head, r)) >= 5 {
		d.Width, d.Height = d.Height, d.Width
	}
	return d, nil
}

// orientation returns the EXIF orientation tag, or 0 when there is none.
func orientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

// sampleSize returns the largest power of two that keeps both halved
// dimensions at or above the requested size.
func sampleSize(d Dimensions, reqW, reqH int) int {
	size := 1
	if reqW <= 0 || reqH <= 0 {
		return size
	}
	if d.Height > reqH || d.Width > reqW {
		halfH := d.Height / 2
		halfW := d.Width / 2
		for halfH/size >= reqH && halfW/size >= reqW {
			size *= 2
		}
	}
	return size
}

// decodeSampled decodes r, reduces it by factor and then scales it down to fit
// reqW x reqH, preserving the aspect ratio.
func decodeSampled(r io.Reader, factor, reqW, reqH int) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if factor > 1 {
		img = subsample(img, factor)
	}
	return Fit(img, reqW, reqH), nil
}

// subsample keeps every factor-th pixel on both axes.
func subsample(img image.Image, factor int) image.Image {
	b := img.Bounds()
	w, h := max(b.Dx()/factor, 1), max(b.Dy()/factor, 1)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Fit shrinks img so that it fits reqW x reqH, preserving the aspect ratio.
// It never enlarges and returns img itself when it already fits.
func Fit(img image.Image, reqW, reqH int) image.Image {
	if reqW <= 0 || reqH <= 0 {
		return img
	}
	b := img.Bounds()
	scale := max(float64(b.Dx())/float64(reqW), float64(b.Dy())/float64(reqH))
	if scale <= 1 {
		return img
	}
	w := max(int(float64(b.Dx())/scale), 1)
	h := max(int(float64(b.Dy())/scale), 1)
	return imaging.Resize(img, w, h, imaging.NearestNeighbor)
}
