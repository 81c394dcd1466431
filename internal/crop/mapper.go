package crop

import (
	"encoding/json"
	"fmt"
	"image"
)

// Angle is a clockwise rotation in degrees, always one of 0, 90, 180 or 270.
type Angle int

// Next returns the angle advanced by a quarter turn.
func (a Angle) Next() Angle {
	return (a + 90) % 360
}

// Valid reports whether a is a multiple of 90 in [0, 360).
func (a Angle) Valid() bool {
	return a >= 0 && a < 360 && a%90 == 0
}

// Quarter reports whether the angle swaps width and height.
func (a Angle) Quarter() bool {
	return a%180 != 0
}

// Points is the crop diagonal: Point1 is the top-left corner and Point2 the
// bottom-right corner.
type Points struct {
	Point1 image.Point
	Point2 image.Point
}

// Rect returns the rectangle spanned by the two points.
func (p Points) Rect() image.Rectangle {
	return image.Rectangle{Min: p.Point1, Max: p.Point2}
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type pointsJSON struct {
	Point1 point `json:"point1"`
	Point2 point `json:"point2"`
}

func (p Points) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointsJSON{
		Point1: point{p.Point1.X, p.Point1.Y},
		Point2: point{p.Point2.X, p.Point2.Y},
	})
}

func (p *Points) UnmarshalJSON(data []byte) error {
	var v pointsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to unmarshal crop points: %w", err)
	}
	p.Point1 = image.Pt(v.Point1.X, v.Point1.Y)
	p.Point2 = image.Pt(v.Point2.X, v.Point2.Y)
	return nil
}

func (p Points) String() string {
	return fmt.Sprintf("crop(%d,%d-%d,%d)", p.Point1.X, p.Point1.Y, p.Point2.X, p.Point2.Y)
}

// Mapping converts between the overlay's view space and the source image's
// pixel space. Displayed is the size of the bitmap on screen, already rotated.
type Mapping struct {
	Bounds        image.Rectangle
	Displayed     image.Point
	OriginalWidth int
	Rotation      Angle
}

// Ratio is the number of source pixels per displayed pixel. Under a quarter
// turn the source width lies along the displayed height.
func (m Mapping) Ratio() float64 {
	displayed := m.Displayed.X
	if m.Rotation.Quarter() {
		displayed = m.Displayed.Y
	}
	if displayed <= 0 {
		return 0
	}
	return float64(m.OriginalWidth) / float64(displayed)
}

// ToSource maps an overlay rectangle to crop points, truncating toward zero.
func (m Mapping) ToSource(r image.Rectangle) Points {
	ratio := m.Ratio()
	return Points{
		Point1: m.scale(r.Min.Sub(m.Bounds.Min), ratio),
		Point2: m.scale(r.Max.Sub(m.Bounds.Min), ratio),
	}
}

// ToView maps crop points back onto the overlay, truncating toward zero.
func (m Mapping) ToView(p Points) image.Rectangle {
	ratio := m.Ratio()
	if ratio == 0 {
		return image.Rectangle{Min: m.Bounds.Min, Max: m.Bounds.Min}
	}
	return image.Rectangle{
		Min: m.unscale(p.Point1, ratio).Add(m.Bounds.Min),
		Max: m.unscale(p.Point2, ratio).Add(m.Bounds.Min),
	}
}

func (m Mapping) scale(p image.Point, ratio float64) image.Point {
	return image.Pt(int(float64(p.X)*ratio), int(float64(p.Y)*ratio))
}

func (m Mapping) unscale(p image.Point, ratio float64) image.Point {
	return image.Pt(int(float64(p.X)/ratio), int(float64(p.Y)/ratio))
}
