package crop

import (
	"fmt"
	"image"
	"math"
)

const (
	// gestureRegion is the fraction of the overlay span added around an edge for hit testing.
	gestureRegion = 0.25
	// MinGestureRegion is the smallest hit-testing margin, in view pixels.
	MinGestureRegion = 30
)

// Region identifies the part of the overlay a gesture started in.
type Region int

const (
	RegionNone Region = iota
	RegionLeft
	RegionTopLeft
	RegionTop
	RegionTopRight
	RegionRight
	RegionBottomRight
	RegionBottom
	RegionBottomLeft
	RegionInterior
)

var regionNames = [...]string{
	RegionNone:        "none",
	RegionLeft:        "left",
	RegionTopLeft:     "top-left",
	RegionTop:         "top",
	RegionTopRight:    "top-right",
	RegionRight:       "right",
	RegionBottomRight: "bottom-right",
	RegionBottom:      "bottom",
	RegionBottomLeft:  "bottom-left",
	RegionInterior:    "interior",
}

func (r Region) String() string {
	if r >= 0 && int(r) < len(regionNames) {
		return regionNames[r]
	}
	return fmt.Sprintf("region(%d)", int(r))
}

func (r Region) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

type hitFunc func(o image.Rectangle, mx, my int) image.Rectangle

type resizeFunc func(st State, ratio float64, dx, dy int) image.Rectangle

type handler struct {
	region Region
	hit    hitFunc
	resize resizeFunc
}

// chain lists the handlers in the order a down event is offered to them.
// Corners sit between sides and the interior so they win over both.
var chain = [...]handler{
	{RegionLeft, hitLeft, resizeSide(-1, 0)},
	{RegionTopLeft, hitCorner(-1, -1), resizeCorner(-1, -1)},
	{RegionTop, hitTop, resizeSide(0, -1)},
	{RegionTopRight, hitCorner(1, -1), resizeCorner(1, -1)},
	{RegionRight, hitRight, resizeSide(1, 0)},
	{RegionBottomRight, hitCorner(1, 1), resizeCorner(1, 1)},
	{RegionBottom, hitBottom, resizeSide(0, 1)},
	{RegionBottomLeft, hitCorner(-1, 1), resizeCorner(-1, 1)},
	{RegionInterior, hitInterior, drag},
}

func handlerFor(r Region) handler {
	for _, h := range chain {
		if h.region == r {
			return h
		}
	}
	panic(fmt.Sprintf("crop: no handler for %s", r))
}

func gestureMargins(o image.Rectangle) (mx, my int) {
	mx = max(int(gestureRegion*float64(o.Dx())), MinGestureRegion)
	my = max(int(gestureRegion*float64(o.Dy())), MinGestureRegion)
	return mx, my
}

// rect builds a rectangle without canonicalizing it, so a band that collapsed
// on a small overlay stays empty instead of being flipped.
func rect(left, top, right, bottom int) image.Rectangle {
	return image.Rectangle{Min: image.Pt(left, top), Max: image.Pt(right, bottom)}
}

func hitLeft(o image.Rectangle, mx, my int) image.Rectangle {
	return rect(o.Min.X-mx, o.Min.Y+my, o.Min.X+mx, o.Max.Y-my)
}

func hitTop(o image.Rectangle, mx, my int) image.Rectangle {
	return rect(o.Min.X+mx, o.Min.Y-my, o.Max.X-mx, o.Min.Y+my)
}

func hitRight(o image.Rectangle, mx, my int) image.Rectangle {
	return rect(o.Max.X-mx, o.Min.Y+my, o.Max.X+mx, o.Max.Y-my)
}

func hitBottom(o image.Rectangle, mx, my int) image.Rectangle {
	return rect(o.Min.X+mx, o.Max.Y-my, o.Max.X-mx, o.Max.Y+my)
}

// hitCorner returns the hit test for the corner at (sx, sy), where -1 picks the
// left/top edge and 1 the right/bottom edge.
func hitCorner(sx, sy int) hitFunc {
	return func(o image.Rectangle, mx, my int) image.Rectangle {
		x, y := o.Min.X, o.Min.Y
		if sx > 0 {
			x = o.Max.X
		}
		if sy > 0 {
			y = o.Max.Y
		}
		return rect(x-mx, y-my, x+mx, y+my)
	}
}

func hitInterior(o image.Rectangle, mx, my int) image.Rectangle {
	return rect(o.Min.X+mx, o.Min.Y+my, o.Max.X-mx, o.Max.Y-my)
}

func heightFor(width int, ratio float64) int {
	return int(math.Round(float64(width) / ratio))
}

func widthFor(height int, ratio float64) int {
	return int(math.Round(float64(height) * ratio))
}

// resizeSide moves one edge. sx or sy selects the edge (-1 left/top, 1 right/bottom).
// With the aspect ratio locked the size change on the other axis is split
// evenly between the two perpendicular edges.
func resizeSide(sx, sy int) resizeFunc {
	return func(st State, ratio float64, dx, dy int) image.Rectangle {
		o := st.Overlay
		r := o
		switch {
		case sx != 0:
			grow := sx * dx
			if sx < 0 {
				r.Min.X -= grow
			} else {
				r.Max.X += grow
			}
			if st.Locked && ratio > 0 {
				dh := heightFor(o.Dx()+grow, ratio) - o.Dy()
				r.Min.Y -= dh / 2
				r.Max.Y += dh - dh/2
			}
		case sy != 0:
			grow := sy * dy
			if sy < 0 {
				r.Min.Y -= grow
			} else {
				r.Max.Y += grow
			}
			if st.Locked && ratio > 0 {
				dw := widthFor(o.Dy()+grow, ratio) - o.Dx()
				r.Min.X -= dw / 2
				r.Max.X += dw - dw/2
			}
		}
		return r
	}
}

// resizeCorner moves the two edges meeting at the corner (sx, sy). With the
// aspect ratio locked both components of the motion drive the horizontal edge
// and the vertical edge follows it fully.
func resizeCorner(sx, sy int) resizeFunc {
	return func(st State, ratio float64, dx, dy int) image.Rectangle {
		o := st.Overlay
		growX, growY := sx*dx, sy*dy
		if st.Locked && ratio > 0 {
			growX += int(math.Round(float64(growY) * ratio))
			growY = heightFor(o.Dx()+growX, ratio) - o.Dy()
		}
		r := o
		if sx < 0 {
			r.Min.X -= growX
		} else {
			r.Max.X += growX
		}
		if sy < 0 {
			r.Min.Y -= growY
		} else {
			r.Max.Y += growY
		}
		return r
	}
}

// drag offsets the overlay. A component that would push the overlay out of the
// image bounds is dropped.
func drag(st State, _ float64, dx, dy int) image.Rectangle {
	o, b := st.Overlay, st.Bounds
	if o.Min.X+dx < b.Min.X || o.Max.X+dx > b.Max.X {
		dx = 0
	}
	if o.Min.Y+dy < b.Min.Y || o.Max.Y+dy > b.Max.Y {
		dy = 0
	}
	return o.Add(image.Pt(dx, dy))
}
