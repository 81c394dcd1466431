package crop

import "image"

// MinOverlaySize is the smallest width or height, in view pixels, the overlay can shrink to.
const MinOverlaySize = 5

// Model owns the crop overlay rectangle and the image bounds it has to stay within.
// The zero value has empty bounds and rejects every proposal.
type Model struct {
	overlay image.Rectangle
	bounds  image.Rectangle
}

// Overlay returns the current overlay rectangle in view space.
func (m *Model) Overlay() image.Rectangle {
	return m.overlay
}

// Bounds returns the view-space rectangle occupied by the displayed bitmap.
func (m *Model) Bounds() image.Rectangle {
	return m.bounds
}

// SetImageBounds replaces the image bounds and resets the overlay to cover them.
func (m *Model) SetImageBounds(bounds image.Rectangle) {
	m.bounds = bounds
	m.overlay = bounds
}

// Reset makes the overlay cover the whole image bounds again.
func (m *Model) Reset() {
	m.overlay = m.bounds
}

// Accepts reports whether r satisfies every overlay invariant against the current bounds.
func (m *Model) Accepts(r image.Rectangle) bool {
	return r.Max.X > r.Min.X &&
		r.Max.Y > r.Min.Y &&
		r.Dx() >= MinOverlaySize &&
		r.Dy() >= MinOverlaySize &&
		r.Min.X >= m.bounds.Min.X &&
		r.Min.Y >= m.bounds.Min.Y &&
		r.Max.X <= m.bounds.Max.X &&
		r.Max.Y <= m.bounds.Max.Y
}

// Apply replaces the overlay with r when it is valid. An invalid proposal leaves
// the overlay untouched and reports false.
func (m *Model) Apply(r image.Rectangle) bool {
	if !m.Accepts(r) {
		return false
	}
	m.overlay = r
	return true
}
