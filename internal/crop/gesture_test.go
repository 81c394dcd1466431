package crop

import (
	"image"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newModel(t *testing.T, bounds, overlay image.Rectangle) *Model {
	t.Helper()
	m := &Model{}
	m.SetImageBounds(bounds)
	require.True(t, m.Apply(overlay), "overlay %v must fit bounds %v", overlay, bounds)
	return m
}

func press(r *Router, m *Model, locked bool, from, to image.Point) bool {
	r.Handle(Event{Phase: PhaseDown, X: float64(from.X), Y: float64(from.Y)}, m, locked)
	changed := r.Handle(Event{Phase: PhaseMove, X: float64(to.X), Y: float64(to.Y)}, m, locked)
	r.Handle(Event{Phase: PhaseUp, X: float64(to.X), Y: float64(to.Y)}, m, locked)
	return changed
}

func TestHitTestRegions(t *testing.T) {
	overlay := image.Rect(100, 100, 500, 400)
	tests := []struct {
		p    image.Point
		want Region
	}{
		{image.Pt(100, 250), RegionLeft},
		{image.Pt(100, 100), RegionTopLeft},
		{image.Pt(300, 100), RegionTop},
		{image.Pt(500, 100), RegionTopRight},
		{image.Pt(500, 250), RegionRight},
		{image.Pt(500, 400), RegionBottomRight},
		{image.Pt(300, 400), RegionBottom},
		{image.Pt(100, 400), RegionBottomLeft},
		{image.Pt(300, 250), RegionInterior},
		{image.Pt(900, 700), RegionNone},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, HitTest(overlay, tt.p))
		})
	}
}

func TestHitTestCornersWinOverSidesAndInterior(t *testing.T) {
	overlays := []image.Rectangle{
		image.Rect(100, 100, 500, 400),
		image.Rect(0, 0, 1000, 800),
		image.Rect(200, 200, 240, 230),
		image.Rect(50, 50, 56, 300),
	}
	for _, o := range overlays {
		mx, my := gestureMargins(o)
		for y := o.Min.Y - my - 5; y <= o.Max.Y+my+5; y += 3 {
			for x := o.Min.X - mx - 5; x <= o.Max.X+mx+5; x += 3 {
				p := image.Pt(x, y)
				got := HitTest(o, p)
				for _, h := range chain {
					if !isCorner(h.region) || !p.In(h.hit(o, mx, my)) {
						continue
					}
					assert.True(t, isCorner(got), "overlay %v point %v: corner %s lost to %s", o, p, h.region, got)
				}
			}
		}
	}
}

func isCorner(r Region) bool {
	switch r {
	case RegionTopLeft, RegionTopRight, RegionBottomRight, RegionBottomLeft:
		return true
	}
	return false
}

func TestDragOutOfBoundsIsRejected(t *testing.T) {
	var m Model
	m.SetImageBounds(image.Rect(0, 0, 1000, 800))
	var r Router

	r.Handle(Event{Phase: PhaseDown, X: 500, Y: 400}, &m, false)
	require.Equal(t, RegionInterior, r.Gesture().Region)

	changed := r.Handle(Event{Phase: PhaseMove, X: 600, Y: 450}, &m, false)
	assert.False(t, changed)
	assert.Equal(t, image.Rect(0, 0, 1000, 800), m.Overlay())
}

func TestDragMovesOverlay(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	assert.True(t, press(&r, m, false, image.Pt(300, 250), image.Pt(350, 280)))
	assert.Equal(t, image.Rect(150, 130, 550, 430), m.Overlay())
}

func TestDragDropsOnlyTheEscapingAxis(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	assert.True(t, press(&r, m, false, image.Pt(300, 250), image.Pt(900, 280)))
	assert.Equal(t, image.Rect(100, 130, 500, 430), m.Overlay())
}

func TestMoveDeltasAreRelativeToPreviousEvent(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	r.Handle(Event{Phase: PhaseDown, X: 500, Y: 250}, m, false)
	require.Equal(t, RegionRight, r.Gesture().Region)
	r.Handle(Event{Phase: PhaseMove, X: 510, Y: 250}, m, false)
	r.Handle(Event{Phase: PhaseMove, X: 530, Y: 260}, m, false)
	assert.Equal(t, image.Rect(100, 100, 530, 400), m.Overlay())
}

func TestRejectedMoveStillAdvancesAnchor(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	r.Handle(Event{Phase: PhaseDown, X: 500, Y: 250}, m, false)
	assert.False(t, r.Handle(Event{Phase: PhaseMove, X: 1200, Y: 250}, m, false))
	assert.Equal(t, image.Rect(100, 100, 500, 400), m.Overlay())

	assert.True(t, r.Handle(Event{Phase: PhaseMove, X: 1190, Y: 250}, m, false))
	assert.Equal(t, image.Rect(100, 100, 490, 400), m.Overlay())
}

func TestUpReleasesGesture(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	r.Handle(Event{Phase: PhaseDown, X: 300, Y: 250}, m, false)
	require.True(t, r.Gesture().Active())
	r.Handle(Event{Phase: PhaseUp, X: 300, Y: 250}, m, false)
	assert.False(t, r.Gesture().Active())

	assert.False(t, r.Handle(Event{Phase: PhaseMove, X: 350, Y: 300}, m, false))
	assert.Equal(t, image.Rect(100, 100, 500, 400), m.Overlay())
}

func TestDownOutsideOverlayCapturesNothing(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	r.Handle(Event{Phase: PhaseDown, X: 900, Y: 700}, m, false)
	assert.False(t, r.Gesture().Active())
	assert.False(t, r.Handle(Event{Phase: PhaseMove, X: 800, Y: 600}, m, false))
}

func TestUnlockedResize(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 800)
	overlay := image.Rect(100, 100, 500, 400)
	tests := []struct {
		name     string
		from, to image.Point
		want     image.Rectangle
	}{
		{"left", image.Pt(100, 250), image.Pt(80, 260), image.Rect(80, 100, 500, 400)},
		{"top-left", image.Pt(100, 100), image.Pt(120, 90), image.Rect(120, 90, 500, 400)},
		{"top", image.Pt(300, 100), image.Pt(310, 150), image.Rect(100, 150, 500, 400)},
		{"top-right", image.Pt(500, 100), image.Pt(540, 130), image.Rect(100, 130, 540, 400)},
		{"right", image.Pt(500, 250), image.Pt(550, 250), image.Rect(100, 100, 550, 400)},
		{"bottom-right", image.Pt(500, 400), image.Pt(450, 420), image.Rect(100, 100, 450, 420)},
		{"bottom", image.Pt(300, 400), image.Pt(300, 350), image.Rect(100, 100, 500, 350)},
		{"bottom-left", image.Pt(100, 400), image.Pt(60, 500), image.Rect(60, 100, 500, 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(t, bounds, overlay)
			var r Router
			assert.True(t, press(&r, m, false, tt.from, tt.to))
			assert.Equal(t, tt.want, m.Overlay())
		})
	}
}

func TestResizeBelowMinimumIsRejected(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	assert.False(t, press(&r, m, false, image.Pt(500, 250), image.Pt(100, 250)))
	assert.Equal(t, image.Rect(100, 100, 500, 400), m.Overlay())
}

func TestLockedSidesSplitCompensation(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	assert.True(t, press(&r, m, true, image.Pt(100, 250), image.Pt(60, 250)))
	assert.Equal(t, image.Rect(60, 85, 500, 415), m.Overlay())
}

func TestLockedResizeKeepsAspectRatio(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 800)
	overlay := image.Rect(100, 100, 500, 400)
	ratio := float64(overlay.Dx()) / float64(overlay.Dy())

	handles := map[Region]image.Point{
		RegionLeft:        image.Pt(100, 250),
		RegionTopLeft:     image.Pt(100, 100),
		RegionTop:         image.Pt(300, 100),
		RegionTopRight:    image.Pt(500, 100),
		RegionRight:       image.Pt(500, 250),
		RegionBottomRight: image.Pt(500, 400),
		RegionBottom:      image.Pt(300, 400),
		RegionBottomLeft:  image.Pt(100, 400),
	}
	deltas := []int{-40, -20, -5, 0, 7, 20, 40}
	for region, from := range handles {
		for _, dx := range deltas {
			for _, dy := range deltas {
				m := newModel(t, bounds, overlay)
				var r Router
				press(&r, m, true, from, from.Add(image.Pt(dx, dy)))

				got := m.Overlay()
				assert.True(t, got.In(bounds), "%s %d,%d: %v escapes bounds", region, dx, dy, got)
				gotRatio := float64(got.Dx()) / float64(got.Dy())
				assert.InDelta(t, ratio, gotRatio, 0.01, "%s %d,%d: %v", region, dx, dy, got)
			}
		}
	}
}

func TestLockedGestureUsesRatioFromDown(t *testing.T) {
	m := newModel(t, image.Rect(0, 0, 1000, 800), image.Rect(100, 100, 500, 400))
	var r Router

	r.Handle(Event{Phase: PhaseDown, X: 500, Y: 400}, m, true)
	require.Equal(t, RegionBottomRight, r.Gesture().Region)
	assert.InDelta(t, 4.0/3.0, r.Gesture().Ratio, 1e-9)
	for i := 1; i <= 10; i++ {
		r.Handle(Event{Phase: PhaseMove, X: float64(500 + 3*i), Y: float64(400 + i)}, m, true)
	}
	got := m.Overlay()
	assert.InDelta(t, 4.0/3.0, float64(got.Dx())/float64(got.Dy()), 0.01)
}

func TestRandomGesturesKeepInvariants(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 800)
	rng := rand.New(rand.NewPCG(7, 11))
	var m Model
	m.SetImageBounds(bounds)
	var r Router

	for i := 0; i < 5000; i++ {
		locked := rng.IntN(2) == 0
		o := m.Overlay()
		var ev Event
		switch rng.IntN(10) {
		case 0:
			ev = Event{Phase: PhaseDown,
				X: float64(o.Min.X - 40 + rng.IntN(o.Dx()+80)),
				Y: float64(o.Min.Y - 40 + rng.IntN(o.Dy()+80))}
		case 1:
			ev = Event{Phase: PhaseUp}
		default:
			g := r.Gesture()
			ev = Event{Phase: PhaseMove,
				X: g.AnchorX + float64(rng.IntN(121)-60) + rng.Float64(),
				Y: g.AnchorY + float64(rng.IntN(121)-60) + rng.Float64()}
		}
		r.Handle(ev, &m, locked)

		got := m.Overlay()
		require.Greater(t, got.Max.X, got.Min.X)
		require.Greater(t, got.Max.Y, got.Min.Y)
		require.GreaterOrEqual(t, got.Dx(), MinOverlaySize)
		require.GreaterOrEqual(t, got.Dy(), MinOverlaySize)
		require.True(t, got.In(bounds), "step %d: %v escapes %v", i, got, bounds)
	}
}

func TestPhaseText(t *testing.T) {
	for _, p := range []Phase{PhaseDown, PhaseMove, PhaseUp} {
		text, err := p.MarshalText()
		require.NoError(t, err)
		var got Phase
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, p, got)
	}
	var p Phase
	assert.Error(t, p.UnmarshalText([]byte("hover")))
}

func TestGestureMargins(t *testing.T) {
	mx, my := gestureMargins(image.Rect(0, 0, 1000, 80))
	assert.Equal(t, 250, mx)
	assert.Equal(t, MinGestureRegion, my)
}
