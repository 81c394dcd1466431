package crop

import (
	"fmt"
	"image"
	"strings"
)

// Phase is the stage of a pointer gesture an event belongs to.
type Phase int

const (
	PhaseDown Phase = iota
	PhaseMove
	PhaseUp
)

func (p Phase) String() string {
	switch p {
	case PhaseDown:
		return "down"
	case PhaseMove:
		return "move"
	case PhaseUp:
		return "up"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "down":
		*p = PhaseDown
	case "move":
		*p = PhaseMove
	case "up":
		*p = PhaseUp
	default:
		return fmt.Errorf("unknown pointer phase %q", text)
	}
	return nil
}

// Event is a single pointer event in view coordinates.
type Event struct {
	Phase Phase   `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

func (e Event) point() image.Point {
	return image.Pt(int(e.X), int(e.Y))
}

// State is the overlay as seen by a handler for one event.
type State struct {
	Overlay image.Rectangle
	Bounds  image.Rectangle
	Locked  bool
}

// Gesture is the capture held from a down event until the next up event.
// The zero value means no gesture is in progress.
type Gesture struct {
	Region Region
	// AnchorX and AnchorY hold the position of the previous event of the gesture.
	AnchorX, AnchorY float64
	// Ratio is the overlay's width/height when the gesture started.
	Ratio float64
}

// Active reports whether a handler currently owns the gesture.
func (g Gesture) Active() bool {
	return g.Region != RegionNone
}

// Route feeds one event through the handler chain. It returns the gesture to
// carry into the next call and, for move events of a captured gesture, the
// proposed overlay rectangle.
func Route(g Gesture, ev Event, st State) (Gesture, image.Rectangle, bool) {
	switch ev.Phase {
	case PhaseDown:
		return capture(ev, st), image.Rectangle{}, false

	case PhaseMove:
		if !g.Active() {
			return g, image.Rectangle{}, false
		}
		h := handlerFor(g.Region)
		dx := int(ev.X - g.AnchorX)
		dy := int(ev.Y - g.AnchorY)
		proposal := h.resize(st, g.Ratio, dx, dy)
		g.AnchorX, g.AnchorY = ev.X, ev.Y
		return g, proposal, true

	case PhaseUp:
		return Gesture{}, image.Rectangle{}, false
	}
	return g, image.Rectangle{}, false
}

func capture(ev Event, st State) Gesture {
	region := HitTest(st.Overlay, ev.point())
	if region == RegionNone {
		return Gesture{}
	}
	var ratio float64
	if st.Overlay.Dy() > 0 {
		ratio = float64(st.Overlay.Dx()) / float64(st.Overlay.Dy())
	}
	return Gesture{
		Region:  region,
		AnchorX: ev.X,
		AnchorY: ev.Y,
		Ratio:   ratio,
	}
}

// HitTest returns the region whose handler would capture a down event at p,
// trying handlers in chain order.
func HitTest(overlay image.Rectangle, p image.Point) Region {
	mx, my := gestureMargins(overlay)
	for _, h := range chain {
		if p.In(h.hit(overlay, mx, my)) {
			return h.region
		}
	}
	return RegionNone
}

// Router keeps the gesture between events and applies accepted proposals to a Model.
// It must only be used from the goroutine that owns the Model.
type Router struct {
	gesture Gesture
}

// Handle routes ev and reports whether the overlay changed.
func (r *Router) Handle(ev Event, m *Model, locked bool) bool {
	next, proposal, ok := Route(r.gesture, ev, State{
		Overlay: m.Overlay(),
		Bounds:  m.Bounds(),
		Locked:  locked,
	})
	r.gesture = next
	if !ok || proposal == m.Overlay() {
		return false
	}
	return m.Apply(proposal)
}

// Gesture returns the gesture currently held by the router.
func (r *Router) Gesture() Gesture {
	return r.gesture
}

// Release drops any captured gesture, as if an up event was received.
func (r *Router) Release() {
	r.gesture = Gesture{}
}
