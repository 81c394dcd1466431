package editor

import (
	"slices"
	"sync"

	"pickcrop/internal/crop"
	"pickcrop/internal/media"
)

// Record is the editing outcome of one source. A source that was never edited
// has no crop points and a zero rotation.
type Record struct {
	Source        string       `json:"source"`
	Type          media.Type   `json:"type"`
	CropPoints    *crop.Points `json:"cropPoints"`
	RotationAngle crop.Angle   `json:"rotationAngle"`
	// Location is where the edited bitmap was persisted, if it was.
	Location string `json:"location,omitempty"`
}

// Results collects one record per selected source, in selection order. It is
// safe for concurrent use.
type Results struct {
	mu      sync.Mutex
	order   []string
	records map[string]*Record
}

// NewResults returns a result set with an unedited record for every source.
// Duplicate sources are kept once.
func NewResults(sources []string, kind func(string) media.Type) *Results {
	r := &Results{records: make(map[string]*Record, len(sources))}
	for _, src := range sources {
		if _, ok := r.records[src]; ok {
			continue
		}
		t := media.Image
		if kind != nil {
			t = kind(src)
		}
		r.order = append(r.order, src)
		r.records[src] = &Record{Source: src, Type: t}
	}
	return r
}

func (r *Results) record(source string, kind media.Type) *Record {
	rec, ok := r.records[source]
	if !ok {
		rec = &Record{Source: source, Type: kind}
		r.order = append(r.order, source)
		r.records[source] = rec
	}
	return rec
}

// Add appends an unedited record for source unless it is already selected.
func (r *Results) Add(source string, kind media.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(source, kind)
}

// Commit stores the rotation and crop points of a finished session together
// with the location of its persisted bitmap.
func (r *Results) Commit(source string, kind media.Type, f Finalized, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(source, kind)
	rec.Type = kind
	rec.RotationAngle = f.Rotation
	points := f.Points
	rec.CropPoints = &points
	rec.Location = location
}

// Cancel resets the record of source to unedited.
func (r *Results) Cancel(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(source, media.Image)
	rec.RotationAngle = 0
	rec.CropPoints = nil
	rec.Location = ""
}

// Get returns a copy of the record of source.
func (r *Results) Get(source string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[source]
	if !ok {
		return Record{}, false
	}
	return copyRecord(rec), true
}

// Records returns a copy of every record in selection order.
func (r *Results) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.order))
	for _, src := range r.order {
		out = append(out, copyRecord(r.records[src]))
	}
	return out
}

// Sources returns the selected sources in order.
func (r *Results) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

func copyRecord(rec *Record) Record {
	c := *rec
	if rec.CropPoints != nil {
		p := *rec.CropPoints
		c.CropPoints = &p
	}
	return c
}
