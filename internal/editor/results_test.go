package editor

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickcrop/internal/crop"
	"pickcrop/internal/media"
)

func kindByName(src string) media.Type {
	if src == "clip.mp4" {
		return media.Video
	}
	return media.Image
}

func TestResultsUneditedSources(t *testing.T) {
	r := NewResults([]string{"b.jpg", "a.jpg", "clip.mp4", "a.jpg"}, kindByName)

	records := r.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []string{"b.jpg", "a.jpg", "clip.mp4"}, r.Sources())
	for _, rec := range records {
		assert.Nil(t, rec.CropPoints)
		assert.Equal(t, crop.Angle(0), rec.RotationAngle)
		assert.Empty(t, rec.Location)
	}
	assert.Equal(t, media.Video, records[2].Type)
}

func TestResultsCommitAndCancel(t *testing.T) {
	r := NewResults([]string{"a.jpg", "b.jpg"}, nil)
	f := Finalized{
		Rotation: 90,
		Points:   crop.Points{Point1: image.Pt(10, 20), Point2: image.Pt(300, 400)},
	}

	r.Commit("a.jpg", media.Image, f, "/storage/x.png")
	rec, ok := r.Get("a.jpg")
	require.True(t, ok)
	assert.Equal(t, crop.Angle(90), rec.RotationAngle)
	require.NotNil(t, rec.CropPoints)
	assert.Equal(t, f.Points, *rec.CropPoints)
	assert.Equal(t, "/storage/x.png", rec.Location)

	rec.CropPoints.Point1 = image.Pt(0, 0)
	again, _ := r.Get("a.jpg")
	assert.Equal(t, image.Pt(10, 20), again.CropPoints.Point1, "records are returned as copies")

	r.Cancel("a.jpg")
	rec, _ = r.Get("a.jpg")
	assert.Nil(t, rec.CropPoints)
	assert.Equal(t, crop.Angle(0), rec.RotationAngle)
	assert.Empty(t, rec.Location)

	_, ok = r.Get("missing.jpg")
	assert.False(t, ok)
}

func TestResultsCommitUnknownSourceAppends(t *testing.T) {
	r := NewResults([]string{"a.jpg"}, nil)
	r.Commit("late.jpg", media.Image, Finalized{}, "")
	assert.Equal(t, []string{"a.jpg", "late.jpg"}, r.Sources())
}

func TestRecordJSON(t *testing.T) {
	r := NewResults([]string{"a.jpg", "b.jpg"}, nil)
	r.Commit("b.jpg", media.Image, Finalized{
		Rotation: 270,
		Points:   crop.Points{Point1: image.Pt(1, 2), Point2: image.Pt(3, 4)},
	}, "")

	b, err := json.Marshal(r.Records())
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"source":"a.jpg","type":"image","cropPoints":null,"rotationAngle":0},
		{"source":"b.jpg","type":"image","cropPoints":{"point1":{"x":1,"y":2},"point2":{"x":3,"y":4}},"rotationAngle":270}
	]`, string(b))
}

func TestResultsAdd(t *testing.T) {
	r := NewResults(nil, nil)
	r.Add("clip.mp4", media.Video)
	r.Add("a.jpg", media.Image)
	r.Add("clip.mp4", media.Image)

	records := r.Records()
	require.Len(t, records, 2)
	assert.Equal(t, media.Video, records[0].Type)
	assert.Equal(t, "a.jpg", records[1].Source)
}
