package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickcrop/internal/bitmap"
	"pickcrop/internal/crop"
	"pickcrop/internal/editor"
	"pickcrop/internal/media"
)

func encodeImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG))
	return buf.Bytes()
}

func points(x1, y1, x2, y2 int) *crop.Points {
	return &crop.Points{Point1: image.Pt(x1, y1), Point2: image.Pt(x2, y2)}
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name string
		edit Edit
		want image.Point
	}{
		{"identity", Edit{}, image.Pt(400, 300)},
		{"rotate quarter", Edit{Rotation: 90}, image.Pt(300, 400)},
		{"rotate half", Edit{Rotation: 180}, image.Pt(400, 300)},
		{"crop", Edit{Points: points(10, 20, 110, 70)}, image.Pt(100, 50)},
		{"rotate then crop in rotated frame", Edit{Rotation: 270, Points: points(0, 0, 300, 350)}, image.Pt(300, 350)},
		{"crop clamped to bounds", Edit{Points: points(350, 250, 500, 400)}, image.Pt(50, 50)},
	}
	tr := NewImagingTransformer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := tr.Transform(context.Background(), bytes.NewReader(encodeImage(t, 400, 300)), &out, tt.edit)
			require.NoError(t, err)

			img, err := imaging.Decode(&out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Bounds().Size())
		})
	}
}

func TestTransformRejects(t *testing.T) {
	tr := NewImagingTransformer()
	src := encodeImage(t, 40, 30)

	err := tr.Transform(context.Background(), bytes.NewReader(src), &bytes.Buffer{}, Edit{Rotation: 45})
	assert.ErrorContains(t, err, "invalid rotation")

	err = tr.Transform(context.Background(), bytes.NewReader(src), &bytes.Buffer{}, Edit{Points: points(5, 5, 5, 20)})
	assert.ErrorContains(t, err, "invalid crop dimensions")

	err = tr.Transform(context.Background(), bytes.NewReader(src), &bytes.Buffer{}, Edit{Points: points(100, 100, 200, 200)})
	assert.ErrorContains(t, err, "outside image bounds")

	err = tr.Transform(context.Background(), strings.NewReader("nope"), &bytes.Buffer{}, Edit{})
	assert.ErrorContains(t, err, "failed to decode")
}

func TestEditID(t *testing.T) {
	a := Edit{Rotation: 90, Points: points(1, 2, 3, 4)}
	b := Edit{Rotation: 90, Points: points(1, 2, 3, 4)}
	c := Edit{Rotation: 180, Points: points(1, 2, 3, 4)}
	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Len(t, a.ID(), 12)
	assert.True(t, Edit{}.Empty())
	assert.False(t, a.Empty())
}

func TestReadRecords(t *testing.T) {
	input := `{"source":"a.jpg","type":"image","cropPoints":null,"rotationAngle":0}
{"source":"b.jpg","type":"image","cropPoints":{"point1":{"x":1,"y":2},"point2":{"x":30,"y":40}},"rotationAngle":90}
`
	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Nil(t, records[0].CropPoints)
	assert.Equal(t, crop.Angle(90), records[1].RotationAngle)
	assert.Equal(t, points(1, 2, 30, 40), records[1].CropPoints)

	_, err = ReadRecords(strings.NewReader(`{"source":`))
	assert.Error(t, err)
}

func TestExecutorExec(t *testing.T) {
	base := t.TempDir()
	out := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.WriteFile(filepath.Join(base, "plain.png"), encodeImage(t, 40, 30), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "edited.png"), encodeImage(t, 40, 30), 0o644))

	edit := Edit{Rotation: 90, Points: points(0, 0, 20, 20)}
	e := Executor{BaseDir: base, OutputDir: out, Transformer: NewImagingTransformer(), Workers: 2}
	err := e.Exec(context.Background(), []editor.Record{
		{Source: "plain.png", Type: media.Image},
		{Source: "edited.png", Type: media.Image, RotationAngle: edit.Rotation, CropPoints: edit.Points},
		{Source: "clip.mp4", Type: media.Video, CropPoints: points(0, 0, 10, 10)},
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"plain.png", "edited-" + edit.ID() + ".jpg"}, names)

	img, err := imaging.Open(filepath.Join(out, "edited-"+edit.ID()+".jpg"))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(20, 20), img.Bounds().Size())
}

func TestExecutorExecErrors(t *testing.T) {
	e := Executor{BaseDir: t.TempDir(), OutputDir: t.TempDir(), Transformer: NewImagingTransformer()}
	assert.NoError(t, e.Exec(context.Background(), nil))

	err := e.Exec(context.Background(), []editor.Record{
		{Source: "missing.jpg", Type: media.Image, RotationAngle: 90},
	})
	assert.ErrorContains(t, err, "missing.jpg")
}

func TestExecutorRejectsEscapingSources(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "media")
	out := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.png"), encodeImage(t, 10, 10), 0o644))
	e := Executor{BaseDir: base, OutputDir: out, Transformer: NewImagingTransformer(), Workers: 1}

	for _, rec := range []editor.Record{
		{Source: "../secret.png", Type: media.Image},
		{Source: "../secret.png", Type: media.Image, RotationAngle: 90},
		{Source: "/etc/passwd", Type: media.Image},
	} {
		err := e.Exec(context.Background(), []editor.Record{rec})
		assert.ErrorIs(t, err, bitmap.ErrSourceUnreadable, "source %q", rec.Source)
	}
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
