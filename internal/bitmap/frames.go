package bitmap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultFrameOffset is the timestamp of the frame used as a video thumbnail.
const DefaultFrameOffset = time.Microsecond

// FFmpeg extracts video frames by running the ffmpeg binary.
type FFmpeg struct {
	Binary   string
	Resolver Resolver
	Offset   time.Duration
}

func (f FFmpeg) Frame(ctx context.Context, source string) (image.Image, error) {
	path, err := f.Resolver.Path(source)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	offset := f.Offset
	if offset <= 0 {
		offset = DefaultFrameOffset
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 6, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %w: %s", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}
	frame, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: frame of %s: %w", ErrDecode, source, err)
	}
	return frame, nil
}
