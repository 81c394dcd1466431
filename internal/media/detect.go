// Package media classifies sources as images or videos by sniffing their content.
package media

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Type is the broad kind of a media source.
type Type string

const (
	Unknown Type = ""
	Image   Type = "image"
	Video   Type = "video"
)

// FromMIME maps a MIME type such as "image/png" to its media type.
func FromMIME(mime string) Type {
	major, _, _ := strings.Cut(mime, "/")
	switch major {
	case "image":
		return Image
	case "video":
		return Video
	}
	return Unknown
}

// Detect sniffs the leading bytes of r.
func Detect(r io.Reader) (Type, string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return Unknown, "", fmt.Errorf("failed to detect media type: %w", err)
	}
	return FromMIME(m.String()), m.String(), nil
}

// DetectFile sniffs the file at path.
func DetectFile(path string) (Type, string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return Unknown, "", fmt.Errorf("failed to detect media type of %s: %w", path, err)
	}
	return FromMIME(m.String()), m.String(), nil
}
