package web

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pickcrop/internal/bitmap"
	"pickcrop/internal/media"
)

type FileInfo struct {
	Name       string            `json:"name"`
	Type       media.Type        `json:"type"`
	MIME       string            `json:"mime"`
	SizeBytes  int64             `json:"size_bytes"`
	ModifiedAt time.Time         `json:"modified_at"`
	URL        string            `json:"url"`
	Image      bitmap.Dimensions `json:"image"`
}

type Directory struct {
	Name  string     `json:"name"`
	Files []FileInfo `json:"files"`
}

// walkMedia lists images and videos under rootPath. Hidden directories, such
// as the private storage area, are skipped.
func walkMedia(ctx context.Context, rootPath string) (Directory, error) {
	var files []FileInfo

	if err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		kind, mime, err := media.DetectFile(path)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("cannot detect media type")
			return nil
		}
		if kind == media.Unknown {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info: %w", err)
		}
		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		files = append(files, FileInfo{
			Name:       filepath.ToSlash(relPath),
			Type:       kind,
			MIME:       mime,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	}); err != nil {
		return Directory{}, err
	}

	for i := range files {
		if files[i].Type != media.Image {
			continue
		}
		dims, err := readDimensions(filepath.Join(rootPath, filepath.FromSlash(files[i].Name)))
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("filename", files[i].Name).Msg("cannot read image dimensions")
			continue
		}
		files[i].Image = dims
	}

	return Directory{
		Name:  filepath.Base(rootPath),
		Files: files,
	}, nil
}

func readDimensions(path string) (bitmap.Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return bitmap.Dimensions{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return bitmap.ReadDimensions(f)
}
