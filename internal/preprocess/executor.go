package preprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"pickcrop/internal/bitmap"
	"pickcrop/internal/editor"
	"pickcrop/internal/media"
)

// ReadRecords decodes a stream of JSON result records, one value after another
// (JSON lines or concatenated objects).
func ReadRecords(r io.Reader) ([]editor.Record, error) {
	dec := json.NewDecoder(r)
	var records []editor.Record
	for {
		var rec editor.Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}

// Executor writes the edited version of every record into OutputDir.
type Executor struct {
	BaseDir     string
	OutputDir   string
	Transformer Transformer
	Workers     int
}

// Exec processes records in parallel. Unedited images are copied as is and
// videos are skipped.
func (e Executor) Exec(ctx context.Context, records []editor.Record) error {
	if len(records) == 0 {
		log.Ctx(ctx).Warn().Msg("no records to process")
		return nil
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(workers)

	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", e.OutputDir, err)
	}
	for _, rec := range records {
		pooler.Go(func(ctx context.Context) error {
			if err := e.process(ctx, rec); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("source", rec.Source).
					Msg("failed to process record")
				return err
			}
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Msg("finished with errors")
		return err
	}
	return nil
}

func (e Executor) process(ctx context.Context, rec editor.Record) error {
	if rec.Type == media.Video {
		log.Ctx(ctx).Warn().Str("source", rec.Source).Msg("skipping video, crop is applied on upload")
		return nil
	}
	edit := Edit{Rotation: rec.RotationAngle, Points: rec.CropPoints}
	if edit.Empty() {
		return e.pick(ctx, rec.Source)
	}
	return e.transform(ctx, rec.Source, edit)
}

func (e Executor) transform(ctx context.Context, source string, edit Edit) error {
	log.Ctx(ctx).Info().Str("source", source).Stringer("edit", edit).Msg("transforming")
	sourcePath, err := e.path(source)
	if err != nil {
		return err
	}
	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", sourcePath, err)
	}
	defer f.Close()

	var b bytes.Buffer
	if err := e.Transformer.Transform(ctx, f, &b, edit); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	newName := fmt.Sprintf("%s-%s.jpg", base, edit.ID())
	outPath := filepath.Join(e.OutputDir, newName)
	wf, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", newName, err)
	}
	defer wf.Close()
	if _, err := b.WriteTo(wf); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", newName, err)
	}
	return nil
}

func (e Executor) pick(ctx context.Context, source string) error {
	log.Ctx(ctx).Info().Str("source", source).Msg("picking")
	sourcePath, err := e.path(source)
	if err != nil {
		return err
	}
	savePath := filepath.Join(e.OutputDir, filepath.Base(source))
	if err := copyFile(sourcePath, savePath); err != nil {
		return fmt.Errorf("failed to pick file %s: %w", source, err)
	}
	return nil
}

// path resolves source under BaseDir, rejecting sources that escape it.
func (e Executor) path(source string) (string, error) {
	return bitmap.DirResolver{Root: e.BaseDir}.Path(source)
}

func copyFile(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", sourcePath, err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file from %s to %s: %w", sourcePath, destPath, err)
	}
	return nil
}
