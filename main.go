package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pickcrop/internal/bitmap"
	"pickcrop/internal/config"
	"pickcrop/internal/editor"
	"pickcrop/internal/preprocess"
	"pickcrop/internal/web"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("pickcrop"),
		kong.Description("Crop and rotate images and videos in the browser."),
		kong.UsageOnError(),
	)
	if err := cliCtx.Run(&args.Globals); err != nil {
		return err
	}

	return nil
}

type Globals struct {
	Config  string `help:"YAML configuration file" type:"path" env:"PICKCROP_CONFIG"`
	Verbose bool   `help:"Enable verbose logging" short:"v" default:"false"`
}

type cliArgs struct {
	Globals

	Serve      serveCmd  `cmd:"" default:"withargs" help:"Serve an editing host for a media directory"`
	Apply      applyCmd  `cmd:"" help:"Apply result records to full resolution images"`
	ShowConfig configCmd `cmd:"" name:"config" help:"Print the effective configuration"`
}

// Overrides are settings that flags and the environment can override on top
// of the configuration file.
type Overrides struct {
	StorageDir string `help:"Private storage area for edited bitmaps" env:"PICKCROP_STORAGE_DIR"`
	OutputDir  string `help:"Directory preprocessed images are written to" env:"PICKCROP_OUTPUT_DIR"`
	Workers    int    `help:"Size of the decode worker pool" env:"PICKCROP_WORKERS"`
	CacheBytes int64  `help:"Bitmap cache budget in bytes, 0 for an eighth of the memory limit" env:"PICKCROP_CACHE_BYTES"`
	FFmpeg     string `help:"ffmpeg binary used for video thumbnails" env:"PICKCROP_FFMPEG"`
}

func (o Overrides) apply(cfg *config.Config) {
	if o.StorageDir != "" {
		cfg.StorageDir = o.StorageDir
	}
	if o.OutputDir != "" {
		cfg.OutputDir = o.OutputDir
	}
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.CacheBytes > 0 {
		cfg.CacheBytes = o.CacheBytes
	}
	if o.FFmpeg != "" {
		cfg.FFmpeg = o.FFmpeg
	}
}

func (g *Globals) setup() context.Context {
	level := zerolog.InfoLevel
	if g.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).Level(level)
	zerolog.DefaultContextLogger = &log.Logger
	return log.Logger.WithContext(context.Background())
}

func (g *Globals) load(rootDir string, o Overrides) (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.RootDir = rootDir
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type serveCmd struct {
	RootDir string `arg:"" optional:"" help:"Root directory to serve files from" type:"existingdir"`
	Open    bool   `help:"Open the browser automatically when the server starts" default:"true" negatable:""`
	JSON    bool   `help:"Output result records in JSON format without applying them"`
	Once    bool   `help:"Run the server once and exit after save" default:"true" negatable:""`
	Listen  string `help:"Address to listen on" env:"PICKCROP_LISTEN"`

	Overrides
}

func (cmd *serveCmd) Run(g *Globals) error {
	ctx := g.setup()
	cfg, err := g.load(cmd.RootDir, cmd.Overrides)
	if err != nil {
		return err
	}
	if cmd.Listen != "" {
		cfg.Listen = cmd.Listen
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	capacity := cfg.CacheBytes
	if capacity == 0 {
		capacity = bitmap.DefaultCapacity()
	}
	log.Ctx(ctx).Debug().
		Str("cache", humanize.IBytes(uint64(capacity))).
		Int("workers", cfg.Workers).
		Str("storage", cfg.StorageDir).
		Msg("starting bitmap pipeline")

	resolver := bitmap.DirResolver{Root: cfg.RootDir}
	pipeline := bitmap.NewPipeline(
		&bitmap.Decoder{
			Resolver: resolver,
			Frames: bitmap.FFmpeg{
				Binary:   cfg.FFmpeg,
				Resolver: resolver,
				Offset:   cfg.ThumbnailOffset,
			},
		},
		bitmap.Persister{Dir: cfg.StorageDir},
		bitmap.NewCache(capacity),
		cfg.Workers,
	)
	defer pipeline.Close()

	executor := newExecutor(cfg)

	app := web.NewWebApp(ctx, web.Config{
		RootDir:  cfg.RootDir,
		Listen:   cfg.Listen,
		Pipeline: pipeline,
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down web application...")
		},
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cmd.Open {
				if err := openBrowser(addr); err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
		OnSave: func(records []editor.Record) {
			if cmd.JSON {
				printJSONL(os.Stdout, records)
			} else {
				if err := executor.Exec(ctx, records); err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("Failed to apply results")
				}
			}

			if cmd.Once {
				cancel()
			}
		},
	})

	if err := app.Run(ctx); err != nil {
		return err
	}

	return nil
}

type applyCmd struct {
	RootDir string `arg:"" help:"Directory the record sources are relative to" type:"existingdir"`
	Records string `arg:"" optional:"" default:"-" help:"JSON lines file of result records, - for stdin"`

	Overrides
}

func (cmd *applyCmd) Run(g *Globals) error {
	ctx := g.setup()
	cfg, err := g.load(cmd.RootDir, cmd.Overrides)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if cmd.Records != "-" {
		f, err := os.Open(cmd.Records)
		if err != nil {
			return fmt.Errorf("failed to open records: %w", err)
		}
		defer f.Close()
		r = f
	}
	records, err := preprocess.ReadRecords(r)
	if err != nil {
		return err
	}

	return newExecutor(cfg).Exec(ctx, records)
}

func newExecutor(cfg *config.Config) preprocess.Executor {
	return preprocess.Executor{
		BaseDir:     cfg.RootDir,
		OutputDir:   cfg.OutputDir,
		Transformer: preprocess.NewImagingTransformer(),
		Workers:     cfg.Workers,
	}
}

type configCmd struct {
	RootDir string `arg:"" optional:"" default:"." help:"Root directory"`

	Overrides
}

func (cmd *configCmd) Run(g *Globals) error {
	g.setup()
	cfg, err := g.load(cmd.RootDir, cmd.Overrides)
	if err != nil {
		return err
	}
	return cfg.Write(os.Stdout)
}

func printJSONL[T any](w io.Writer, data []T) {
	enc := json.NewEncoder(w)
	for _, item := range data {
		if err := enc.Encode(item); err != nil {
			log.Error().Err(err).Msg("Failed to encode item to JSON")
			continue
		}
	}
}
