// Package web hosts editing sessions over HTTP. It delivers pointer streams,
// rotate, aspect-lock and commit/cancel signals to editing surfaces and
// exposes the collected results.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/rs/zerolog/log"

	"pickcrop/internal/bitmap"
	"pickcrop/internal/editor"
)

type Config struct {
	RootDir  string
	Listen   string
	Pipeline *bitmap.Pipeline
	Results  *editor.Results

	OnBeforeShutdown func()
	OnReady          func(addr string)
	OnSave           func(records []editor.Record)
}

type WebApp struct {
	config       Config
	ctx          context.Context
	resolver     bitmap.DirResolver
	sessions     *sessionStore
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewWebApp returns an app serving config.RootDir. ctx carries the logger used
// for work started by requests.
func NewWebApp(ctx context.Context, config Config) *WebApp {
	if config.Results == nil {
		config.Results = editor.NewResults(nil, nil)
	}
	if config.Listen == "" {
		config.Listen = "localhost:0"
	}
	return &WebApp{
		config:     config,
		ctx:        ctx,
		resolver:   bitmap.DirResolver{Root: config.RootDir},
		sessions:   newSessionStore(),
		shutdownCh: make(chan struct{}),
	}
}

func (a *WebApp) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// errorStatus maps failures of the editing core to HTTP status codes.
func errorStatus(err error) (int, string) {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.Is(err, bitmap.ErrSourceUnreadable),
		errors.Is(err, bitmap.ErrDecode),
		errors.Is(err, bitmap.ErrPersist),
		errors.Is(err, bitmap.ErrUnsupportedMediaOperation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, editor.ErrNotLoaded):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "Internal Server Error"
}

// App builds the fiber application with every route registered.
func (a *WebApp) App() *fiber.App {
	webapp := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code, message := errorStatus(err)
			if code == http.StatusNotFound && c.Path() == "/favicon.ico" {
				return nil
			}
			log.Ctx(a.ctx).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Msg("Request failed")
			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	webapp.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := a.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	filesRoot := http.Dir(a.config.RootDir)
	webapp.Get("/api/view", func(c *fiber.Ctx) error {
		filePath := c.Query("file")
		return filesystem.SendFile(c, filesRoot, filePath)
	})

	webapp.Get("/api/ls", func(c *fiber.Ctx) error {
		dir, err := walkMedia(a.ctx, a.config.RootDir)
		if err != nil {
			return fmt.Errorf("failed to walk dir: %w", err)
		}
		for i := range dir.Files {
			dir.Files[i].URL = "/api/view?file=" + url.QueryEscape(dir.Files[i].Name)
		}
		return c.JSON(dir)
	})

	webapp.Post("/api/sessions", a.createSession)
	webapp.Get("/api/sessions/:id", a.withSession(a.getSession))
	webapp.Get("/api/sessions/:id/bitmap", a.withSession(a.sessionBitmap))
	webapp.Post("/api/sessions/:id/pointer", a.withSession(a.pointer))
	webapp.Post("/api/sessions/:id/rotate", a.withSession(a.rotate))
	webapp.Post("/api/sessions/:id/lock", a.withSession(a.lock))
	webapp.Post("/api/sessions/:id/commit", a.withSession(a.commit))
	webapp.Post("/api/sessions/:id/cancel", a.withSession(a.cancel))

	webapp.Get("/api/results", func(c *fiber.Ctx) error {
		return c.JSON(a.config.Results.Records())
	})

	webapp.Post("/api/save", func(c *fiber.Ctx) error {
		if fn := a.config.OnSave; fn != nil {
			fn(a.config.Results.Records())
		}
		return c.SendStatus(http.StatusNoContent)
	})
	webapp.Post("/api/shutdown", func(c *fiber.Ctx) error {
		a.Shutdown()
		return nil
	})

	return webapp
}

func (a *WebApp) Run(ctx context.Context) error {
	webapp := a.App()

	go func() {
		select {
		case <-ctx.Done():
		case <-a.shutdownCh:
		}
		if fn := a.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if err := webapp.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	listener, err := net.Listen("tcp", a.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := webapp.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
