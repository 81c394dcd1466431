package web

import (
	"bytes"
	"image"
	"net/http"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pickcrop/internal/bitmap"
	"pickcrop/internal/crop"
	"pickcrop/internal/editor"
	"pickcrop/internal/media"
)

// session is one editing surface. Its mutex serializes every call into the
// surface, so the surface only ever sees one caller at a time.
type session struct {
	mu      sync.Mutex
	id      string
	surface *editor.Surface
}

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) add(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

type rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func rectOf(r image.Rectangle) rect {
	return rect{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

type sessionState struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Type       media.Type        `json:"type"`
	Loading    bool              `json:"loading"`
	Original   bitmap.Dimensions `json:"original"`
	Bounds     rect              `json:"bounds"`
	Overlay    rect              `json:"overlay"`
	Rotation   crop.Angle        `json:"rotation"`
	Locked     bool              `json:"locked"`
	Gesture    crop.Region       `json:"gesture"`
	CropPoints crop.Points       `json:"cropPoints"`
	Changed    bool              `json:"changed"`
}

func (sess *session) state(changed bool) sessionState {
	s := sess.surface
	return sessionState{
		ID:         sess.id,
		Source:     s.Source(),
		Type:       s.Kind(),
		Loading:    s.Loading(),
		Original:   s.Original(),
		Bounds:     rectOf(s.Bounds()),
		Overlay:    rectOf(s.Overlay()),
		Rotation:   s.Rotation(),
		Locked:     s.AspectRatioLocked(),
		Gesture:    s.Gesture(),
		CropPoints: s.CropPoints(),
		Changed:    changed,
	}
}

type sessionHandler func(c *fiber.Ctx, sess *session) error

// withSession looks up the session named in the path and holds its lock for
// the duration of the handler.
func (a *WebApp) withSession(h sessionHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := a.sessions.get(c.Params("id"))
		if !ok {
			return fiber.NewError(http.StatusNotFound, "unknown session")
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if _, err := sess.surface.Poll(a.ctx); err != nil {
			return err
		}
		return h(c, sess)
	}
}

func (a *WebApp) createSession(c *fiber.Ctx) error {
	var request struct {
		File   string `json:"file"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if request.File == "" || request.Width <= 0 || request.Height <= 0 {
		return fiber.NewError(http.StatusBadRequest, "file, width and height are required")
	}

	path, err := a.resolver.Path(request.File)
	if err != nil {
		return err
	}
	kind, _, err := media.DetectFile(path)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "no such file")
	}
	if kind == media.Unknown {
		return fiber.NewError(http.StatusUnsupportedMediaType, "not an image or video")
	}

	surface := editor.NewSurface(a.config.Pipeline)
	surface.SetSource(a.ctx, request.File, kind)
	surface.Resize(a.ctx, request.Width, request.Height)
	if err := surface.Await(a.ctx); err != nil {
		return err
	}

	sess := &session{id: uuid.NewString(), surface: surface}
	a.sessions.add(sess)
	a.config.Results.Add(request.File, kind)
	log.Ctx(a.ctx).Info().Str("session", sess.id).Str("source", request.File).Msg("session opened")
	return c.Status(http.StatusCreated).JSON(sess.state(false))
}

func (a *WebApp) getSession(c *fiber.Ctx, sess *session) error {
	return c.JSON(sess.state(false))
}

func (a *WebApp) sessionBitmap(c *fiber.Ctx, sess *session) error {
	img := sess.surface.Bitmap()
	if img == nil {
		return editor.ErrNotLoaded
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}

func (a *WebApp) pointer(c *fiber.Ctx, sess *session) error {
	var ev crop.Event
	if err := c.BodyParser(&ev); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	changed := sess.surface.HandlePointer(ev)
	return c.JSON(sess.state(changed))
}

func (a *WebApp) rotate(c *fiber.Ctx, sess *session) error {
	if err := sess.surface.Rotate(); err != nil {
		return err
	}
	return c.JSON(sess.state(true))
}

func (a *WebApp) lock(c *fiber.Ctx, sess *session) error {
	var request struct {
		Locked bool `json:"locked"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sess.surface.SetAspectRatioLocked(request.Locked)
	return c.JSON(sess.state(false))
}

func (a *WebApp) commit(c *fiber.Ctx, sess *session) error {
	s := sess.surface
	f, err := s.Finalize()
	if err != nil {
		return err
	}

	var location string
	if s.Kind() == media.Image {
		location, err = a.config.Pipeline.Persist(a.ctx, f.Bitmap).Await(a.ctx)
		if err != nil {
			return err
		}
	}
	a.config.Results.Commit(s.Source(), s.Kind(), f, location)
	a.sessions.remove(sess.id)

	rec, _ := a.config.Results.Get(s.Source())
	log.Ctx(a.ctx).Info().
		Str("session", sess.id).
		Str("source", s.Source()).
		Int("rotation", int(f.Rotation)).
		Stringer("crop", f.Points).
		Msg("session committed")
	return c.JSON(rec)
}

func (a *WebApp) cancel(c *fiber.Ctx, sess *session) error {
	source := sess.surface.Source()
	a.config.Results.Cancel(source)
	a.sessions.remove(sess.id)
	rec, _ := a.config.Results.Get(source)
	return c.JSON(rec)
}
