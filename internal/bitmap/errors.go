package bitmap

import "errors"

// Failure categories reported by the loader, persister and pipeline.
// Each error returned by this package wraps exactly one of them.
var (
	ErrSourceUnreadable          = errors.New("source unreadable")
	ErrDecode                    = errors.New("decode failed")
	ErrPersist                   = errors.New("persist failed")
	ErrUnsupportedMediaOperation = errors.New("unsupported media operation")
)

// ErrClosed is returned for work submitted after the pipeline was closed.
var ErrClosed = errors.New("pipeline closed")

// ErrPanicked is returned for pipeline work that panicked.
var ErrPanicked = errors.New("pipeline task panicked")
