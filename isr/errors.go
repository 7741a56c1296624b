package isr

import "errors"

// Configuration errors. All of them prevent the engine from starting.
var (
	// ErrNilStore indicates Config.Store is nil.
	ErrNilStore = errors.New("isr: store is nil")

	// ErrNilTagIndex indicates Config.Tags is nil.
	ErrNilTagIndex = errors.New("isr: tag index is nil")

	// ErrNilRender indicates Config.Render is nil.
	ErrNilRender = errors.New("isr: render function is nil")

	// ErrNoRoutes indicates no routes were configured.
	ErrNoRoutes = errors.New("isr: no routes configured")
)
