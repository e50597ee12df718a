// Package adapter declares the narrow interfaces the Supervisor talks to
// the outside world through: a rasterizer that turns drawing commands
// into pixels, and a window-system surface that places those pixels on
// screen. Neither is implemented here — both are external collaborators
// per spec.md's Out of scope list, consumed the way box.go consumes a
// ContainerOps interface it never implements itself.
package adapter

import "github.com/banksean/deskicond/internal/wire"

// Rasterizer interprets a drawing-command list into pixels for one icon.
// Implemented by the desktop's raster backend, outside this module.
type Rasterizer interface {
	// Rasterize renders cmds at the given pixel size and returns an
	// opaque pixmap handle meaningful to the paired WindowAdapter.
	Rasterize(cmds []wire.DrawingCommand, size uint32) (Pixmap, error)
}

// Pixmap is an opaque rendered-image handle passed from a Rasterizer to
// a WindowAdapter. Its concrete representation (shared memory segment,
// texture handle, PNG bytes) is a decision for the raster backend.
type Pixmap any

// WindowAdapter positions a rendered icon's pixmap on the desktop
// surface and forwards window-system input back to the Supervisor.
// Implemented by the window-system integration, outside this module.
type WindowAdapter interface {
	// Place positions iconID's pixmap at pos on the desktop surface.
	Place(iconID string, pos wire.Position, pix Pixmap) error

	// Remove withdraws iconID's window-system presence, called when a
	// session is destroyed.
	Remove(iconID string) error
}

// InputSource is the window-system side of event delivery: something
// that produces wire.Event values destined for a specific icon's
// session, driven by window-system input (clicks, drags, key focus).
type InputSource interface {
	// Events returns a channel of (iconID, event) pairs. Closed when the
	// window-system integration shuts down.
	Events() <-chan IconEvent
}

// IconEvent pairs a wire.Event with the icon key it targets, the unit
// InputSource delivers and the Supervisor's DeliverEvent consumes.
type IconEvent struct {
	IconKey string
	Event   wire.Event
}
