package capture

import (
	"context"
	"errors"
	"image"
)

// ErrMechanism wraps failures reported by a capture backend.
var ErrMechanism = errors.New("capture mechanism failed")

// Options controls a single capture. The orchestrator builds a fresh value
// from the settings snapshot for every request.
type Options struct {
	IncludeCursor      bool
	UseFlash           bool
	IncludeWindowFrame bool
	IncludeStyles      bool
	WindowAsArea       bool
	PlayShutterSound   bool
	PlayTimerSound     bool
	SendNotification   bool
	OpenAfter          bool
	TimerSeconds       int
	// TimerSound and ShutterSound are commands run for countdown ticks
	// and at the moment of capture.
	TimerSound   string
	ShutterSound string
	// Filename is the absolute destination path.
	Filename string
}

// HelperMode selects the interactive picker used before a command runs.
type HelperMode int

const (
	HelperNone HelperMode = iota
	HelperWindow
	HelperArea
)

func (m HelperMode) String() string {
	switch m {
	case HelperWindow:
		return "window"
	case HelperArea:
		return "area"
	default:
		return "none"
	}
}

// Selection is the geometry returned by an interactive picker. Window is
// set only when a window was picked.
type Selection struct {
	Rect   image.Rectangle
	Window *WindowInfo
}

// Result describes a finished capture.
type Result struct {
	Path      string
	Selection *Selection
}

// Mechanism performs the actual pixel capture.
type Mechanism interface {
	// Capture writes kind to opts.Filename. sel, when non-nil, reuses a
	// previous interactive selection instead of prompting again.
	Capture(ctx context.Context, kind Kind, opts Options, sel *Selection) (Result, error)
}

// Selector lets the user pick a window or an area.
type Selector interface {
	Select(ctx context.Context, mode HelperMode) (Selection, error)
}
