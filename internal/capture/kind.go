package capture

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the target of a capture request. The set of kinds is closed;
// switch on the concrete type.
type Kind interface {
	// Tag is the value substituted for %TYPE in filenames.
	Tag() string
	fmt.Stringer
	isKind()
}

// Screen captures every monitor as one image.
type Screen struct{}

// Window captures a single top-level window.
type Window struct{}

// Area captures an interactively selected rectangle.
type Area struct{}

// CompositorSurface captures whatever the compositor renders, panels and
// menus included.
type CompositorSurface struct{}

// Monitor captures one output by index.
type Monitor struct{ Index int }

// Repeat re-runs the previous capture.
type Repeat struct{}

func (Screen) Tag() string            { return "screen" }
func (Window) Tag() string            { return "window" }
func (Area) Tag() string              { return "area" }
func (CompositorSurface) Tag() string { return "ui" }
func (Monitor) Tag() string           { return "monitor" }
func (Repeat) Tag() string            { return "" }

func (Screen) String() string            { return "screen" }
func (Window) String() string            { return "window" }
func (Area) String() string              { return "area" }
func (CompositorSurface) String() string { return "ui" }
func (m Monitor) String() string         { return "monitor " + strconv.Itoa(m.Index) }
func (Repeat) String() string            { return "repeat" }

func (Screen) isKind()            {}
func (Window) isKind()            {}
func (Area) isKind()              {}
func (CompositorSurface) isKind() {}
func (Monitor) isKind()           {}
func (Repeat) isKind()            {}

// ParseKind reads a kind name as typed on the command line. Monitor takes
// its index as the following argument.
func ParseKind(args []string) (Kind, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("capture kind required")
	}
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "screen", "desktop":
		return Screen{}, nil
	case "window":
		return Window{}, nil
	case "area", "region":
		return Area{}, nil
	case "ui", "cinnamon", "compositor":
		return CompositorSurface{}, nil
	case "repeat", "redo":
		return Repeat{}, nil
	case "monitor":
		if len(args) < 2 {
			return nil, fmt.Errorf("monitor index required")
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(args[1], "#"))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid monitor index %q", args[1])
		}
		return Monitor{Index: idx}, nil
	default:
		return nil, fmt.Errorf("unknown capture kind %q", args[0])
	}
}
