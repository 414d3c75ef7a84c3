package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

type platformBackend interface {
	ListWindows() ([]WindowInfo, error)
	DescribeWindow(id uint32) (WindowInfo, error)
	CaptureWindowImage(id uint32) (*image.RGBA, error)
}

var backend platformBackend = newBackend()

var errNoWindows = errors.New("no windows available")

// WindowInfo describes a top-level window.
type WindowInfo struct {
	Index int
	ID    uint32
	// Frame is the window manager frame wrapping ID, or ID itself when the
	// window is not reparented.
	Frame      uint32
	Title      string
	Class      string
	Instance   string
	PID        uint32
	Executable string
	Rect       image.Rectangle
	FrameRect  image.Rectangle
	Active     bool
}

// ListWindows returns top-level windows, topmost first.
func ListWindows() ([]WindowInfo, error) {
	return backend.ListWindows()
}

// DescribeWindow fills in the metadata for a window id.
func DescribeWindow(id uint32) (WindowInfo, error) {
	return backend.DescribeWindow(id)
}

// SelectWindow matches a selector against windows. Accepted forms are
// "active", "id:<id>", "class:<text>", "title:<text>", a bare index, a hex
// id, or free text matched against title and class.
func SelectWindow(selector string, windows []WindowInfo) (WindowInfo, error) {
	if len(windows) == 0 {
		return WindowInfo{}, errNoWindows
	}
	sel := strings.TrimSpace(selector)
	lower := strings.ToLower(sel)
	switch {
	case sel == "" || lower == "active":
		for _, win := range windows {
			if win.Active {
				return win, nil
			}
		}
		if sel == "" {
			return windows[0], nil
		}
		return WindowInfo{}, fmt.Errorf("no active window detected")
	case strings.HasPrefix(lower, "id:"):
		id, err := ParseWindowID(sel[3:])
		if err != nil {
			return WindowInfo{}, err
		}
		return windowByID(windows, id)
	case strings.HasPrefix(lower, "class:"):
		needle := strings.TrimSpace(lower[6:])
		for _, win := range windows {
			if strings.Contains(strings.ToLower(win.Class), needle) || strings.Contains(strings.ToLower(win.Instance), needle) {
				return win, nil
			}
		}
		return WindowInfo{}, fmt.Errorf("window with class %q not found", needle)
	case strings.HasPrefix(lower, "title:"):
		needle := strings.TrimSpace(lower[6:])
		for _, win := range windows {
			if strings.Contains(strings.ToLower(win.Title), needle) {
				return win, nil
			}
		}
		return WindowInfo{}, fmt.Errorf("window with title %q not found", needle)
	case strings.HasPrefix(lower, "0x"):
		id, err := ParseWindowID(sel)
		if err != nil {
			return WindowInfo{}, err
		}
		return windowByID(windows, id)
	}
	if idx, err := strconv.Atoi(sel); err == nil {
		if idx < 0 || idx >= len(windows) {
			return WindowInfo{}, fmt.Errorf("window index %d out of range", idx)
		}
		return windows[idx], nil
	}
	for _, win := range windows {
		if strings.Contains(strings.ToLower(win.Title), lower) || strings.Contains(strings.ToLower(win.Class), lower) {
			return win, nil
		}
	}
	return WindowInfo{}, fmt.Errorf("no window matched %q", selector)
}

func windowByID(windows []WindowInfo, id uint32) (WindowInfo, error) {
	for _, win := range windows {
		if win.ID == id || win.Frame == id {
			return win, nil
		}
	}
	return WindowInfo{}, fmt.Errorf("window id 0x%x not found", id)
}

// ParseWindowID accepts decimal or 0x-prefixed hexadecimal ids.
func ParseWindowID(val string) (uint32, error) {
	v := strings.TrimSpace(val)
	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v = v[2:]
		base = 16
	}
	parsed, err := strconv.ParseUint(v, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q", val)
	}
	return uint32(parsed), nil
}
