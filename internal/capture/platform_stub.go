//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package capture

import (
	"errors"
	"image"
)

var errNoWindowSystem = errors.New("window inspection needs an X11 session")

// noWindows serves platforms without X11; Desktop falls back to rectangle
// grabs for windows.
type noWindows struct{}

func newBackend() platformBackend { return noWindows{} }

func (noWindows) ListWindows() ([]WindowInfo, error)             { return nil, errNoWindowSystem }
func (noWindows) DescribeWindow(uint32) (WindowInfo, error)      { return WindowInfo{}, errNoWindowSystem }
func (noWindows) CaptureWindowImage(uint32) (*image.RGBA, error) { return nil, errNoWindowSystem }

func runningOnWayland() bool { return false }
