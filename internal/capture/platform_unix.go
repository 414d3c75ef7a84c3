//go:build linux || freebsd || openbsd || netbsd || dragonfly

package capture

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

type x11Backend struct{}

func newBackend() platformBackend {
	return x11Backend{}
}

func runningOnWayland() bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE")), "wayland") {
		return true
	}
	return os.Getenv("WAYLAND_DISPLAY") != ""
}

func connectX() (*xgb.Conn, xproto.Window, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, 0, fmt.Errorf("connect X server: %w", err)
	}
	setup := xproto.Setup(conn)
	if setup == nil {
		conn.Close()
		return nil, 0, fmt.Errorf("xproto setup unavailable")
	}
	screen := setup.DefaultScreen(conn)
	if screen == nil {
		conn.Close()
		return nil, 0, fmt.Errorf("xproto screen unavailable")
	}
	return conn, screen.Root, nil
}

func (x11Backend) ListWindows() ([]WindowInfo, error) {
	conn, root, err := connectX()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	activeID, _ := fetchActiveWindow(conn, root)
	windows, err := fetchWindows(conn, root, activeID)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, errNoWindows
	}
	return windows, nil
}

func (x11Backend) DescribeWindow(id uint32) (WindowInfo, error) {
	conn, root, err := connectX()
	if err != nil {
		return WindowInfo{}, err
	}
	defer conn.Close()

	win := clientWindow(conn, xproto.Window(id))
	info, err := describeWindow(conn, root, win)
	if err != nil {
		return WindowInfo{}, fmt.Errorf("describe window 0x%x: %w", id, err)
	}
	if activeID, err := fetchActiveWindow(conn, root); err == nil {
		info.Active = info.ID == activeID
	}
	return info, nil
}

func (x11Backend) CaptureWindowImage(id uint32) (*image.RGBA, error) {
	conn, _, err := connectX()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	geom, err := xproto.GetGeometry(conn, xproto.Drawable(id)).Reply()
	if err != nil {
		return nil, fmt.Errorf("window geometry: %w", err)
	}
	reply, err := xproto.GetImage(conn, xproto.ImageFormatZPixmap, xproto.Drawable(id), 0, 0, geom.Width, geom.Height, ^uint32(0)).Reply()
	if err != nil {
		return nil, fmt.Errorf("window pixels: %w", err)
	}
	return xImageToRGBA(xproto.Setup(conn), reply, int(geom.Width), int(geom.Height), "window")
}

func fetchActiveWindow(conn *xgb.Conn, root xproto.Window) (uint32, error) {
	atom, err := internAtom(conn, "_NET_ACTIVE_WINDOW")
	if err != nil {
		return 0, err
	}
	reply, err := xproto.GetProperty(conn, false, root, atom, xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return 0, err
	}
	if reply.Format != 32 || reply.ValueLen == 0 {
		return 0, fmt.Errorf("active window unavailable")
	}
	return xgb.Get32(reply.Value), nil
}

func fetchWindows(conn *xgb.Conn, root xproto.Window, activeID uint32) ([]WindowInfo, error) {
	ids, err := clientList(conn, root)
	if err != nil {
		return nil, err
	}
	windows := make([]WindowInfo, 0, len(ids))
	for idx := len(ids) - 1; idx >= 0; idx-- {
		info, err := describeWindow(conn, root, ids[idx])
		if err != nil {
			continue
		}
		info.Index = len(windows)
		info.Active = info.ID == activeID
		windows = append(windows, info)
	}
	return windows, nil
}

func clientList(conn *xgb.Conn, root xproto.Window) ([]xproto.Window, error) {
	var reply *xproto.GetPropertyReply
	for _, name := range []string{"_NET_CLIENT_LIST_STACKING", "_NET_CLIENT_LIST"} {
		atom, err := internAtom(conn, name)
		if err != nil {
			return nil, err
		}
		reply, err = xproto.GetProperty(conn, false, root, atom, xproto.AtomWindow, 0, 1<<16).Reply()
		if err == nil && reply.Format == 32 && reply.ValueLen > 0 {
			break
		}
		reply = nil
	}
	if reply == nil {
		return nil, nil
	}
	ids := make([]xproto.Window, 0, reply.ValueLen)
	for idx := 0; idx < int(reply.ValueLen); idx++ {
		ids = append(ids, xproto.Window(xgb.Get32(reply.Value[idx*4:])))
	}
	return ids, nil
}

func describeWindow(conn *xgb.Conn, root, win xproto.Window) (WindowInfo, error) {
	title := readUTF8Property(conn, win, "_NET_WM_NAME")
	if title == "" {
		title = readStringProperty(conn, win, "WM_NAME")
	}
	class, instance := readClass(conn, win)
	pid := readPID(conn, win)
	rect, err := windowRect(conn, root, win)
	if err != nil {
		return WindowInfo{}, err
	}
	frame := frameWindow(conn, root, win)
	frameRect := rect
	if frame != win {
		if r, err := windowRect(conn, root, frame); err == nil {
			frameRect = r
		}
	}
	return WindowInfo{
		ID:         uint32(win),
		Frame:      uint32(frame),
		Title:      title,
		Class:      class,
		Instance:   instance,
		PID:        pid,
		Executable: readExecutable(pid),
		Rect:       rect,
		FrameRect:  frameRect,
	}, nil
}

// frameWindow walks up to the direct child of root, which is the window
// manager frame for reparented clients.
func frameWindow(conn *xgb.Conn, root, win xproto.Window) xproto.Window {
	current := win
	for i := 0; i < 16; i++ {
		tree, err := xproto.QueryTree(conn, current).Reply()
		if err != nil || tree.Parent == 0 || tree.Parent == root {
			return current
		}
		current = tree.Parent
	}
	return current
}

// clientWindow resolves a frame id, as returned by pickers, to the client
// window carrying WM_STATE.
func clientWindow(conn *xgb.Conn, win xproto.Window) xproto.Window {
	atom, err := internAtom(conn, "WM_STATE")
	if err != nil || atom == 0 {
		return win
	}
	queue := []xproto.Window{win}
	for depth := 0; depth < 4 && len(queue) > 0; depth++ {
		var next []xproto.Window
		for _, w := range queue {
			reply, err := xproto.GetProperty(conn, false, w, atom, xproto.GetPropertyTypeAny, 0, 0).Reply()
			if err == nil && reply.Type != xproto.AtomNone {
				return w
			}
			tree, err := xproto.QueryTree(conn, w).Reply()
			if err == nil {
				next = append(next, tree.Children...)
			}
		}
		queue = next
	}
	return win
}

func windowRect(conn *xgb.Conn, root, win xproto.Window) (image.Rectangle, error) {
	geo, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}
	trans, err := xproto.TranslateCoordinates(conn, win, root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}
	x := int(trans.DstX) - int(geo.BorderWidth)
	y := int(trans.DstY) - int(geo.BorderWidth)
	width := int(geo.Width) + int(geo.BorderWidth)*2
	height := int(geo.Height) + int(geo.BorderWidth)*2
	return image.Rect(x, y, x+width, y+height), nil
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func readUTF8Property(conn *xgb.Conn, win xproto.Window, name string) string {
	atom, err := internAtom(conn, name)
	if err != nil {
		return ""
	}
	utf8, err := internAtom(conn, "UTF8_STRING")
	if err != nil {
		return ""
	}
	reply, err := xproto.GetProperty(conn, false, win, atom, utf8, 0, 1<<16).Reply()
	if err != nil || reply.ValueLen == 0 {
		return ""
	}
	return strings.TrimRight(string(reply.Value), "\x00")
}

func readStringProperty(conn *xgb.Conn, win xproto.Window, name string) string {
	atom, err := internAtom(conn, name)
	if err != nil {
		return ""
	}
	reply, err := xproto.GetProperty(conn, false, win, atom, xproto.AtomString, 0, 1<<16).Reply()
	if err != nil || reply.ValueLen == 0 {
		return ""
	}
	return strings.TrimRight(string(reply.Value), "\x00")
}

func readClass(conn *xgb.Conn, win xproto.Window) (class string, instance string) {
	atom, err := internAtom(conn, "WM_CLASS")
	if err != nil {
		return "", ""
	}
	reply, err := xproto.GetProperty(conn, false, win, atom, xproto.AtomString, 0, 64).Reply()
	if err != nil || reply.ValueLen == 0 {
		return "", ""
	}
	return splitClass(reply.Value)
}

// splitClass decodes WM_CLASS, which holds "instance\0class\0".
func splitClass(raw []byte) (class string, instance string) {
	var vals []string
	for _, p := range bytes.Split(raw, []byte{0}) {
		if len(p) > 0 {
			vals = append(vals, string(p))
		}
	}
	switch len(vals) {
	case 0:
		return "", ""
	case 1:
		return vals[0], vals[0]
	default:
		return vals[1], vals[0]
	}
}

func readPID(conn *xgb.Conn, win xproto.Window) uint32 {
	atom, err := internAtom(conn, "_NET_WM_PID")
	if err != nil {
		return 0
	}
	reply, err := xproto.GetProperty(conn, false, win, atom, xproto.AtomCardinal, 0, 1).Reply()
	if err != nil || reply.Format != 32 || reply.ValueLen == 0 {
		return 0
	}
	return xgb.Get32(reply.Value)
}

func readExecutable(pid uint32) string {
	if pid == 0 {
		return ""
	}
	if data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid)); err == nil {
		return strings.TrimSpace(string(data))
	}
	if exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid)); err == nil {
		return filepath.Base(exe)
	}
	return ""
}
