//go:build (linux || freebsd || openbsd || netbsd || dragonfly) && !cgo

package clipboard

import (
	"errors"
	"os"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

var (
	initOnce     sync.Once
	initErr      error
	errNoDisplay = errors.New("clipboard initialization requires DISPLAY or WAYLAND_DISPLAY")
	owner        *selectionOwner
)

func ensureInit() error {
	initOnce.Do(func() {
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			initErr = errNoDisplay
			return
		}
		owner, initErr = newSelectionOwner()
	})
	return initErr
}

// WritePNG publishes encoded PNG data. The daemon keeps ownership of the
// selection until another client takes it.
func WritePNG(data []byte) error {
	if err := ensureInit(); err != nil {
		return err
	}
	return owner.offer(offer{image: true, data: data})
}

// WriteText writes text data to the clipboard.
func WriteText(text string) error {
	if err := ensureInit(); err != nil {
		return err
	}
	return owner.offer(offer{data: []byte(text)})
}

// offer is the single payload the daemon currently serves.
type offer struct {
	image bool
	data  []byte
}

type selectionOwner struct {
	conn   *xgb.Conn
	window xproto.Window
	atoms  map[string]xproto.Atom

	mu      sync.RWMutex
	current offer
}

var atomNames = []string{"CLIPBOARD", "TARGETS", "UTF8_STRING", "text/plain;charset=utf-8", "image/png"}

func newSelectionOwner() (*selectionOwner, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, err
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	window, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	mask := []uint32{xproto.EventMaskPropertyChange | xproto.EventMaskStructureNotify}
	err = xproto.CreateWindowChecked(conn, screen.RootDepth, window, screen.Root,
		0, 0, 1, 1, 0, xproto.WindowClassInputOutput, screen.RootVisual, xproto.CwEventMask, mask).Check()
	if err != nil {
		conn.Close()
		return nil, err
	}
	atoms := make(map[string]xproto.Atom, len(atomNames))
	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			xproto.DestroyWindow(conn, window)
			conn.Close()
			return nil, err
		}
		atoms[name] = reply.Atom
	}
	o := &selectionOwner{conn: conn, window: window, atoms: atoms}
	go o.serve()
	return o, nil
}

func (o *selectionOwner) offer(p offer) error {
	o.mu.Lock()
	o.current = offer{image: p.image, data: append([]byte(nil), p.data...)}
	o.mu.Unlock()
	return xproto.SetSelectionOwnerChecked(o.conn, o.window, o.atoms["CLIPBOARD"], xproto.TimeCurrentTime).Check()
}

func (o *selectionOwner) serve() {
	for {
		ev, err := o.conn.WaitForEvent()
		if err != nil {
			return
		}
		switch e := ev.(type) {
		case xproto.SelectionRequestEvent:
			o.answer(e)
		case xproto.SelectionClearEvent:
			o.mu.Lock()
			o.current = offer{}
			o.mu.Unlock()
		}
	}
}

// targets lists the atoms the current offer can be converted to.
func (o *selectionOwner) targets(p offer) []xproto.Atom {
	list := []xproto.Atom{o.atoms["TARGETS"]}
	switch {
	case len(p.data) == 0:
	case p.image:
		list = append(list, o.atoms["image/png"])
	default:
		list = append(list, o.atoms["UTF8_STRING"], xproto.AtomString, o.atoms["text/plain;charset=utf-8"])
	}
	return list
}

func (o *selectionOwner) answer(e xproto.SelectionRequestEvent) {
	property := e.Property
	if property == xproto.AtomNone {
		property = e.Target
	}

	o.mu.RLock()
	p := o.current
	o.mu.RUnlock()

	var (
		typ     xproto.Atom
		format  byte = 8
		payload []byte
	)
	switch {
	case e.Target == o.atoms["TARGETS"]:
		list := o.targets(p)
		payload = make([]byte, 4*len(list))
		for i, a := range list {
			xgb.Put32(payload[4*i:], uint32(a))
		}
		typ, format = xproto.AtomAtom, 32
	case len(p.data) == 0:
		property = xproto.AtomNone
	case p.image && e.Target == o.atoms["image/png"]:
		typ, payload = o.atoms["image/png"], p.data
	case !p.image && (e.Target == o.atoms["UTF8_STRING"] || e.Target == xproto.AtomString || e.Target == o.atoms["text/plain;charset=utf-8"]):
		typ, payload = o.atoms["UTF8_STRING"], p.data
	default:
		property = xproto.AtomNone
	}

	if property != xproto.AtomNone {
		units := uint32(len(payload)) / uint32(format/8)
		xproto.ChangeProperty(o.conn, xproto.PropModeReplace, e.Requestor, property, typ, format, units, payload)
	}

	notify := xproto.SelectionNotifyEvent{
		Time:      e.Time,
		Requestor: e.Requestor,
		Selection: e.Selection,
		Target:    e.Target,
		Property:  property,
	}
	_ = xproto.SendEvent(o.conn, false, e.Requestor, 0, string(notify.Bytes()))
}
