//go:build linux

package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyInterface = "org.freedesktop.Notifications"

	screenSaverDest = "org.freedesktop.ScreenSaver"
	screenSaverPath = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
)

// Session is a private session-bus connection used for notifications and
// the display hold. An inhibit cookie lives as long as the connection.
type Session struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	signals chan *dbus.Signal

	mu       sync.Mutex
	handlers []func(Event)
	quit     chan struct{}
}

// Dial connects to the session bus and subscribes to notification signals.
func Dial(logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(notifyPath),
		dbus.WithMatchInterface(notifyInterface),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe notification signals: %w", err)
	}
	s := &Session{
		conn:    conn,
		logger:  logger,
		signals: make(chan *dbus.Signal, 16),
		quit:    make(chan struct{}),
	}
	conn.Signal(s.signals)
	go s.dispatch()
	return s, nil
}

// Subscribe registers fn for every notification event. fn runs on the
// signal goroutine.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.handlers = append(s.handlers, fn)
	s.mu.Unlock()
}

func (s *Session) dispatch() {
	for {
		var sig *dbus.Signal
		select {
		case sig = <-s.signals:
		case <-s.quit:
			return
		}
		ev, ok := parseSignal(sig)
		if !ok {
			continue
		}
		s.mu.Lock()
		handlers := append([]func(Event){}, s.handlers...)
		s.mu.Unlock()
		for _, fn := range handlers {
			fn(ev)
		}
	}
}

// Notify shows or replaces a notification and returns its id.
func (s *Session) Notify(n Notification) (uint32, error) {
	obj := s.conn.Object(notifyDest, notifyPath)
	var id uint32
	err := obj.Call(notifyInterface+".Notify", 0,
		n.AppName, n.ReplacesID, n.Icon, n.Summary, n.Body,
		actionList(n.Actions), hints(n), timeoutMillis(n.Timeout),
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}

// CloseNotification removes a notification from the screen.
func (s *Session) CloseNotification(id uint32) error {
	obj := s.conn.Object(notifyDest, notifyPath)
	if err := obj.Call(notifyInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	return nil
}

// Inhibit keeps the screen saver away until Uninhibit is called with the
// returned cookie.
func (s *Session) Inhibit(app, reason string) (uint32, error) {
	obj := s.conn.Object(screenSaverDest, screenSaverPath)
	var cookie uint32
	if err := obj.Call(screenSaverDest+".Inhibit", 0, app, reason).Store(&cookie); err != nil {
		return 0, fmt.Errorf("inhibit screen saver: %w", err)
	}
	s.logger.Debug("display hold acquired", "cookie", cookie)
	return cookie, nil
}

// Uninhibit releases a hold taken with Inhibit.
func (s *Session) Uninhibit(cookie uint32) error {
	obj := s.conn.Object(screenSaverDest, screenSaverPath)
	if err := obj.Call(screenSaverDest+".UnInhibit", 0, cookie).Err; err != nil {
		return fmt.Errorf("release screen saver hold: %w", err)
	}
	s.logger.Debug("display hold released", "cookie", cookie)
	return nil
}

// Close drops the bus connection.
func (s *Session) Close() error {
	s.conn.RemoveSignal(s.signals)
	close(s.quit)
	return s.conn.Close()
}

func actionList(actions []Action) []string {
	out := make([]string, 0, len(actions)*2)
	for _, a := range actions {
		out = append(out, a.ID, a.Label)
	}
	return out
}

func hints(n Notification) map[string]dbus.Variant {
	h := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}
	if n.Resident {
		h["resident"] = dbus.MakeVariant(true)
	}
	return h
}

func parseSignal(sig *dbus.Signal) (Event, bool) {
	if sig == nil || sig.Path != notifyPath {
		return nil, false
	}
	switch sig.Name {
	case notifyInterface + ".ActionInvoked":
		if len(sig.Body) < 2 {
			return nil, false
		}
		id, ok1 := sig.Body[0].(uint32)
		action, ok2 := sig.Body[1].(string)
		if !ok1 || !ok2 {
			return nil, false
		}
		return ActionInvoked{ID: id, Action: action}, true
	case notifyInterface + ".NotificationClosed":
		if len(sig.Body) < 2 {
			return nil, false
		}
		id, ok1 := sig.Body[0].(uint32)
		reason, ok2 := sig.Body[1].(uint32)
		if !ok1 || !ok2 {
			return nil, false
		}
		return Closed{ID: id, Reason: reason}, true
	}
	return nil, false
}
