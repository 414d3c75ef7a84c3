//go:build darwin

package platform

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync/atomic"
)

// Session shows notifications through Notification Center. Actions and
// updates in place are not available there.
type Session struct {
	logger *slog.Logger
	next   atomic.Uint32
}

func Dial(logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{logger: logger}, nil
}

func (s *Session) Subscribe(func(Event)) {}

func (s *Session) Notify(n Notification) (uint32, error) {
	script := fmt.Sprintf("display notification %q with title %q", n.Body, n.Summary)
	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	if n.ReplacesID != 0 {
		return n.ReplacesID, nil
	}
	return s.next.Add(1), nil
}

func (s *Session) CloseNotification(uint32) error { return nil }

// Inhibit runs caffeinate for the lifetime of the hold.
func (s *Session) Inhibit(app, reason string) (uint32, error) {
	cmd := exec.Command("caffeinate", "-d")
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("inhibit display sleep: %w", err)
	}
	s.logger.Debug("display hold acquired", "app", app, "reason", reason, "pid", cmd.Process.Pid)
	return uint32(cmd.Process.Pid), nil
}

func (s *Session) Uninhibit(cookie uint32) error {
	if err := exec.Command("kill", fmt.Sprint(cookie)).Run(); err != nil {
		return fmt.Errorf("release display hold: %w", err)
	}
	return nil
}

func (s *Session) Close() error { return nil }
