//go:build !linux && !darwin && !windows

package platform

import "log/slog"

// Session is unavailable on this platform.
type Session struct{}

func Dial(*slog.Logger) (*Session, error) { return nil, ErrUnsupported }

func (s *Session) Subscribe(func(Event)) {}

func (s *Session) Notify(Notification) (uint32, error) { return 0, ErrUnsupported }

func (s *Session) CloseNotification(uint32) error { return ErrUnsupported }

func (s *Session) Inhibit(string, string) (uint32, error) { return 0, ErrUnsupported }

func (s *Session) Uninhibit(uint32) error { return ErrUnsupported }

func (s *Session) Close() error { return nil }
