//go:build windows

package platform

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
)

func psQuote(s string) string {
	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'"
}

// Session shows toast notifications. Toasts cannot be updated or closed
// from here, so ids are only bookkeeping.
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
	if err := toast(n.AppName, n.Summary, n.Body, n.Icon); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	if n.ReplacesID != 0 {
		return n.ReplacesID, nil
	}
	return s.next.Add(1), nil
}

func (s *Session) CloseNotification(uint32) error { return nil }

func (s *Session) Inhibit(string, string) (uint32, error) { return 0, nil }

func (s *Session) Uninhibit(uint32) error { return nil }

func (s *Session) Close() error { return nil }

func toast(app, title, body, icon string) error {
	icon = strings.TrimSpace(icon)
	var script string
	if icon == "" {
		script = fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType=Windows Runtime] > $null; `+
			`$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02); `+
			`$texts = $template.GetElementsByTagName("text"); `+
			`$texts.Item(0).AppendChild($template.CreateTextNode(%s)) > $null; `+
			`$texts.Item(1).AppendChild($template.CreateTextNode(%s)) > $null; `+
			`$toast = [Windows.UI.Notifications.ToastNotification]::new($template); `+
			`$notifier = [Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%s); `+
			`$notifier.Show($toast);`, psQuote(title), psQuote(body), psQuote(app))
	} else {
		script = fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType=Windows Runtime] > $null; `+
			`$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastImageAndText02); `+
			`$texts = $template.GetElementsByTagName("text"); `+
			`$texts.Item(0).AppendChild($template.CreateTextNode(%s)) > $null; `+
			`$texts.Item(1).AppendChild($template.CreateTextNode(%s)) > $null; `+
			`$image = $template.GetElementsByTagName("image").Item(0); `+
			`$image.SetAttribute("src", %s); `+
			`$toast = [Windows.UI.Notifications.ToastNotification]::new($template); `+
			`$notifier = [Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%s); `+
			`$notifier.Show($toast);`, psQuote(title), psQuote(body), psQuote(icon), psQuote(app))
	}
	cmd := exec.Command("powershell.exe", "-NoProfile", "-Command", script)
	return cmd.Run()
}
