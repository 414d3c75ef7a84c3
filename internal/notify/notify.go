// Package notify keeps track of the notifications deskcap has on screen so
// they can be updated in place.
package notify

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/example/deskcap/internal/platform"
)

// Backend delivers notifications to the desktop.
type Backend interface {
	Notify(n platform.Notification) (uint32, error)
	CloseNotification(id uint32) error
}

// Preferences describes notification behaviour loaded from the environment.
type Preferences struct {
	AppName string
	Icon    string
	Timeout time.Duration
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{AppName: "deskcap", Icon: "camera-photo"}
}

// LoadPreferences reads overrides from DESKCAP_NOTIFY_* variables.
func LoadPreferences() Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(os.Getenv("DESKCAP_NOTIFY_TITLE")); v != "" {
		prefs.AppName = v
	}
	if v := strings.TrimSpace(os.Getenv("DESKCAP_NOTIFY_ICON")); v != "" {
		prefs.Icon = v
	}
	if v := strings.TrimSpace(os.Getenv("DESKCAP_NOTIFY_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			prefs.Timeout = d
		}
	}
	return prefs
}

// Center remembers the content of every live notification. It is not
// safe for concurrent use; call it from the event loop.
type Center struct {
	backend Backend
	prefs   Preferences
	logger  *slog.Logger
	live    map[uint32]platform.Notification
}

// NewCenter creates a Center delivering through backend.
func NewCenter(backend Backend, prefs Preferences, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		backend: backend,
		prefs:   prefs,
		logger:  logger,
		live:    make(map[uint32]platform.Notification),
	}
}

// Show sends a new notification. Empty app name, icon and timeout are
// filled from the preferences.
func (c *Center) Show(n platform.Notification) (uint32, error) {
	if n.AppName == "" {
		n.AppName = c.prefs.AppName
	}
	if n.Icon == "" {
		n.Icon = c.prefs.Icon
	}
	if n.Timeout == 0 {
		n.Timeout = c.prefs.Timeout
	}
	n.ReplacesID = 0
	id, err := c.backend.Notify(n)
	if err != nil {
		return 0, err
	}
	c.live[id] = n
	c.logger.Debug("notification shown", "id", id, "summary", n.Summary)
	return id, nil
}

// Update applies fn to a live notification and resends it in place. The
// server may answer with a new id; the returned id is the one to use from
// then on.
func (c *Center) Update(id uint32, fn func(*platform.Notification)) (uint32, error) {
	n, ok := c.live[id]
	if !ok {
		return id, fmt.Errorf("notification %d is not live", id)
	}
	fn(&n)
	n.ReplacesID = id
	got, err := c.backend.Notify(n)
	if err != nil {
		return id, err
	}
	n.ReplacesID = 0
	if got != id {
		delete(c.live, id)
	}
	c.live[got] = n
	return got, nil
}

// Close removes a notification from the screen.
func (c *Center) Close(id uint32) error {
	delete(c.live, id)
	return c.backend.CloseNotification(id)
}

// Forget drops bookkeeping for a notification the desktop already closed.
func (c *Center) Forget(id uint32) {
	delete(c.live, id)
}

// Lookup returns the last content sent for id.
func (c *Center) Lookup(id uint32) (platform.Notification, bool) {
	n, ok := c.live[id]
	return n, ok
}
