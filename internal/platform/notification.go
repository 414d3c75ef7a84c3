package platform

import (
	"errors"
	"time"
)

// ErrUnsupported is returned by Dial on platforms without a desktop bus.
var ErrUnsupported = errors.New("desktop session not supported on this platform")

// Urgency follows the freedesktop urgency levels.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Action is a button shown on a notification.
type Action struct {
	ID    string
	Label string
}

// Notification describes one desktop notification. ReplacesID, when
// non-zero, updates an existing notification in place.
type Notification struct {
	AppName    string
	Icon       string
	Summary    string
	Body       string
	Actions    []Action
	Urgency    Urgency
	Resident   bool
	Timeout    time.Duration
	ReplacesID uint32
}

// Event is a notification signal coming back from the desktop.
type Event interface {
	NotificationID() uint32
}

// ActionInvoked reports a button press.
type ActionInvoked struct {
	ID     uint32
	Action string
}

// Closed reports that a notification went away.
type Closed struct {
	ID     uint32
	Reason uint32
}

func (e ActionInvoked) NotificationID() uint32 { return e.ID }
func (e Closed) NotificationID() uint32        { return e.ID }

// timeoutMillis maps a Timeout onto the wire value. Zero means the server
// default.
func timeoutMillis(d time.Duration) int32 {
	if d <= 0 {
		return -1
	}
	return int32(d / time.Millisecond)
}
