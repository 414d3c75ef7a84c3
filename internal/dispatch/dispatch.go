// Package dispatch applies the clipboard and notification policy to a
// finished capture and reacts to notification buttons.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/example/deskcap/internal/artifact"
	"github.com/example/deskcap/internal/platform"
	"github.com/example/deskcap/internal/process"
	"github.com/example/deskcap/internal/settings"
)

// Notification action ids.
const (
	ActionDefault   = "default"
	ActionClose     = "close-notif"
	ActionOpenDir   = "open-dir"
	ActionOpenFile  = "open-file"
	ActionCopyData  = "copy-data"
	ActionCopyPath  = "copy-path"
	ActionOpenLink  = "open-link"
	ActionCustom    = "custom"
	ActionDelete    = "delete-file"
)

const deleteCloseWait = time.Second

// Clipboard messages attached to an artifact.
const (
	MessagePathCopied      = "Path has been copied to clipboard."
	MessageFilenameCopied  = "Filename has been copied to clipboard."
	MessageDirectoryCopied = "Directory has been copied to clipboard."
	MessageImageCopied     = "Image data has been copied to clipboard."
)

var (
	ErrDemoArtifact        = errors.New("demo captures cannot be deleted")
	ErrUnknownNotification = errors.New("unknown notification")
	ErrUnknownAction       = errors.New("unknown notification action")
	ErrNoLink              = errors.New("capture has no link")
	ErrNoCustomCommand     = errors.New("custom-action-command is not set")
	ErrAlreadyDispatched   = errors.New("capture already dispatched")
)

var (
	removeFile  = os.Remove
	openCommand = "xdg-open"
)

// Clipboard receives clipboard writes.
type Clipboard interface {
	WriteText(text string) error
	WriteImageFile(path string) error
}

// Notifier shows and updates desktop notifications.
type Notifier interface {
	Show(n platform.Notification) (uint32, error)
	Update(id uint32, fn func(*platform.Notification)) (uint32, error)
	Close(id uint32) error
}

// Runner launches helper commands.
type Runner interface {
	Split(command string) ([]string, error)
	RunArgs(argv []string, h process.Handlers) *process.Handle
}

// Scheduler runs fn on the event loop after d.
type Scheduler interface {
	After(d time.Duration, fn func()) *time.Timer
}

// StateChange is returned to the caller instead of mutating settings.
type StateChange struct {
	ClearCopyData bool
	Rebuild       bool
}

// Result reports what Dispatch did.
type Result struct {
	NotificationID uint32
	State          StateChange
}

type entry struct {
	artifact *artifact.Artifact
	deleted  bool
}

// Dispatcher is driven from the event loop only.
type Dispatcher struct {
	clipboard Clipboard
	notifier  Notifier
	runner    Runner
	scheduler Scheduler
	logger    *slog.Logger

	// FileManager, when set, opens the capture directory with the file
	// selected. Only nemo and nautilus accept a file argument that way.
	FileManager string
	// OnDelete is called after a capture file has been removed.
	OnDelete func(a *artifact.Artifact)

	live       map[uint32]*entry
	dispatched map[string]bool
}

// New creates a Dispatcher.
func New(cb Clipboard, n Notifier, r Runner, s Scheduler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		clipboard:  cb,
		notifier:   n,
		runner:     r,
		scheduler:  s,
		logger:     logger,
		live:       make(map[uint32]*entry),
		dispatched: make(map[string]bool),
	}
}

// Dispatch copies to the clipboard and shows the notification for a. It
// runs at most once per artifact.
func (d *Dispatcher) Dispatch(a *artifact.Artifact, snap settings.Snapshot) (Result, error) {
	var res Result
	if d.dispatched[a.ID.String()] {
		return res, fmt.Errorf("%w: %s", ErrAlreadyDispatched, a.ID)
	}
	d.dispatched[a.ID.String()] = true

	if snap.CopyData && snap.CopyDataAutoOff {
		res.State = StateChange{ClearCopyData: true, Rebuild: true}
	}

	var errs []error
	if snap.CopyToClipboard != settings.ClipboardOff {
		mode := snap.CopyToClipboard
		if snap.CopyData {
			mode = settings.ClipboardImageData
		}
		msg, err := d.copy(a, mode, snap)
		if err != nil {
			d.logger.Warn("clipboard copy failed", "mode", mode.String(), "path", a.Path, "err", err)
			errs = append(errs, err)
		}
		a.ClipboardMessage = msg
	}

	if a.Options.SendNotification {
		id, err := d.notifier.Show(captureNotification(a, snap))
		if err != nil {
			d.logger.Warn("notification failed", "path", a.Path, "err", err)
			errs = append(errs, err)
		} else {
			d.live[id] = &entry{artifact: a}
			res.NotificationID = id
		}
	}
	return res, errors.Join(errs...)
}

func (d *Dispatcher) copy(a *artifact.Artifact, mode settings.ClipboardMode, snap settings.Snapshot) (string, error) {
	switch mode {
	case settings.ClipboardPath:
		return MessagePathCopied, d.clipboard.WriteText(a.Path)
	case settings.ClipboardFilename:
		return MessageFilenameCopied, d.clipboard.WriteText(a.Filename)
	case settings.ClipboardDirectory:
		return MessageDirectoryCopied, d.clipboard.WriteText(a.Dir)
	case settings.ClipboardImageData:
		return MessageImageCopied, d.copyImage(a, snap)
	}
	return "", nil
}

// copyImage hands the file to the configured helper, or writes the PNG
// itself when none is set.
func (d *Dispatcher) copyImage(a *artifact.Artifact, snap settings.Snapshot) error {
	helper := strings.TrimSpace(snap.ClipboardImageHelper)
	if helper == "" {
		return d.clipboard.WriteImageFile(a.Path)
	}
	argv, err := d.runner.Split(helper)
	if err != nil {
		return err
	}
	d.launch(append(argv, a.Path))
	return nil
}

func captureNotification(a *artifact.Artifact, snap settings.Snapshot) platform.Notification {
	body := "Screenshot has been saved to:\n" + a.DirURI()
	if a.ExtraActionMessage != "" {
		body += "\n\n" + a.ExtraActionMessage
	}
	if a.ClipboardMessage != "" {
		body += "\n\n" + a.ClipboardMessage
	}
	actions := []platform.Action{{ID: ActionDefault, Label: "Open"}}
	if snap.ShowDeleteAction {
		actions = append(actions, platform.Action{ID: ActionDelete, Label: "Delete"})
	}
	if snap.ShowCopyDataAction {
		actions = append(actions, platform.Action{ID: ActionCopyData, Label: "Copy Data"})
	}
	if snap.ShowCopyPathAction {
		actions = append(actions, platform.Action{ID: ActionCopyPath, Label: "Copy Path"})
	}
	return platform.Notification{
		Icon:     a.FileURI(),
		Summary:  "Screenshot captured!",
		Body:     body,
		Actions:  actions,
		Urgency:  platform.UrgencyNormal,
		Resident: true,
	}
}

// Artifact returns the capture a live notification belongs to.
func (d *Dispatcher) Artifact(id uint32) (*artifact.Artifact, bool) {
	e, ok := d.live[id]
	if !ok {
		return nil, false
	}
	return e.artifact, true
}

// Closed forgets a notification the desktop dismissed.
func (d *Dispatcher) Closed(id uint32) {
	delete(d.live, id)
}

// HandleResponse performs the effect of a notification button.
func (d *Dispatcher) HandleResponse(id uint32, action string, snap settings.Snapshot) error {
	e, ok := d.live[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNotification, id)
	}
	a := e.artifact
	if action != ActionDelete {
		id = d.update(id, "downgrade notification", func(n *platform.Notification) {
			n.Urgency = platform.UrgencyLow
			n.Resident = false
		})
	}

	switch action {
	case ActionClose:
		delete(d.live, id)
		return d.notifier.Close(id)
	case ActionOpenDir:
		if d.FileManager != "" {
			d.launch([]string{d.FileManager, a.Path})
		} else {
			d.launch([]string{openCommand, a.DirURI()})
		}
	case ActionOpenFile, ActionDefault:
		d.launch([]string{openCommand, a.FileURI()})
	case ActionCopyData:
		return d.copyImage(a, snap)
	case ActionCopyPath:
		return d.clipboard.WriteText(a.Path)
	case ActionOpenLink:
		if a.Link == "" {
			return ErrNoLink
		}
		d.launch([]string{openCommand, a.Link})
	case ActionCustom:
		cmd := strings.TrimSpace(snap.CustomActionCommand)
		if cmd == "" {
			return ErrNoCustomCommand
		}
		argv, err := d.runner.Split(cmd)
		if err != nil {
			return err
		}
		d.launch(append(argv, a.Path))
	case ActionDelete:
		return d.delete(id, e)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return nil
}

func (d *Dispatcher) delete(id uint32, e *entry) error {
	a := e.artifact
	if a.Demo {
		return ErrDemoArtifact
	}
	if e.deleted {
		return nil
	}
	id = d.update(id, "raise notification urgency", func(n *platform.Notification) {
		n.Urgency = platform.UrgencyCritical
	})
	if err := removeFile(a.Path); err != nil {
		d.logger.Error("could not delete capture", "path", a.Path, "err", err)
		return fmt.Errorf("delete %s: %w", a.Path, err)
	}
	e.deleted = true
	d.logger.Info("capture deleted", "path", a.Path)
	id = d.update(id, "update deleted notification", func(n *platform.Notification) {
		n.Summary = "Screenshot deleted"
		n.Body = fmt.Sprintf("The screenshot at %s was removed from disk.", a.Path)
		n.Icon = "user-trash"
		n.Actions = nil
	})
	d.scheduler.After(deleteCloseWait, func() {
		if _, ok := d.live[id]; !ok {
			return
		}
		delete(d.live, id)
		if err := d.notifier.Close(id); err != nil {
			d.logger.Debug("close deleted notification", "id", id, "err", err)
		}
	})
	if d.OnDelete != nil {
		d.OnDelete(a)
	}
	return nil
}

// update resends a live notification and follows the id the server
// assigned to it.
func (d *Dispatcher) update(id uint32, what string, fn func(*platform.Notification)) uint32 {
	got, err := d.notifier.Update(id, fn)
	if err != nil {
		d.logger.Debug(what, "id", id, "err", err)
		return id
	}
	if e, ok := d.live[id]; ok && got != id {
		delete(d.live, id)
		d.live[got] = e
	}
	return got
}

func (d *Dispatcher) launch(argv []string) {
	d.runner.RunArgs(argv, process.Handlers{
		OnFailure: func(cmd string, err error) {
			d.logger.Warn("helper failed to launch", "command", cmd, "err", err)
		},
		OnComplete: func(status int, _ string) {
			if status != 0 {
				d.logger.Info("helper exited", "command", argv[0], "status", status)
			}
		},
	})
}
