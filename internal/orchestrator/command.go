package orchestrator

import (
	"context"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/cmdtemplate"
	"github.com/example/deskcap/internal/process"
	"github.com/example/deskcap/internal/savepath"
)

var openCommand = "xdg-open"

// RunCommand expands and runs a user command. Capture commands may start
// with a helper marker, in which case the user picks a window or area
// first and the geometry tokens are filled from that selection.
func (o *Orchestrator) RunCommand(ctx context.Context, command string, mode cmdtemplate.Mode, isCapture bool) error {
	snap := o.Settings.Snapshot()
	w, h := o.ScreenSize()
	command = cmdtemplate.Expand(command, cmdtemplate.Context{
		Mode:             mode,
		DelaySeconds:     snap.DelaySeconds,
		ScreenWidth:      w,
		ScreenHeight:     h,
		CameraDir:        snap.CameraSaveDir,
		RecorderDir:      snap.RecorderSaveDir,
		CameraFilename:   savepath.Filename(snap.CameraSavePrefix, ""),
		RecorderFilename: savepath.Filename(snap.RecorderSavePrefix, ""),
	})
	helper, command := cmdtemplate.ParseHelper(command)
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: %w", process.ErrLaunchFailed, process.ErrEmptyCommand)
	}
	if snap.DelaySeconds == 0 {
		o.Host.CloseMenu()
	}

	if !isCapture {
		o.Runner.Run(command)
		return nil
	}
	if helper == capture.HelperNone {
		o.runTracked(command)
		return nil
	}
	if o.Selector == nil {
		return fmt.Errorf("no %s selector available", helper)
	}
	o.logger.Debug("waiting for selection", "helper", helper.String())
	go func() {
		sel, err := o.Selector.Select(ctx, helper)
		o.Loop.Post(func() {
			if err != nil {
				o.logger.Info("command selection aborted", "helper", helper.String(), "err", err)
				return
			}
			o.runTracked(cmdtemplate.ExpandInteractive(command, sel))
		})
	}()
	return nil
}

func (o *Orchestrator) runTracked(command string) {
	o.logger.Info("running command", "command", command)
	o.Runner.RunTracked(command, process.Handlers{
		OnStart: func(int) { o.Host.SetBusy(true) },
		OnFailure: func(cmd string, err error) {
			o.Host.SetBusy(false)
			o.alertLaunchFailure(cmd, err)
		},
		OnComplete: func(status int, _ string) {
			o.Host.SetBusy(false)
			o.logger.Info("command exited", "command", command, "status", status)
		},
	})
}

// alertLaunchFailure shows the failed command in a dialog.
func (o *Orchestrator) alertLaunchFailure(command string, err error) {
	o.logger.Error("command failed to launch", "command", command, "err", err)
	text := "Command exited with error status:\n\n<span font_desc='monospace 10'>" + html.EscapeString(command) + "</span>"
	o.Runner.RunArgs([]string{"zenity", "--info", "--title=Desktop Capture", "--text=" + text}, process.Handlers{
		OnFailure: func(_ string, err error) {
			o.logger.Debug("alert dialog unavailable", "err", err)
		},
	})
}

// OpenFolder opens the screenshot or recording directory, creating it
// when missing.
func (o *Orchestrator) OpenFolder(mode cmdtemplate.Mode) (string, error) {
	snap := o.Settings.Snapshot()
	dir := snap.CameraSaveDir
	if mode == cmdtemplate.ModeRecorder {
		dir = snap.RecorderSaveDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", savepath.ErrPathUnavailable, err)
	}
	o.open("file://" + dir)
	return dir, nil
}

func (o *Orchestrator) open(uri string) {
	o.Runner.RunArgs([]string{openCommand, uri}, process.Handlers{
		OnFailure: func(cmd string, err error) {
			o.logger.Warn("open failed", "uri", uri, "err", err)
		},
	})
}
