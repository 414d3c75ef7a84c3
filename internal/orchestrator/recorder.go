package orchestrator

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/process"
	"github.com/example/deskcap/internal/savepath"
)

var recorderArgs = capture.RecorderArgs

type recording struct {
	path     string
	handle   *process.Handle
	started  time.Time
	cookie   uint32
	held     bool
	stopping bool
}

// Recording reports whether a recorder is running and its output path.
func (o *Orchestrator) Recording() (string, bool) {
	if o.rec == nil {
		return "", false
	}
	return o.rec.path, true
}

// ToggleRecording starts a recording, or stops the running one.
func (o *Orchestrator) ToggleRecording() error {
	if o.rec != nil {
		return o.stopRecording()
	}
	return o.startRecording()
}

func (o *Orchestrator) startRecording() error {
	snap := o.Settings.Snapshot()
	ext := strings.TrimPrefix(strings.TrimSpace(snap.RecorderFileExtension), ".")
	if ext == "" {
		ext = "webm"
	}
	path, err := savepath.Resolve(snap.RecorderSaveDir, snap.RecorderSavePrefix, ext, "")
	if err != nil {
		o.logger.Error("recording dropped", "err", err)
		return err
	}
	argv := recorderArgs(capture.Recording{
		Filename:      path,
		Framerate:     snap.RecorderFramerate,
		Pipeline:      snap.RecorderPipeline,
		IncludeCursor: snap.IncludeCursor,
	})

	rec := &recording{path: path}
	o.acquireHold(rec)
	o.rec = rec
	rec.handle = o.Runner.RunArgs(argv, process.Handlers{
		OnStart: func(pid int) {
			rec.started = o.now()
			o.Host.SetRecording(true)
			o.logger.Info("recording started", "path", path, "pid", pid)
		},
		OnFailure: func(cmd string, err error) {
			o.finishRecording(rec)
			o.alertLaunchFailure(cmd, err)
		},
		OnComplete: func(status int, _ string) {
			o.finishRecording(rec)
			if status != 0 && !rec.stopping {
				o.logger.Warn("recorder exited", "path", path, "status", status)
			}
			o.logger.Info("recording saved", "path", path)
			if o.Journal != nil {
				o.Journal.RecordRecording(path, rec.started, o.now())
			}
		},
	})
	return nil
}

func (o *Orchestrator) stopRecording() error {
	rec := o.rec
	if rec.stopping {
		return nil
	}
	if err := rec.handle.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("stop recorder: %w", err)
	}
	rec.stopping = true
	o.logger.Debug("recorder interrupted", "path", rec.path)
	return nil
}

func (o *Orchestrator) finishRecording(rec *recording) {
	if o.rec == rec {
		o.rec = nil
	}
	o.releaseHold(rec)
	o.Host.SetRecording(false)
}

func (o *Orchestrator) acquireHold(rec *recording) {
	if o.Hold == nil {
		return
	}
	cookie, err := o.Hold.Inhibit("deskcap", "Recording the screen")
	if err != nil {
		o.logger.Warn("display hold unavailable", "err", err)
		return
	}
	rec.cookie, rec.held = cookie, true
}

func (o *Orchestrator) releaseHold(rec *recording) {
	if !rec.held {
		return
	}
	rec.held = false
	if err := o.Hold.Uninhibit(rec.cookie); err != nil {
		o.logger.Warn("release display hold", "err", err)
	}
}
