package orchestrator

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/example/deskcap/internal/artifact"
	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/process"
)

// demoSettle is how long after a demo the host is asked to rebuild, so a
// cleared copy-data toggle shows up.
const demoSettle = 3 * time.Second

// Demo dispatches a notification for icon as if it had just been captured.
// The artifact can not be deleted and does not become lastCapture.
func (o *Orchestrator) Demo(icon string) (*artifact.Artifact, error) {
	snap := o.Settings.Snapshot()
	opts := optionsFrom(snap)
	opts.Filename = "test.png"
	a := artifact.New(capture.Window{}, icon, opts, nil)
	a.Dir = snap.CameraSaveDir
	a.Filename = "desktop-capture.png"
	a.Demo = true

	result, err := o.Dispatcher.Dispatch(a, snap)
	o.apply(result.State)
	o.Loop.After(demoSettle, o.Host.Rebuild)
	return a, err
}

// DetectFileManager asks xdg-mime for the default directory handler and
// reports it through set when it can open a folder with a file selected.
func (o *Orchestrator) DetectFileManager(set func(command string)) {
	o.Runner.RunArgs([]string{"xdg-mime", "query", "default", "inode/directory"}, process.Handlers{
		CaptureOutput: true,
		OnFailure: func(_ string, err error) {
			o.logger.Info("no support for open folder/file", "err", err)
		},
		OnComplete: func(status int, output string) {
			fm := fileManagerFrom(output)
			if status != 0 || fm == "" {
				o.logger.Info("no support for open folder/file", "handler", strings.TrimSpace(output))
				set("")
				return
			}
			o.logger.Info("support for open folder/file enabled", "file_manager", fm)
			set(fm)
		},
	})
}

func fileManagerFrom(output string) string {
	name := strings.TrimSpace(output)
	if i := strings.Index(name, ".desktop"); i >= 0 {
		name = name[:i]
	}
	switch filepath.Base(name) {
	case "nemo", "nautilus":
		return filepath.Base(name)
	}
	return ""
}
