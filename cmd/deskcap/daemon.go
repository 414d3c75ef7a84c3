package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/deskcap/internal/control"
)

// stopGrace bounds how long shutdown waits for the loop to stop a running
// recorder.
const stopGrace = 2 * time.Second

type daemonCmd struct {
	*root
	fs *flag.FlagSet
}

func parseDaemonCmd(args []string, r *root) (*daemonCmd, error) {
	cmd := &daemonCmd{root: r.subcommand("daemon")}
	cmd.fs = flag.NewFlagSet("daemon", flag.ContinueOnError)
	cmd.fs.Usage = usageFunc(cmd)
	cmd.fs.StringVar(&cmd.session, "name", cmd.session, "socket session name")
	cmd.fs.StringVar(&cmd.socketDir, "dir", cmd.socketDir, "directory that stores deskcap sockets")
	if err := cmd.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, &UsageError{of: cmd}
		}
		return nil, err
	}
	if cmd.fs.NArg() > 0 {
		return nil, &UsageError{of: cmd}
	}
	return cmd, nil
}

func (d *daemonCmd) FlagSet() *flag.FlagSet { return d.fs }

func (d *daemonCmd) Template() string { return "daemon.txt" }

func (d *daemonCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(d.settingsPath(), d.logger)
	if err != nil {
		return err
	}
	defer e.close()

	dir, err := control.ResolveDir(d.socketDir)
	if err != nil {
		return err
	}
	srv, err := control.Listen(dir, d.session, e, d.logger.With("component", "control"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-srv.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	// The loop outlives ctx so a running recorder can be stopped.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	e.start(ctx)
	loopDone := make(chan error, 1)
	go func() { loopDone <- e.loop.Run(loopCtx) }()
	d.logger.Info("daemon ready", "socket", srv.Path(), "settings", e.settings.Path())

	serveErr := srv.Serve(ctx)
	cancel()
	d.stopRecording(e)
	stopLoop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Debug("loop stopped", "err", err)
	}
	d.logger.Info("daemon stopped")
	return serveErr
}

// stopRecording interrupts a running recorder so its file is finalized.
func (d *daemonCmd) stopRecording(e *engine) {
	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	err := e.loop.Call(ctx, func() {
		if _, ok := e.orch.Recording(); ok {
			if err := e.orch.ToggleRecording(); err != nil {
				d.logger.Warn("stop recorder", "err", err)
			}
		}
	})
	if err != nil {
		d.logger.Debug("recorder check skipped", "err", err)
	}
}
