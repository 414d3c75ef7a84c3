// Package process launches external helpers and reports their lifecycle
// back onto the caller's event loop.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

var (
	// ErrLaunchFailed wraps every failure to start a command.
	ErrLaunchFailed = errors.New("process launch failed")
	// ErrEmptyCommand is returned for blank command lines.
	ErrEmptyCommand = errors.New("empty command")
)

// ExitStatusError reports a command that ran but exited non-zero.
type ExitStatusError struct {
	Command string
	Status  int
	Output  string
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Status)
}

// Poster runs a function on the owner's event loop.
type Poster interface {
	Post(fn func()) bool
}

// Handlers are invoked on the Poster. Exactly one of OnFailure or
// OnStart followed by OnComplete is called for every tracked launch.
type Handlers struct {
	OnStart    func(pid int)
	OnFailure  func(command string, err error)
	OnComplete func(status int, output string)
	// CaptureOutput collects combined stdout and stderr for OnComplete.
	CaptureOutput bool
}

// Event is one lifecycle step of a tracked process.
type Event interface{ isEvent() }

// Started is sent once the process is running.
type Started struct{ PID int }

// Failed is sent when the process could not be launched.
type Failed struct {
	Command string
	Err     error
}

// Completed is sent after a started process exits.
type Completed struct {
	Status int
	Output string
}

func (Started) isEvent()   {}
func (Failed) isEvent()    {}
func (Completed) isEvent() {}

// Supervisor starts commands and forwards their events to a Poster.
type Supervisor struct {
	poster Poster
	logger *slog.Logger
	parser *shellwords.Parser
}

// New creates a Supervisor delivering handlers through poster.
func New(poster Poster, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	p := shellwords.NewParser()
	p.ParseEnv = true
	return &Supervisor{poster: poster, logger: logger, parser: p}
}

// Split breaks a command line into argv using shell quoting rules.
func (s *Supervisor) Split(command string) ([]string, error) {
	argv, err := s.parser.Parse(strings.TrimSpace(command))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %w", ErrLaunchFailed, command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, ErrEmptyCommand)
	}
	return argv, nil
}

// Run starts command without tracking. Launch failures and non-zero exits
// are logged.
func (s *Supervisor) Run(command string) {
	s.RunTracked(command, Handlers{
		OnFailure: func(cmd string, err error) {
			s.logger.Warn("command failed to launch", "command", cmd, "err", err)
		},
		OnComplete: func(status int, _ string) {
			if status != 0 {
				s.logger.Info("command exited", "command", command, "status", status)
			}
		},
	})
}

// RunTracked parses and starts command, delivering lifecycle events to h.
func (s *Supervisor) RunTracked(command string, h Handlers) *Handle {
	argv, err := s.Split(command)
	if err != nil {
		handle := newHandle(command)
		s.deliver(handle, h, singleEvent(Failed{Command: command, Err: err}))
		return handle
	}
	return s.start(command, argv, h)
}

// RunArgs starts a pre-split argv, delivering lifecycle events to h.
func (s *Supervisor) RunArgs(argv []string, h Handlers) *Handle {
	command := strings.Join(argv, " ")
	if len(argv) == 0 {
		handle := newHandle(command)
		s.deliver(handle, h, singleEvent(Failed{Command: command, Err: fmt.Errorf("%w: %w", ErrLaunchFailed, ErrEmptyCommand)}))
		return handle
	}
	return s.start(command, argv, h)
}

// Output runs argv to completion and returns its stdout. It blocks and is
// meant for helpers such as interactive selectors.
func (s *Supervisor) Output(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, ErrEmptyCommand)
	}
	command := strings.Join(argv, " ")
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitStatusError{Command: command, Status: exitErr.ExitCode(), Output: strings.TrimSpace(stderr.String())}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrLaunchFailed, command, err)
}

func (s *Supervisor) start(command string, argv []string, h Handlers) *Handle {
	handle := newHandle(command)
	events := make(chan Event, 2)
	go s.deliver(handle, h, events)

	cmd := exec.Command(argv[0], argv[1:]...)
	setProcessGroup(cmd)
	var output bytes.Buffer
	if h.CaptureOutput {
		cmd.Stdout = &output
		cmd.Stderr = &output
	}
	if err := cmd.Start(); err != nil {
		events <- Failed{Command: command, Err: fmt.Errorf("%w: %s: %w", ErrLaunchFailed, command, err)}
		close(events)
		return handle
	}
	handle.setProcess(cmd.Process)
	s.logger.Debug("process started", "command", command, "pid", cmd.Process.Pid)
	events <- Started{PID: cmd.Process.Pid}
	go func() {
		status := 0
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				status = exitErr.ExitCode()
			} else {
				status = -1
				s.logger.Warn("process wait", "command", command, "err", err)
			}
		}
		events <- Completed{Status: status, Output: output.String()}
		close(events)
	}()
	return handle
}

// deliver is the single consumer of a launch's events.
func (s *Supervisor) deliver(handle *Handle, h Handlers, events <-chan Event) {
	for ev := range events {
		ev := ev
		if _, done := ev.(Started); !done {
			handle.finish(ev)
		}
		post := func() {
			switch e := ev.(type) {
			case Started:
				if h.OnStart != nil {
					h.OnStart(e.PID)
				}
			case Failed:
				if h.OnFailure != nil {
					h.OnFailure(e.Command, e.Err)
				}
			case Completed:
				if h.OnComplete != nil {
					h.OnComplete(e.Status, e.Output)
				}
			}
		}
		if s.poster == nil || !s.poster.Post(post) {
			s.logger.Debug("process event dropped", "command", handle.command)
		}
	}
}

func singleEvent(ev Event) <-chan Event {
	ch := make(chan Event, 1)
	ch <- ev
	close(ch)
	return ch
}

// Handle refers to one launched command.
type Handle struct {
	command string
	started chan struct{}
	done    chan struct{}
	proc    *os.Process
	final   Event
}

func newHandle(command string) *Handle {
	return &Handle{command: command, started: make(chan struct{}), done: make(chan struct{})}
}

func (h *Handle) setProcess(p *os.Process) {
	h.proc = p
	close(h.started)
}

func (h *Handle) finish(ev Event) {
	h.final = ev
	close(h.done)
}

// Command returns the command line as launched.
func (h *Handle) Command() string { return h.command }

// PID returns the process id, or 0 when the launch failed.
func (h *Handle) PID() int {
	select {
	case <-h.started:
		return h.proc.Pid
	default:
		return 0
	}
}

// Done is closed once the process has exited or failed to launch.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the final event after Done is closed.
func (h *Handle) Result() Event {
	<-h.done
	return h.final
}

// Signal sends sig to the process group of a running command.
func (h *Handle) Signal(sig os.Signal) error {
	select {
	case <-h.started:
	default:
		return fmt.Errorf("%s: not running", h.command)
	}
	select {
	case <-h.done:
		return nil
	default:
	}
	return signalGroup(h.proc, sig)
}
