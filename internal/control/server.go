// Package control serves the daemon's unix socket. The protocol is line
// based: the server greets with READY, answers PING with PONG, runs
// "EXEC <command>" streaming OUT/ERR lines and a final DONE, and stops on
// SHUTDOWN.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
)

// Executor runs one command line received over the socket. Returning
// closeConn ends the client connection after DONE. Execute is called
// concurrently for different connections; ctx is cancelled when the
// client disconnects.
type Executor interface {
	Execute(ctx context.Context, line string, stdout, stderr io.Writer) (closeConn bool, err error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, line string, stdout, stderr io.Writer) (bool, error)

func (f ExecutorFunc) Execute(ctx context.Context, line string, stdout, stderr io.Writer) (bool, error) {
	return f(ctx, line, stdout, stderr)
}

// Server accepts control connections on one socket file.
type Server struct {
	path     string
	exec     Executor
	logger   *slog.Logger
	listener net.Listener

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Listen binds the socket for session name in dir, replacing a stale file.
func Listen(dir, name string, exec Executor, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := SocketPath(dir, name)
	if err := Ping(path); err == nil {
		return nil, fmt.Errorf("session %s already running", name)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Server{
		path:     path,
		exec:     exec,
		logger:   logger.With("socket", path),
		listener: ln,
		stopCh:   make(chan struct{}),
	}, nil
}

// Path is the socket file.
func (s *Server) Path() string { return s.path }

// Done is closed once Shutdown has been called.
func (s *Server) Done() <-chan struct{} { return s.stopCh }

// Serve accepts connections until Shutdown or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	defer s.removeSocket()
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.stopCh:
		}
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// Shutdown stops accepting connections and removes the socket file.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		closeWithLog(s.logger, "socket listener", s.listener)
		s.removeSocket()
	})
}

func (s *Server) removeSocket() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove socket", "err", err)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer closeWithLog(s.logger, "socket connection", conn)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := writeln(conn, "READY"); err != nil {
		s.logger.Debug("socket write READY", "err", err)
		return
	}
	for line := range readLines(ctx, cancel, conn) {
		switch {
		case line == "PING":
			if err := writeln(conn, "PONG"); err != nil {
				return
			}
		case line == "SHUTDOWN":
			if err := writeln(conn, "DONE OK CLOSE"); err != nil {
				s.logger.Debug("socket write DONE", "err", err)
			}
			s.logger.Info("shutdown requested")
			s.Shutdown()
			return
		case strings.HasPrefix(line, "EXEC "):
			if !s.execute(ctx, conn, strings.TrimPrefix(line, "EXEC ")) {
				return
			}
		default:
			if err := writeln(conn, "ERR unknown request"); err != nil {
				return
			}
		}
	}
}

// readLines delivers the lines read from conn. The reader keeps running
// while a request executes so a disconnect cancels ctx at once.
func readLines(ctx context.Context, cancel context.CancelFunc, conn net.Conn) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		defer cancel()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// execute runs one EXEC request and reports whether the connection stays
// open.
func (s *Server) execute(ctx context.Context, conn net.Conn, command string) bool {
	out := &taggedWriter{w: conn, tag: "OUT "}
	errW := &taggedWriter{w: conn, tag: "ERR "}
	closeConn, execErr := s.exec.Execute(ctx, command, out, errW)
	if execErr != nil {
		s.logger.Debug("command failed", "command", command, "err", execErr)
		msg := strings.ReplaceAll(execErr.Error(), "\n", "\\n")
		return writef(conn, "DONE ERR %s\n", msg) == nil
	}
	if closeConn {
		_ = writeln(conn, "DONE OK CLOSE")
		return false
	}
	return writeln(conn, "DONE OK") == nil
}

// taggedWriter prefixes every line written with tag.
type taggedWriter struct {
	w   io.Writer
	tag string
}

func (t *taggedWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var buf strings.Builder
	for _, line := range strings.SplitAfter(string(p), "\n") {
		if line == "" {
			continue
		}
		buf.WriteString(t.tag)
		buf.WriteString(line)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		buf.WriteByte('\n')
	}
	if _, err := io.WriteString(t.w, buf.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, msg string) error {
	_, err := fmt.Fprintln(w, msg)
	return err
}

func closeWithLog(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug("close", "what", name, "err", err)
	}
}
