package control

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"
)

// DefaultName is the session name used when none is given.
const DefaultName = "default"

// ErrNotRunning is returned when no daemon answers on the socket.
var ErrNotRunning = errors.New("deskcap daemon is not running")

var errSocketClosed = errors.New("socket closed by server")

// ResolveDir picks the socket directory: explicit, then
// $DESKCAP_SOCKET_DIR, then $XDG_RUNTIME_DIR/deskcap, then
// ~/.deskcap/sockets.
func ResolveDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if dir := os.Getenv("DESKCAP_SOCKET_DIR"); dir != "" {
		return dir, nil
	}
	if runtime.GOOS != "windows" {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, "deskcap"), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".deskcap", "sockets"), nil
}

// SocketPath returns the socket file for session name.
func SocketPath(dir, name string) string {
	if name == "" {
		name = DefaultName
	}
	if !strings.HasSuffix(name, ".sock") {
		name += ".sock"
	}
	return filepath.Join(dir, name)
}

// Status describes one socket file found in the directory.
type Status struct {
	Name string
	File string
	Err  error
}

// Alive reports whether the daemon answered.
func (s Status) Alive() bool { return s.Err == nil }

// List pings every socket in dir, sorted by name.
func List(dir string) ([]Status, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	statuses := make([]Status, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if entry.Type()&os.ModeSocket == 0 && !strings.HasSuffix(name, ".sock") {
			continue
		}
		st := Status{Name: strings.TrimSuffix(name, ".sock"), File: name}
		if err := Ping(filepath.Join(dir, name)); err != nil {
			st.Err = normalizeSocketError(err)
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, nil
}

// Ping checks that a daemon greets and answers on path.
func Ping(path string) error {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	scanner := bufio.NewScanner(conn)
	if err := expectGreeting(scanner); err != nil {
		return err
	}
	if err := writeln(conn, "PING"); err != nil {
		return err
	}
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return errors.New("no pong received")
	}
	if scanner.Text() != "PONG" {
		return fmt.Errorf("unexpected response: %s", scanner.Text())
	}
	return nil
}

// Exec sends commands to the session and copies their output to stdout
// and stderr. It stops at the first failing command.
func Exec(dir, name string, commands []string, stdout, stderr io.Writer) error {
	conn, err := dial(dir, name)
	if err != nil {
		return err
	}
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	if err := expectGreeting(scanner); err != nil {
		return err
	}
	for _, cmd := range commands {
		if err := writef(conn, "EXEC %s\n", cmd); err != nil {
			return err
		}
		if err := consumeResponse(scanner, stdout, stderr); err != nil {
			if errors.Is(err, errSocketClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Stop asks the session to shut down. A missing socket is not an error.
func Stop(dir, name string) error {
	path := SocketPath(dir, name)
	conn, err := net.Dial("unix", path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr == nil || errors.Is(rmErr, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	if err := expectGreeting(scanner); err != nil {
		return err
	}
	if err := writeln(conn, "SHUTDOWN"); err != nil {
		return err
	}
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "DONE ") {
			return nil
		}
	}
	return scanner.Err()
}

func dial(dir, name string) (net.Conn, error) {
	conn, err := net.Dial("unix", SocketPath(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w: %w", ErrNotRunning, err)
		}
		return nil, err
	}
	return conn, nil
}

func expectGreeting(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return errSocketClosed
	}
	if scanner.Text() != "READY" {
		return fmt.Errorf("unexpected greeting: %s", scanner.Text())
	}
	return nil
}

func consumeResponse(scanner *bufio.Scanner, stdout, stderr io.Writer) error {
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "OUT "):
			if err := writeln(stdout, strings.TrimPrefix(line, "OUT ")); err != nil {
				return err
			}
		case strings.HasPrefix(line, "ERR "):
			if err := writeln(stderr, strings.TrimPrefix(line, "ERR ")); err != nil {
				return err
			}
		case strings.HasPrefix(line, "DONE OK"):
			if strings.HasSuffix(line, "CLOSE") {
				return errSocketClosed
			}
			return nil
		case strings.HasPrefix(line, "DONE ERR "):
			msg := strings.TrimPrefix(line, "DONE ERR ")
			return errors.New(strings.ReplaceAll(msg, "\\n", "\n"))
		default:
			if err := writeln(stdout, line); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errSocketClosed
}

func normalizeSocketError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return errors.New("missing socket file")
	}
	if errors.Is(err, os.ErrPermission) {
		return errors.New("permission denied")
	}
	return err
}
