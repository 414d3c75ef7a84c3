package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/example/deskcap/internal/history"
)

func TestRootUsage(t *testing.T) {
	r := newRoot()
	err := r.Run(nil)
	var uerr *UsageError
	if !errors.As(err, &uerr) {
		t.Fatalf("Run without a command = %v", err)
	}
	help := uerr.Error()
	for _, want := range []string{"Usage: deskcap", "daemon", "-log-level", "history [-limit N]"} {
		if !strings.Contains(help, want) {
			t.Errorf("root help missing %q:\n%s", want, help)
		}
	}
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	var uerr *UsageError
	if err := newRoot().Run([]string{"frobnicate"}); !errors.As(err, &uerr) {
		t.Fatalf("err = %v", err)
	}
}

func TestBadLogLevel(t *testing.T) {
	err := newRoot().Run([]string{"-log-level", "loud", "version"})
	if err == nil || !strings.Contains(err.Error(), "loud") {
		t.Fatalf("err = %v", err)
	}
}

func TestRequestHelpRendersFlags(t *testing.T) {
	r := newRoot()
	_, err := parseRequestCmd("run", []string{"-help"}, r)
	var uerr *UsageError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v", err)
	}
	if help := uerr.Error(); !strings.Contains(help, "-no-capture") || !strings.Contains(help, "deskcap run") {
		t.Fatalf("help = %s", help)
	}
}

func TestRequestLine(t *testing.T) {
	tests := []struct {
		verb      string
		record    bool
		noCapture bool
		args      []string
		want      string
	}{
		{"capture", false, false, []string{"monitor", "1"}, "capture monitor 1"},
		{"run", true, false, []string{"#DC_AREA_HELPER# rec {X_Y}"}, "run -record -- #DC_AREA_HELPER# rec {X_Y}"},
		{"run", false, true, []string{"-x", "y"}, "run -no-capture -- -x y"},
		{"status", false, false, nil, "status"},
	}
	for _, tt := range tests {
		got := requestLine(tt.verb, tt.record, tt.noCapture, tt.args)
		if got != tt.want {
			t.Errorf("requestLine = %q, want %q", got, tt.want)
			continue
		}
		if _, err := parseRequest(got); err != nil {
			t.Errorf("parseRequest(%q): %v", got, err)
		}
	}
}

func TestParseRequestCmdValidates(t *testing.T) {
	if _, err := parseRequestCmd("capture", []string{"sideways"}, newRoot()); err == nil {
		t.Fatalf("bad kind accepted")
	}
	cmd, err := parseRequestCmd("run", []string{"-record", "scrot", "-u"}, newRoot())
	if err != nil {
		t.Fatal(err)
	}
	if cmd.line != "run -record -- scrot -u" {
		t.Fatalf("line = %q", cmd.line)
	}
}

func TestConfigPrint(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("delay-seconds: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	r := newRoot()
	r.configPath = path
	c, err := parseConfigCmd([]string{"print", "-yaml"}, r)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := c.runPrint(&buf); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["delay-seconds"] != 4 || got["send-notification"] != true {
		t.Fatalf("printed = %v", got)
	}
}

func TestConfigPrintMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	r := newRoot()
	r.configPath = path
	c, err := parseConfigCmd([]string{"print"}, r)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := c.runPrint(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "delay-seconds = 0\n") {
		t.Fatalf("printed = %s", buf.String())
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("print created the settings file")
	}
}

func TestUnknownConfigCommand(t *testing.T) {
	if _, err := parseConfigCmd([]string{"edit"}, newRoot()); err == nil {
		t.Fatalf("unknown subcommand accepted")
	}
}

func TestPrintHistory(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	var buf bytes.Buffer
	err := printHistory(&buf, []history.Entry{
		{ID: uuid.New(), Kind: "recording", Path: "/v/a.webm", CreatedAt: at, Duration: 95 * time.Second},
		{ID: uuid.New(), Kind: "area", Path: "/s/b.png", CreatedAt: at, DeletedAt: at},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"WHEN", "2024-05-06 07:08:09", "1m35s", "/s/b.png (deleted)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printHistory(&buf, nil); err != nil || buf.String() != "no captures recorded\n" {
		t.Fatalf("empty history = %q, %v", buf.String(), err)
	}
}
