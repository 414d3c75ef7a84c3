package main

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/deskcap/internal/capture"
	"github.com/example/deskcap/internal/cmdtemplate"
)

var errUnknownRequest = errors.New("unknown request")

// request is one parsed control line.
type request struct {
	verb    string
	kind    capture.Kind
	command string
	mode    cmdtemplate.Mode
	capture bool
	key     string
	value   any
}

// parseRequest reads a control line such as "capture monitor 1" or
// "run -record #DC_AREA_HELPER# recorder {X_Y}".
func parseRequest(line string) (request, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	req := request{verb: strings.ToLower(verb)}
	switch req.verb {
	case "capture":
		kind, err := capture.ParseKind(strings.Fields(rest))
		if err != nil {
			return req, err
		}
		req.kind = kind
	case "repeat":
		req.kind = capture.Repeat{}
	case "record", "demo", "status", "reload", "quit":
		if rest != "" {
			return req, fmt.Errorf("%s takes no arguments", req.verb)
		}
	case "run":
		flags, command := cutFlags(rest, "-record", "-no-capture")
		if command == "" {
			return req, errors.New("run requires a command")
		}
		req.command = command
		req.capture = !flags["-no-capture"]
		if flags["-record"] {
			req.mode = cmdtemplate.ModeRecorder
		}
	case "open":
		switch strings.ToLower(rest) {
		case "screenshots", "screenshot", "camera", "":
			req.mode = cmdtemplate.ModeCamera
		case "recordings", "recording", "recorder":
			req.mode = cmdtemplate.ModeRecorder
		default:
			return req, fmt.Errorf("open: unknown folder %q", rest)
		}
	case "set":
		key, raw, ok := strings.Cut(rest, " ")
		raw = strings.TrimSpace(raw)
		if !ok || key == "" || raw == "" {
			return req, errors.New("set requires a key and a value")
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return req, fmt.Errorf("set %s: %w", key, err)
		}
		req.key, req.value = key, value
	default:
		return req, fmt.Errorf("%w: %q", errUnknownRequest, verb)
	}
	return req, nil
}

// cutFlags strips any of names from the front of s and returns which were
// present together with the remainder. Only a leading "--" ends the flags
// early, so the command itself keeps its own dashes and quoting.
func cutFlags(s string, names ...string) (map[string]bool, string) {
	set := map[string]bool{}
	for {
		s = strings.TrimLeft(s, " ")
		word, rest, _ := strings.Cut(s, " ")
		if word == "--" {
			return set, strings.TrimSpace(rest)
		}
		found := false
		for _, n := range names {
			if word == n || word == "-"+n {
				set[n] = true
				found = true
			}
		}
		if !found {
			return set, strings.TrimSpace(s)
		}
		s = rest
	}
}
