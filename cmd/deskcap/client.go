package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/example/deskcap/internal/control"
)

// requestCmd forwards one request line to the running daemon.
type requestCmd struct {
	*root
	fs   *flag.FlagSet
	line string
}

func parseRequestCmd(verb string, args []string, r *root) (*requestCmd, error) {
	cmd := &requestCmd{root: r.subcommand(verb)}
	cmd.fs = flag.NewFlagSet(verb, flag.ContinueOnError)
	cmd.fs.Usage = usageFunc(cmd)
	var record, noCapture bool
	if verb == "run" {
		cmd.fs.BoolVar(&record, "record", false, "fill {DIRECTORY} and {FILENAME} from the recorder settings")
		cmd.fs.BoolVar(&noCapture, "no-capture", false, "run without the busy indicator or helper selection")
	}
	if err := cmd.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, &UsageError{of: cmd}
		}
		return nil, err
	}
	cmd.line = requestLine(verb, record, noCapture, cmd.fs.Args())
	if _, err := parseRequest(cmd.line); err != nil {
		return nil, err
	}
	return cmd, nil
}

// requestLine builds the control line for verb. Run flags go before a
// "--" so the command is passed through untouched.
func requestLine(verb string, record, noCapture bool, args []string) string {
	parts := []string{verb}
	if verb == "run" {
		if record {
			parts = append(parts, "-record")
		}
		if noCapture {
			parts = append(parts, "-no-capture")
		}
		parts = append(parts, "--")
	}
	parts = append(parts, args...)
	return strings.Join(parts, " ")
}

func (c *requestCmd) FlagSet() *flag.FlagSet { return c.fs }

func (c *requestCmd) Template() string { return "request.txt" }

func (c *requestCmd) Run() error {
	dir, err := control.ResolveDir(c.socketDir)
	if err != nil {
		return err
	}
	return control.Exec(dir, c.session, []string{c.line}, os.Stdout, os.Stderr)
}

type stopCmd struct {
	*root
	fs *flag.FlagSet
}

func parseStopCmd(args []string, r *root) (*stopCmd, error) {
	cmd := &stopCmd{root: r.subcommand("stop")}
	cmd.fs = flag.NewFlagSet("stop", flag.ContinueOnError)
	cmd.fs.Usage = usageFunc(cmd)
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

func (c *stopCmd) FlagSet() *flag.FlagSet { return c.fs }

func (c *stopCmd) Template() string { return "request.txt" }

func (c *stopCmd) Run() error {
	dir, err := control.ResolveDir(c.socketDir)
	if err != nil {
		return err
	}
	if err := control.Stop(dir, c.session); err != nil {
		return err
	}
	fmt.Printf("stop requested for %s\n", control.SocketPath(dir, c.session))
	return nil
}
