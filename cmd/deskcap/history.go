package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/example/deskcap/internal/history"
)

type historyCmd struct {
	*root
	fs    *flag.FlagSet
	limit int
	path  string
}

func parseHistoryCmd(args []string, r *root) (*historyCmd, error) {
	c := &historyCmd{root: r.subcommand("history")}
	c.fs = flag.NewFlagSet("history", flag.ContinueOnError)
	c.fs.Usage = usageFunc(c)
	c.fs.IntVar(&c.limit, "limit", 20, "number of entries to show, 0 for all")
	c.fs.StringVar(&c.path, "db", "", "history database (default $XDG_DATA_HOME/deskcap/history.db)")
	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, &UsageError{of: c}
		}
		return nil, err
	}
	if c.fs.NArg() > 0 {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (c *historyCmd) FlagSet() *flag.FlagSet { return c.fs }

func (c *historyCmd) Template() string { return "history.txt" }

func (c *historyCmd) Run() error {
	path := c.path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return err
		}
	}
	store, err := history.Open(path, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	entries, err := store.List(context.Background(), c.limit)
	if err != nil {
		return err
	}
	return printHistory(os.Stdout, entries)
}

func printHistory(out io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "no captures recorded")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tLENGTH\tPATH")
	for _, e := range entries {
		length := "-"
		if e.Duration > 0 {
			length = e.Duration.Round(time.Second).String()
		}
		path := e.Path
		if e.Deleted() {
			path += " (deleted)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.DateTime), e.Kind, length, path)
	}
	return tw.Flush()
}
