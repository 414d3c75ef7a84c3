package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/deskcap/internal/config"
	"github.com/example/deskcap/internal/settings"
)

type configCmd struct {
	*root
	fs     *flag.FlagSet
	op     string
	asYAML bool
}

func parseConfigCmd(args []string, r *root) (*configCmd, error) {
	c := &configCmd{root: r.subcommand("config")}
	c.fs = flag.NewFlagSet("config", flag.ContinueOnError)
	c.fs.Usage = usageFunc(c)
	c.fs.BoolVar(&c.asYAML, "yaml", false, "print as YAML instead of key = value lines")
	if len(args) == 0 {
		return nil, &UsageError{of: c}
	}
	if err := c.fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, &UsageError{of: c}
		}
		return nil, err
	}
	switch args[0] {
	case "print", "save":
	default:
		return nil, fmt.Errorf("unknown config command: %s", args[0])
	}
	c.op = args[0]
	c.program += " " + c.op
	return c, nil
}

func (c *configCmd) FlagSet() *flag.FlagSet { return c.fs }

func (c *configCmd) Template() string { return "config.txt" }

func (c *configCmd) Run() error {
	if c.op == "save" {
		return c.runSave()
	}
	return c.runPrint(os.Stdout)
}

// current returns every setting, defaults included. A missing file is not
// created.
func (c *configCmd) current(path string) (config.Values, error) {
	values := settings.Defaults()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	r, err := settings.Open(path, c.logger)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Snapshot().Values() {
		values[k] = v
	}
	return values, nil
}

func (c *configCmd) runPrint(out io.Writer) error {
	values, err := c.current(c.settingsPath())
	if err != nil {
		return err
	}
	if !c.asYAML {
		_, err := fmt.Fprint(out, values.String())
		return err
	}
	data, err := yaml.Marshal(map[string]any(values))
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func (c *configCmd) runSave() error {
	path := c.settingsPath()
	values, err := c.current(path)
	if err != nil {
		return err
	}
	if err := config.Write(path, values); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Configuration saved to %s\n", path)
	return nil
}
