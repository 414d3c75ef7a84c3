package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/example/deskcap/internal/config"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs         *flag.FlagSet
	program    string
	logLevel   string
	configPath string
	socketDir  string
	session    string
	logger     *slog.Logger
}

func (r *root) Program() string {
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func (r *root) Template() string {
	return "root.txt"
}

func (r *root) subcommand(name string) *root {
	program := strings.TrimSpace(strings.Join([]string{r.program, name}, " "))
	return &root{
		program:    program,
		logLevel:   r.logLevel,
		configPath: r.configPath,
		socketDir:  r.socketDir,
		session:    r.session,
		logger:     r.logger,
	}
}

func newRoot() *root {
	r := &root{
		fs:      flag.NewFlagSet("deskcap", flag.ExitOnError),
		program: "deskcap",
	}
	r.fs.StringVar(&r.logLevel, "log-level", envOr("DESKCAP_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	r.fs.StringVar(&r.configPath, "config", configPathOverride, "settings file to use")
	r.fs.StringVar(&r.socketDir, "socket-dir", "", "directory holding daemon sockets")
	r.fs.StringVar(&r.session, "name", "", "daemon session name")
	r.fs.Usage = usageFunc(r)
	return r
}

// settingsPath resolves the settings file: -config, then ./.deskcap.yaml
// in dev builds, then the XDG location.
func (r *root) settingsPath() string {
	return config.NewLoader(version, r.configPath).Path()
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	logger, err := newLogger(r.logLevel)
	if err != nil {
		return err
	}
	r.logger = logger
	slog.SetDefault(logger)
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var cmd runnable
	switch cmdName {
	case "daemon":
		cmd, err = parseDaemonCmd(subArgs, r)
	case "capture", "repeat", "record", "run", "demo", "open", "set", "status", "reload":
		cmd, err = parseRequestCmd(cmdName, subArgs, r)
	case "stop":
		cmd, err = parseStopCmd(subArgs, r)
	case "history":
		cmd, err = parseHistoryCmd(subArgs, r)
	case "config":
		cmd, err = parseConfigCmd(subArgs, r)
	case "version":
		cmd = &versionCmd{root: r.subcommand("version")}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile reads DESKCAP_* overrides from the dotenv file next to the
// settings. Variables already set in the environment win.
func loadEnvFile() {
	path := config.EnvPath()
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
	}
}

func main() {
	loadEnvFile()
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
