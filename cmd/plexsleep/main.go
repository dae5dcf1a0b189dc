package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"plexsleep/internal/agent"
	"plexsleep/internal/config"
	"plexsleep/internal/configdir"
	"plexsleep/internal/diag"
	"plexsleep/internal/idle"
	"plexsleep/internal/logging"
	"plexsleep/internal/plex"
	"plexsleep/internal/secrets"
	"plexsleep/internal/tui"
)

const (
	version        = "0.3.0"
	watchLogFile   = "plexsleep.log"
	exitOK         = 0
	exitFailure    = 1
	maxTokenLength = 4096
)

func main() {
	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(c.run(os.Args[1:]))
}

// cli carries the process streams so commands can be exercised in tests
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) run(args []string) int {
	command := "run"
	if len(args) > 0 && (!strings.HasPrefix(args[0], "-") || isHelpFlag(args[0])) {
		command = strings.ToLower(args[0])
		args = args[1:]
	}

	if handler, ok := c.commandHandlers()[command]; ok {
		return handler(args)
	}

	fmt.Fprintf(c.stderr, "Unknown command: %s\n\n", command)
	c.printUsage()
	return exitFailure
}

func (c *cli) commandHandlers() map[string]func([]string) int {
	help := func([]string) int {
		c.printUsage()
		return exitOK
	}
	return map[string]func([]string) int{
		"run":      c.runDaemon,
		"watch":    c.runWatch,
		"sessions": c.runSessions,
		"config":   c.runConfig,
		"token":    c.runToken,
		"diag":     c.runDiag,
		"version": func([]string) int {
			fmt.Fprintf(c.stdout, "plexsleep version %s\n", version)
			return exitOK
		},
		"help":   help,
		"--help": help,
		"-h":     help,
	}
}

// options are the flags shared by every command that loads the config
type options struct {
	configPath string
	dryRun     bool
	logLevel   string
}

// parseFlags parses the shared flags plus any registered by extra
func (c *cli) parseFlags(name string, args []string, extra func(fs *pflag.FlagSet)) (options, []string, error) {
	var opts options
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the config file (default: $"+config.PathEnv+", "+configdir.ConfigDir()+"/config.yaml)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "log suspend requests instead of suspending")
	fs.StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	if extra != nil {
		extra(fs)
	}

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

// loadConfig loads the config and applies command-line overrides
func (c *cli) loadConfig(opts options, path string) (config.Config, error) {
	if path == "" {
		path = opts.configPath
	}

	cfg, err := config.Load(path, secretResolver())
	if err != nil {
		return config.Config{}, err
	}

	if opts.dryRun {
		cfg.DryRun = true
	}
	if opts.logLevel != "" {
		level, err := logging.ParseLevel(opts.logLevel)
		if err != nil {
			return config.Config{}, err
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

// secretResolver opens the store only when the config references a secret
func secretResolver() config.SecretResolver {
	return func(ref string) (string, error) {
		store, err := openStore()
		if err != nil {
			return "", err
		}
		return store.Resolve(ref)
	}
}

func openStore() (*secrets.Store, error) {
	logger := logging.NewLogger(logging.LevelWarn)
	return secrets.NewStore(secrets.DefaultConfig(configdir.StateDir()), logger)
}

func (c *cli) newLogger(cfg config.Config) (*logging.Logger, error) {
	if cfg.LogFile != "" {
		return logging.NewFileLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	}
	return logging.NewWriterLogger(cfg.LogLevel, cfg.LogFormat, c.stderr), nil
}

func (c *cli) fail(format string, a ...interface{}) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", a...)
	return exitFailure
}

func (c *cli) runDaemon(args []string) int {
	opts, _, err := c.parseFlags("run", args, nil)
	if err != nil {
		return flagExit(err)
	}

	cfg, err := c.loadConfig(opts, "")
	if err != nil {
		return c.fail("%v", err)
	}

	logger, err := c.newLogger(cfg)
	if err != nil {
		return c.fail("%v", err)
	}
	defer func() { _ = logger.Close() }()

	if err := agent.New(cfg, logger, version).Run(context.Background()); err != nil {
		logger.Error("agent.failed", "Agent stopped with an error", map[string]interface{}{
			"error": err.Error(),
		})
		return exitFailure
	}
	return exitOK
}

// runWatch runs the agent with the dashboard attached. Logs always go to a
// file so they do not corrupt the terminal.
func (c *cli) runWatch(args []string) int {
	opts, _, err := c.parseFlags("watch", args, nil)
	if err != nil {
		return flagExit(err)
	}

	cfg, err := c.loadConfig(opts, "")
	if err != nil {
		return c.fail("%v", err)
	}

	stateDir := configdir.StateDir()
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(stateDir, watchLogFile)
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return c.fail("%v", err)
	}
	defer func() { _ = logger.Close() }()

	a := agent.New(cfg, logger, version)
	program := tea.NewProgram(tui.NewModel(logger, tui.Header{
		Version:     version,
		Endpoint:    a.Endpoint(),
		PrimeTime:   cfg.PrimeTime.String(),
		InputSource: a.InputSource(),
		Executor:    a.ExecutorName(),
		DryRun:      cfg.DryRun,
	}, stateDir), tea.WithAltScreen())

	a.Machine().OnReport(func(r idle.Report) {
		program.Send(tui.ReportMsg{Report: r})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agentErr := make(chan error, 1)
	go func() {
		agentErr <- a.Run(ctx)
		program.Quit()
	}()

	logger.Info("app.started", "Watch dashboard started", map[string]interface{}{
		"version":  version,
		"log_file": cfg.LogFile,
	})

	_, runErr := program.Run()
	cancel()
	err = <-agentErr

	switch {
	case runErr != nil:
		logger.Error("app.error", "Dashboard error", map[string]interface{}{"error": runErr.Error()})
		return c.fail("dashboard: %v", runErr)
	case err != nil:
		return c.fail("agent: %v", err)
	}

	logger.Info("app.exited", "Watch dashboard exited", nil)
	return exitOK
}

// runSessions runs one probe and prints the active sessions
func (c *cli) runSessions(args []string) int {
	var asJSON bool
	opts, _, err := c.parseFlags("sessions", args, func(fs *pflag.FlagSet) {
		fs.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	})
	if err != nil {
		return flagExit(err)
	}

	cfg, err := c.loadConfig(opts, "")
	if err != nil {
		return c.fail("%v", err)
	}

	logger := logging.NewWriterLogger(cfg.LogLevel, cfg.LogFormat, c.stderr)
	client := plex.NewClient(plex.Config{
		Address: cfg.ServerAddress,
		Port:    cfg.ServerPort,
		Token:   cfg.Token,
		Timeout: cfg.ProbeTimeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout+time.Second)
	defer cancel()

	sessions, err := client.Sessions(ctx)
	if err != nil {
		return c.fail("probe %s: %v", client.Endpoint(), err)
	}

	if asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sessions); err != nil {
			return c.fail("%v", err)
		}
		return exitOK
	}

	if len(sessions) == 0 {
		fmt.Fprintln(c.stdout, "No active sessions")
		return exitOK
	}

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tUSER\tTITLE\tARTIST\tPLAYER")
	for _, s := range sessions {
		artist := s.Artist
		if artist == "" {
			artist = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.MediaType, s.User, s.Title, artist, s.PlayerName)
	}
	if err := w.Flush(); err != nil {
		return c.fail("%v", err)
	}
	return exitOK
}

func (c *cli) runConfig(args []string) int {
	if len(args) < 1 {
		fmt.Fprintf(c.stderr, "Usage: plexsleep config <subcommand>\n")
		fmt.Fprintf(c.stderr, "Subcommands:\n")
		fmt.Fprintf(c.stderr, "  test [path]  Test configuration file for validity\n")
		return exitFailure
	}

	switch subcommand := strings.ToLower(args[0]); subcommand {
	case "test":
		return c.runConfigTest(args[1:])
	default:
		fmt.Fprintf(c.stderr, "Unknown config subcommand: %s\n", subcommand)
		fmt.Fprintf(c.stderr, "Valid subcommands: test\n")
		return exitFailure
	}
}

// runConfigTest validates a configuration file and prints a summary
func (c *cli) runConfigTest(args []string) int {
	opts, rest, err := c.parseFlags("config test", args, nil)
	if err != nil {
		return flagExit(err)
	}
	path := ""
	if len(rest) > 0 {
		path = rest[0]
	}

	cfg, err := c.loadConfig(opts, path)
	if err != nil {
		fmt.Fprintf(c.stderr, "❌ Configuration validation FAILED:\n")
		fmt.Fprintf(c.stderr, "   %v\n", err)
		return exitFailure
	}

	fmt.Fprintf(c.stdout, "Testing configuration file: %s\n", cfg.Path)
	fmt.Fprintln(c.stdout, "✓ Configuration is VALID")
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Configuration Summary:")
	fmt.Fprintf(c.stdout, "  Plex Server:          %s:%d\n", cfg.ServerAddress, cfg.ServerPort)
	fmt.Fprintf(c.stdout, "  Token:                %s\n", maskToken(cfg.Token))
	fmt.Fprintf(c.stdout, "  Sleep Timer:          %s\n", time.Duration(cfg.TimeoutSeconds)*time.Second)
	fmt.Fprintf(c.stdout, "  Prime Time:           %s\n", cfg.PrimeTime)
	if cfg.PrimeTime.Overnight() {
		fmt.Fprintln(c.stdout, "                        (wraps past midnight)")
	}
	fmt.Fprintf(c.stdout, "  Probe Timeout:        %s\n", cfg.ProbeTimeout)
	fmt.Fprintf(c.stdout, "  Dry Run:              %t\n", cfg.DryRun)
	fmt.Fprintf(c.stdout, "  Log Level:            %s\n", cfg.LogLevel)
	fmt.Fprintf(c.stdout, "  Log Format:           %s\n", cfg.LogFormat)
	if cfg.MetricsListen != "" {
		fmt.Fprintf(c.stdout, "  Status Server:        %s\n", cfg.MetricsListen)
	}

	for _, w := range cfg.Warnings {
		fmt.Fprintf(c.stdout, "  ⚠ %s\n", w)
	}
	return exitOK
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}

// runToken manages the encrypted Plex token
func (c *cli) runToken(args []string) int {
	if len(args) < 1 {
		fmt.Fprintf(c.stderr, "Usage: plexsleep token <set|delete>\n")
		return exitFailure
	}

	store, err := openStore()
	if err != nil {
		return c.fail("%v", err)
	}

	switch subcommand := strings.ToLower(args[0]); subcommand {
	case "set":
		token, err := readToken(c.stdin)
		if err != nil {
			return c.fail("%v", err)
		}
		if err := store.Put(secrets.PlexTokenName, []byte(token)); err != nil {
			return c.fail("%v", err)
		}
		fmt.Fprintln(c.stdout, "✓ Plex token stored")
		fmt.Fprintf(c.stdout, "  Reference it in the config as: plexToken: \"%s%s\"\n", secrets.RefPrefix, secrets.PlexTokenName)
		return exitOK
	case "delete":
		if err := store.Delete(secrets.PlexTokenName); err != nil && !errors.Is(err, secrets.ErrNotFound) {
			return c.fail("%v", err)
		}
		fmt.Fprintln(c.stdout, "✓ Plex token removed")
		return exitOK
	default:
		fmt.Fprintf(c.stderr, "Unknown token subcommand: %s\n", subcommand)
		return exitFailure
	}
}

// readToken reads the first line of r
func readToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(io.LimitReader(r, maxTokenLength))
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", errors.New("no token on stdin")
	}
	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		return "", errors.New("token is empty")
	}
	return token, nil
}

// runDiag writes a redacted support bundle. It works with a broken config so
// it can be used to report exactly that.
func (c *cli) runDiag(args []string) int {
	var outputDir string
	var noLogs, noConfig bool
	opts, _, err := c.parseFlags("diag", args, func(fs *pflag.FlagSet) {
		fs.StringVarP(&outputDir, "output", "o", ".", "directory to write the package into")
		fs.BoolVar(&noLogs, "no-logs", false, "leave the agent log out of the package")
		fs.BoolVar(&noConfig, "no-config", false, "leave the config file out of the package")
	})
	if err != nil {
		return flagExit(err)
	}

	logger := logging.NewWriterLogger(logging.LevelWarn, logging.FormatText, c.stderr)
	dc := diag.NewConfig(version, outputDir)

	if path, err := config.ResolvePath(opts.configPath); err == nil && !noConfig {
		dc.ConfigPath = path
	}
	if !noLogs {
		dc.LogFile = filepath.Join(configdir.StateDir(), watchLogFile)
	}

	if cfg, err := c.loadConfig(opts, ""); err != nil {
		fmt.Fprintf(c.stderr, "Warning: configuration does not load, packaging it as is: %v\n", err)
	} else {
		if cfg.LogFile != "" && !noLogs {
			dc.LogFile = cfg.LogFile
		}
		dc.StatusURL = statusURL(cfg.MetricsListen)
	}

	path, err := diag.NewPackager(dc, logger).CreatePackage(context.Background())
	if err != nil {
		return c.fail("%v", err)
	}
	fmt.Fprintf(c.stdout, "✓ Diagnostic package written to %s\n", path)
	return exitOK
}

// statusURL turns the listen address into a URL reachable from this host
func statusURL(listen string) string {
	if listen == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/status"
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help"
}

func flagExit(err error) int {
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	return exitFailure
}

func (c *cli) printUsage() {
	fmt.Fprintf(c.stdout, `plexsleep - suspend the host when Plex and the local desk are idle (version %s)

Usage:
  plexsleep [run] [flags]          Run the idle loop in the foreground (default)
  plexsleep watch [flags]          Run the idle loop with a live dashboard
  plexsleep sessions [--json]      Probe the Plex server once and list active sessions
  plexsleep config test [path]     Test a configuration file for validity
  plexsleep token set              Read the Plex token from stdin and store it encrypted
  plexsleep token delete           Remove the stored Plex token
  plexsleep diag [-o dir] [--no-logs] [--no-config]
                                   Write a redacted diagnostic ZIP for bug reports
  plexsleep version                Print version information
  plexsleep help                   Show this help message

Flags:
  -c, --config <path>   Config file (default: $%s, then %s/config.yaml, then ./config.yaml)
      --dry-run         Log suspend requests instead of suspending
      --log-level <lvl> Override the configured log level

Environment:
  %s   Config directory
  %s    State directory (secrets, dashboard log)
`, version, config.PathEnv, configdir.ConfigDir(), configdir.ConfigDirEnv, configdir.StateDirEnv)
}
