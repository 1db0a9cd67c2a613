package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/tinysa/internal/config"
	"github.com/banshee-data/tinysa/internal/device"
	"github.com/banshee-data/tinysa/internal/fsutil"
	"github.com/banshee-data/tinysa/internal/monitoring"
	"github.com/banshee-data/tinysa/internal/protocol"
	"github.com/banshee-data/tinysa/internal/transport"
	"github.com/banshee-data/tinysa/internal/version"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// errUsage marks errors caused by bad arguments; usage has already been
// printed.
var errUsage = errors.New("usage error")

// app carries the process environment so tests can substitute the serial
// transport, the filesystem and the terminal.
type app struct {
	transport transport.Transport
	fsys      fsutil.FileSystem
	stdout    io.Writer
	stderr    io.Writer

	// newLineReader opens the interactive line editor.
	newLineReader func(historyPath string) (protocol.LineReader, func() error)

	cfg *config.Config
	dev bool
	db  string
}

func newApp() *app {
	return &app{
		transport: transport.NewSerialTransport(),
		fsys:      fsutil.OSFileSystem{},
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		newLineReader: func(historyPath string) (protocol.LineReader, func() error) {
			r := protocol.NewLinerReader(historyPath, protocol.Commands)
			return r, r.Close
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp().run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (a *app) usage() {
	fmt.Fprint(a.stderr, `tinysa - console and preset tools for the tinySA4 spectrum analyser

Usage: tinysa [global flags] <command> [options]

Commands:
  console    Talk to the instrument (interactive, or batch with -e)
  ports      List serial ports and mark tinySA4 devices
  preset     Verify, export or build .prs preset files
  sweep      Capture a sweep and write CSV, PNG or HTML
  version    Show version information
  help       Show this help message

Global flags:
  -config <file>   JSON configuration file
  -db <file>       Record transcripts and preset checks in this SQLite database
  -dev             Use the built-in simulated instrument
  -v               Verbose logging
  -q               Quiet: suppress diagnostic logging
  -version         Show version information
`)
}

func (a *app) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("tinysa", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = a.usage
	configPath := fs.String("config", "", "JSON configuration file")
	dbPath := fs.String("db", "", "SQLite database for transcripts and preset checks")
	dev := fs.Bool("dev", false, "Use the simulated instrument")
	verbose := fs.Bool("v", false, "Verbose logging")
	quiet := fs.Bool("q", false, "Suppress diagnostic logging")
	showVersion := fs.Bool("version", false, "Show version information")
	if err := parseFlags(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	a.setupLogging(*verbose, *quiet)

	if *showVersion {
		fmt.Fprintln(a.stdout, version.String())
		return exitOK
	}

	a.cfg = &config.Config{}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return exitFail
		}
		a.cfg = cfg
	}
	a.db = a.cfg.GetDatabase()
	if *dbPath != "" {
		a.db = *dbPath
	}
	a.dev = *dev
	if a.dev {
		a.transport = transport.NewSimulator(device.TinySA4.VendorID, device.TinySA4.ProductID)
	}

	if fs.NArg() < 1 {
		a.usage()
		return exitUsage
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch command {
	case "console":
		err = a.runConsole(ctx, rest)
	case "ports":
		err = a.runPorts(rest)
	case "preset":
		err = a.runPreset(ctx, rest)
	case "sweep":
		err = a.runSweep(ctx, rest)
	case "version":
		fmt.Fprintln(a.stdout, version.String())
	case "help":
		a.usage()
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n\n", command)
		a.usage()
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFail
	}
}

func (a *app) setupLogging(verbose, quiet bool) {
	flags := 0
	if verbose {
		flags = log.LstdFlags | log.Lshortfile
	}
	logger := log.New(a.stderr, "", flags)
	monitoring.SetLogger(logger.Printf)
	monitoring.SetVerbose(verbose)
	if quiet {
		monitoring.SetLogger(nil)
	}
}

// subcommand creates a flag set whose errors and usage go to stderr.
func (a *app) subcommand(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: tinysa %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses a subcommand's flags. Bad flags are usage errors; the
// flag package has already printed the message and usage.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return errUsage
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
