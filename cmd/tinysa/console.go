package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/banshee-data/tinysa/internal/device"
	"github.com/banshee-data/tinysa/internal/monitoring"
	"github.com/banshee-data/tinysa/internal/protocol"
	"github.com/banshee-data/tinysa/internal/store"
)

// instrument is an open device with its command client and, when a database
// is configured, the transcript it records into.
type instrument struct {
	session  *device.Session
	client   *protocol.Client
	db       *store.DB
	recorder *store.Recorder
}

func (in *instrument) Close() {
	if in.recorder != nil {
		if err := in.recorder.End(context.Background()); err != nil {
			monitoring.Warnf("closing transcript: %v", err)
		}
	}
	if in.db != nil {
		in.db.Close()
	}
	in.session.Close()
}

type connectOptions struct {
	port        string
	timeout     time.Duration
	maxResponse time.Duration
}

// connect opens the instrument using the configuration, with non-zero
// fields of opts taking precedence.
func (a *app) connect(ctx context.Context, opts connectOptions) (*instrument, error) {
	port := a.cfg.GetPort()
	if opts.port != "" {
		port = opts.port
	}
	timeout := a.cfg.GetTimeout()
	if opts.timeout > 0 {
		timeout = opts.timeout
	}
	maxResponse := a.cfg.GetMaxResponseTime()
	if opts.maxResponse > 0 {
		maxResponse = opts.maxResponse
	}

	session, err := device.Open(a.transport, port,
		device.WithPortOptions(a.cfg.PortOptions()),
		device.WithTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}
	monitoring.Debugf("connected to %s", session.PortName())

	in := &instrument{session: session}
	clientOpts := []protocol.ClientOption{protocol.WithMaxResponseTime(maxResponse)}
	if a.db != "" {
		db, err := store.Open(a.db)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
		in.db = db
		rec, err := db.StartSession(ctx, session.PortName())
		if err != nil {
			in.Close()
			return nil, err
		}
		in.recorder = rec
		clientOpts = append(clientOpts, protocol.WithRecorder(rec))
	}
	in.client = protocol.NewClient(session, clientOpts...)
	return in, nil
}

func (a *app) runConsole(ctx context.Context, args []string) error {
	fs := a.subcommand("console", "console [options]")
	port := fs.String("port", "", "Serial port (default: first tinySA4 found)")
	timeout := fs.Duration("timeout", 0, "Per-read timeout (default 10ms)")
	maxResponse := fs.Duration("max-response", 0, "Give up on a response still arriving after this long")
	initial := fs.String("initial", "", "Command sent on connect in interactive mode (default from config, else help)")
	debugListen := fs.String("debug-listen", "", "Serve debug routes on this address, e.g. localhost:8081")
	history := fs.String("history", "", "Line history file")
	var commands stringList
	fs.Var(&commands, "e", "Run `command` and exit (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return errUsage
	}

	in, err := a.connect(ctx, connectOptions{port: *port, timeout: *timeout, maxResponse: *maxResponse})
	if err != nil {
		return err
	}
	defer in.Close()

	listen := a.cfg.GetDebugListen()
	if *debugListen != "" {
		listen = *debugListen
	}
	if listen != "" {
		stop, err := a.serveDebug(in, listen)
		if err != nil {
			return err
		}
		defer stop()
	}

	if len(commands) > 0 {
		return protocol.RunBatch(ctx, in.client, commands, a.stdout)
	}

	first := a.cfg.GetInitialCommand()
	if *initial != "" {
		first = *initial
	}
	historyPath := a.cfg.GetHistoryFile()
	if *history != "" {
		historyPath = *history
	}
	lines, closeLines := a.newLineReader(historyPath)
	defer closeLines()
	return protocol.RunInteractive(ctx, in.client, lines, a.stdout, first)
}

// serveDebug mounts the command and store routes and serves them until the
// returned stop function is called.
func (a *app) serveDebug(in *instrument, addr string) (func(), error) {
	mux := http.NewServeMux()
	in.client.AttachAdminRoutes(mux)
	if in.db != nil {
		if err := in.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("debug listener: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("debug server: %v", err)
		}
	}()
	monitoring.Logf("debug routes on http://%s/debug/", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
