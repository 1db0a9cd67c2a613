// Package protocol speaks the tinySA4's line-oriented console protocol: a
// command terminated by "\r" is echoed back by the instrument, followed by
// the response text. There is no length field; a response ends when a read
// times out with no data.
package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/tinysa/internal/monitoring"
	"github.com/banshee-data/tinysa/internal/timeutil"
)

const (
	// Terminator ends every command sent to the instrument.
	Terminator = "\r"

	// Prompt is printed by the instrument once a response is complete.
	Prompt = "ch> "

	// ExitCommand ends an interactive session without being sent.
	ExitCommand = "exit"

	bufferSize = 1024
)

// ErrResponseTimeout is returned when a response keeps streaming past the
// client's MaxResponseTime.
var ErrResponseTimeout = errors.New("response did not complete in time")

// Conn is the byte link to the instrument. *device.Session implements it.
type Conn interface {
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
}

// Recorder is offered every completed exchange, successful or not.
type Recorder interface {
	RecordExchange(ctx context.Context, resp Response, execErr error) error
}

// Response is one command exchange.
type Response struct {
	Command   string
	Text      string
	Written   int
	Requested int
	Started   time.Time
	Duration  time.Duration
}

// ShortWrite reports whether the port accepted fewer bytes than were sent.
func (r Response) ShortWrite() bool {
	return r.Written < r.Requested
}

// Body returns the response text without the trailing prompt and
// surrounding line breaks.
func (r Response) Body() string {
	body := strings.TrimRight(r.Text, " ")
	body = strings.TrimSuffix(body, strings.TrimRight(Prompt, " "))
	return strings.Trim(body, "\r\n")
}

// Lines splits Body into lines, dropping empty ones.
func (r Response) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Body(), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Frame appends the statement terminator unless cmd already ends with it.
func Frame(cmd string) string {
	if strings.HasSuffix(cmd, Terminator) {
		return cmd
	}
	return cmd + Terminator
}

// Client executes commands over a Conn. Exchanges are serialised so the
// debug HTTP routes can share a client with the console loop.
type Client struct {
	conn            Conn
	clock           timeutil.Clock
	recorder        Recorder
	maxResponseTime time.Duration

	commandMu sync.Mutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClock replaces the clock used to time exchanges.
func WithClock(c timeutil.Clock) ClientOption {
	return func(cl *Client) { cl.clock = c }
}

// WithRecorder attaches a transcript recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(cl *Client) { cl.recorder = r }
}

// WithMaxResponseTime bounds how long a single response may keep arriving.
// Zero means unbounded.
func WithMaxResponseTime(d time.Duration) ClientOption {
	return func(cl *Client) { cl.maxResponseTime = d }
}

// NewClient creates a Client.
func NewClient(conn Conn, opts ...ClientOption) *Client {
	c := &Client{conn: conn, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute sends cmd and collects the whole response.
func (c *Client) Execute(ctx context.Context, cmd string) (Response, error) {
	c.commandMu.Lock()
	defer c.commandMu.Unlock()

	resp, err := c.exchange(ctx, cmd)
	if c.recorder != nil {
		if rerr := c.recorder.RecordExchange(ctx, resp, err); rerr != nil {
			monitoring.Warnf("recording %q: %v", resp.Command, rerr)
		}
	}
	return resp, err
}

func (c *Client) exchange(ctx context.Context, cmd string) (Response, error) {
	framed := Frame(cmd)
	resp := Response{
		Command:   strings.TrimSuffix(framed, Terminator),
		Requested: len(framed),
		Started:   c.clock.Now(),
	}

	if err := ctx.Err(); err != nil {
		return resp, err
	}

	n, err := c.conn.Send([]byte(framed))
	resp.Written = n
	if err != nil {
		resp.Duration = c.clock.Since(resp.Started)
		return resp, err
	}
	if n < len(framed) {
		monitoring.Warnf("only %d of %d bytes of %q were written", n, len(framed), resp.Command)
	}

	var text strings.Builder
	// The instrument echoes the command followed by "\r\n"; the terminator
	// is already part of framed, so one more byte covers the echo.
	err = c.drain(ctx, resp.Started, len(framed)+1, &text)
	resp.Text = text.String()
	resp.Duration = c.clock.Since(resp.Started)
	return resp, err
}

// drain reads until a read returns no data. The first skip bytes are the
// echo and are dropped even when they arrive over several reads.
func (c *Client) drain(ctx context.Context, started time.Time, skip int, out *strings.Builder) error {
	buf := make([]byte, bufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.maxResponseTime > 0 && c.clock.Since(started) > c.maxResponseTime {
			return fmt.Errorf("%w after %s", ErrResponseTimeout, c.maxResponseTime)
		}

		// The last byte of buf is reserved for a NUL terminator.
		n, err := c.conn.Receive(buf[:bufferSize-1])
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		chunk := buf[:n]
		if skip > 0 {
			k := min(skip, len(chunk))
			chunk = chunk[k:]
			skip -= k
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			chunk = chunk[:i]
		}
		if len(chunk) == 0 {
			continue
		}
		out.Write(chunk)
	}
}
