package device

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/tinysa/internal/monitoring"
	"github.com/banshee-data/tinysa/internal/transport"
)

// DefaultTimeout bounds each blocking read.
const DefaultTimeout = 10 * time.Millisecond

// Session is one live connection to the instrument. It owns its port: the
// port is closed exactly once, by Close. A Session is not safe for
// concurrent use.
type Session struct {
	port    transport.Port
	name    string
	timeout time.Duration
	applied time.Duration

	closeOnce sync.Once
}

type sessionConfig struct {
	identity Identity
	options  transport.PortOptions
	timeout  time.Duration
}

// Option configures Open.
type Option func(*sessionConfig)

// WithIdentity overrides the USB identity searched for.
func WithIdentity(id Identity) Option {
	return func(c *sessionConfig) { c.identity = id }
}

// WithPortOptions sets the line settings used to open the port.
func WithPortOptions(opts transport.PortOptions) Option {
	return func(c *sessionConfig) { c.options = opts }
}

// WithTimeout sets the initial read timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *sessionConfig) { c.timeout = d }
}

// Open locates the instrument (on portName when non-empty, otherwise by
// enumeration) and opens it for reading and writing.
func Open(t transport.Transport, portName string, opts ...Option) (*Session, error) {
	cfg := sessionConfig{identity: TinySA4, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	mode, err := cfg.options.SerialMode()
	if err != nil {
		return nil, err
	}

	desc, err := Locate(t, cfg.identity, portName)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, portError(ErrDeviceNotFound, portName, nil)
	}

	port, err := t.Open(desc, mode)
	if err != nil {
		return nil, portError(ErrOpenFailed, desc.Name, err)
	}
	monitoring.Debugf("opened %s", desc)

	s := NewSession(port, desc.Name)
	s.timeout = cfg.timeout
	return s, nil
}

// NewSession takes ownership of an already open port.
func NewSession(port transport.Port, name string) *Session {
	return &Session{
		port:    port,
		name:    name,
		timeout: DefaultTimeout,
		applied: -1,
	}
}

// PortName returns the name of the port the session was opened on.
func (s *Session) PortName() string {
	return s.name
}

// Timeout returns the read timeout used by Receive.
func (s *Session) Timeout() time.Duration {
	return s.timeout
}

// SetTimeout changes the read timeout for subsequent calls.
func (s *Session) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Send writes p and returns the number of bytes the port accepted, which may
// be less than len(p). An empty p is a no-op.
//
// go.bug.st/serial has no write deadline; the write blocks until the driver
// accepts the data.
func (s *Session) Send(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.port == nil {
		return 0, portError(ErrSessionClosed, s.name, nil)
	}

	n, err := s.port.Write(p)
	if err != nil {
		return n, portError(ErrWriteFailed, s.name, err)
	}
	return n, nil
}

// Receive performs one read bounded by the session timeout. Zero bytes means
// nothing arrived within the timeout. An empty p is a no-op.
func (s *Session) Receive(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.port == nil {
		return 0, portError(ErrSessionClosed, s.name, nil)
	}

	if s.applied != s.timeout {
		if err := s.port.SetReadTimeout(s.timeout); err != nil {
			return 0, portError(ErrReadFailed, s.name, err)
		}
		s.applied = s.timeout
	}

	n, err := s.port.Read(p)
	if err != nil && !(errors.Is(err, io.EOF) && n == 0) {
		return n, portError(ErrReadFailed, s.name, err)
	}
	return n, nil
}

// Close closes the port. It is safe to call more than once and on a session
// whose port is nil. Close errors are logged, never returned, so Close can be
// deferred unconditionally.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.port == nil {
			return
		}
		if err := s.port.Close(); err != nil {
			monitoring.Warnf("closing %s: %v", s.name, err)
		}
		s.port = nil
	})
	return nil
}
