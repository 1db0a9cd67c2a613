package transport

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// FakeTransport implements Transport over a fixed set of descriptors. Each
// error field, when set, is returned by the matching call.
type FakeTransport struct {
	mu sync.Mutex

	Ports []*PortDescriptor

	ListError   error
	ByNameError error
	CopyError   error
	OpenError   error

	// NewPort builds the port returned by Open. When nil, Open returns a
	// fresh TestablePort.
	NewPort func(d *PortDescriptor) Port

	ListCalls   int
	ByNameCalls int
	CopyCalls   int
	Releases    int
	Opened      []string
	LastMode    *serial.Mode
}

// ListPorts returns copies of Ports.
func (f *FakeTransport) ListPorts() (*PortList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++
	if f.ListError != nil {
		return nil, f.ListError
	}
	ports := make([]*PortDescriptor, len(f.Ports))
	for i, p := range f.Ports {
		dup := *p
		ports[i] = &dup
	}
	return NewPortList(ports, func() {
		f.mu.Lock()
		f.Releases++
		f.mu.Unlock()
	}), nil
}

// PortByName finds a port by exact name.
func (f *FakeTransport) PortByName(name string) (*PortDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ByNameCalls++
	if f.ByNameError != nil {
		return nil, f.ByNameError
	}
	for _, p := range f.Ports {
		if p.Name == name {
			dup := *p
			return &dup, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchPort, name)
}

// CopyPort duplicates d unless CopyError is set.
func (f *FakeTransport) CopyPort(d *PortDescriptor) (*PortDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CopyCalls++
	if f.CopyError != nil {
		return nil, f.CopyError
	}
	dup := *d
	return &dup, nil
}

// Open records the open and returns the configured port.
func (f *FakeTransport) Open(d *PortDescriptor, mode *serial.Mode) (Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OpenError != nil {
		return nil, f.OpenError
	}
	f.Opened = append(f.Opened, d.Name)
	f.LastMode = mode
	if f.NewPort != nil {
		return f.NewPort(d), nil
	}
	return NewTestablePort(), nil
}

// TestablePort implements Port with scripted reads for tests and the
// simulated instrument. Reads are served chunk by chunk from Reads; once the
// script is exhausted a read returns (0, nil), which is what a real port
// does when the read timeout expires with no data.
type TestablePort struct {
	mu sync.Mutex

	// Reads holds the chunks returned by successive Read calls. A chunk
	// larger than the caller's buffer is split across calls.
	Reads [][]byte

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// ShortWrite, when positive, caps the number of bytes each Write accepts.
	ShortWrite int

	// TimeoutError is returned by SetReadTimeout if set.
	TimeoutError error

	// CloseError is returned by Close if set.
	CloseError error

	// Responder, when set, is called for every complete "\r"-terminated
	// command written to the port; the port then queues the echo followed
	// by the returned text, the way the instrument answers.
	Responder func(command string) string

	Closed       bool
	CloseCalls   int
	ReadCalls    int
	WriteCalls   int
	ReadTimeouts []time.Duration

	pending strings.Builder
}

// NewTestablePort creates an empty TestablePort.
func NewTestablePort(reads ...[]byte) *TestablePort {
	return &TestablePort{
		Reads:       reads,
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read serves the next scripted chunk.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if len(t.Reads) == 0 {
		return 0, nil
	}

	chunk := t.Reads[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		t.Reads[0] = chunk[n:]
	} else {
		t.Reads = t.Reads[1:]
	}
	return n, nil
}

// Write captures p, honouring ShortWrite and WriteError.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	n := len(p)
	if t.ShortWrite > 0 && n > t.ShortWrite {
		n = t.ShortWrite
	}
	t.WriteBuffer.Write(p[:n])
	if t.Responder != nil {
		t.respond(p[:n])
	}
	return n, nil
}

func (t *TestablePort) respond(p []byte) {
	t.pending.Write(p)
	for {
		buffered := t.pending.String()
		i := strings.IndexByte(buffered, '\r')
		if i < 0 {
			return
		}
		command := buffered[:i]
		t.pending.Reset()
		t.pending.WriteString(buffered[i+1:])

		t.Reads = append(t.Reads, []byte(command+"\r\n"+t.Responder(command)))
	}
}

// SetReadTimeout records the timeout.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.TimeoutError != nil {
		return t.TimeoutError
	}
	t.ReadTimeouts = append(t.ReadTimeouts, timeout)
	return nil
}

// Close marks the port closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.CloseCalls++
	t.Closed = true
	return t.CloseError
}

// Written returns everything written so far.
func (t *TestablePort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.String()
}
