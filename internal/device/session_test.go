package device

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tinysa/internal/monitoring"
	"github.com/banshee-data/tinysa/internal/transport"
)

func openTestSession(t *testing.T, port *transport.TestablePort) (*Session, *transport.FakeTransport) {
	t.Helper()
	tr := &transport.FakeTransport{
		Ports:   []*transport.PortDescriptor{usbPort("/dev/ttyACM0", 0x0483, 0x5740)},
		NewPort: func(*transport.PortDescriptor) transport.Port { return port },
	}
	s, err := Open(tr, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, tr
}

func TestOpen(t *testing.T) {
	port := transport.NewTestablePort()
	s, tr := openTestSession(t, port)

	assert.Equal(t, "/dev/ttyACM0", s.PortName())
	assert.Equal(t, DefaultTimeout, s.Timeout())
	assert.Equal(t, []string{"/dev/ttyACM0"}, tr.Opened)
	require.NotNil(t, tr.LastMode)
	assert.Equal(t, transport.DefaultBaudRate, tr.LastMode.BaudRate)
}

func TestOpen_Options(t *testing.T) {
	tr := &transport.FakeTransport{Ports: []*transport.PortDescriptor{usbPort("/dev/ttyACM3", 0x1209, 0x0001)}}

	s, err := Open(tr, "",
		WithIdentity(Identity{VendorID: 0x1209, ProductID: 0x0001}),
		WithPortOptions(transport.PortOptions{BaudRate: 9600}),
		WithTimeout(250*time.Millisecond),
	)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 250*time.Millisecond, s.Timeout())
	assert.Equal(t, 9600, tr.LastMode.BaudRate)

	_, err = Open(tr, "", WithPortOptions(transport.PortOptions{StopBits: 5}))
	assert.Error(t, err)
}

func TestOpen_DeviceNotFound(t *testing.T) {
	tr := &transport.FakeTransport{Ports: []*transport.PortDescriptor{
		usbPort("/dev/ttyUSB0", 0x0403, 0x6001),
	}}

	_, err := Open(tr, "")
	require.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Equal(t, "could not find tinySA4 device", err.Error())

	_, err = Open(tr, "/dev/ttyUSB0")
	require.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Equal(t, "could not find tinySA4 device at port /dev/ttyUSB0", err.Error())
	assert.Empty(t, tr.Opened)
}

func TestOpen_PropagatesLocatorErrors(t *testing.T) {
	tr := &transport.FakeTransport{ListError: errors.New("no udev")}
	_, err := Open(tr, "")
	assert.ErrorIs(t, err, ErrEnumerationFailed)

	_, err = Open(tr, "/dev/nothing")
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestOpen_OpenFailed(t *testing.T) {
	tr := &transport.FakeTransport{
		Ports:     []*transport.PortDescriptor{usbPort("/dev/ttyACM0", 0x0483, 0x5740)},
		OpenError: errors.New("permission denied"),
	}

	_, err := Open(tr, "")
	require.ErrorIs(t, err, ErrOpenFailed)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSession_EmptyBuffersSkipTransport(t *testing.T) {
	port := transport.NewTestablePort([]byte("data"))
	s, _ := openTestSession(t, port)

	n, err := s.Send(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Receive([]byte{})
	assert.NoError(t, err)
	assert.Zero(t, n)

	assert.Zero(t, port.WriteCalls)
	assert.Zero(t, port.ReadCalls)
	assert.Empty(t, port.ReadTimeouts)
}

func TestSession_Send(t *testing.T) {
	port := transport.NewTestablePort()
	s, _ := openTestSession(t, port)

	n, err := s.Send([]byte("version\r"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "version\r", port.Written())
}

func TestSession_SendPartial(t *testing.T) {
	port := transport.NewTestablePort()
	port.ShortWrite = 3
	s, _ := openTestSession(t, port)

	n, err := s.Send([]byte("version\r"))
	require.NoError(t, err, "partial writes are reported by count, not error")
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, port.WriteCalls, "no internal retry")
}

func TestSession_SendFailed(t *testing.T) {
	port := transport.NewTestablePort()
	port.WriteError = errors.New("EIO")
	s, _ := openTestSession(t, port)

	_, err := s.Send([]byte("x"))
	require.ErrorIs(t, err, ErrWriteFailed)

	var pe *PortError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/dev/ttyACM0", pe.Port)
	assert.Equal(t, "could not write to device at port /dev/ttyACM0: EIO", err.Error())
}

func TestSession_Receive(t *testing.T) {
	port := transport.NewTestablePort([]byte("abc"))
	s, _ := openTestSession(t, port)

	buf := make([]byte, 16)
	n, err := s.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	n, err = s.Receive(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "timeout with no data reads zero bytes")

	assert.Equal(t, []time.Duration{DefaultTimeout}, port.ReadTimeouts, "timeout applied once")
}

func TestSession_ReceiveTreatsEOFAsNoData(t *testing.T) {
	port := transport.NewTestablePort()
	port.ReadError = io.EOF
	s, _ := openTestSession(t, port)

	n, err := s.Receive(make([]byte, 4))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_ReceiveFailed(t *testing.T) {
	port := transport.NewTestablePort()
	port.ReadError = errors.New("device unplugged")
	s, _ := openTestSession(t, port)

	_, err := s.Receive(make([]byte, 4))
	require.ErrorIs(t, err, ErrReadFailed)
	assert.Contains(t, err.Error(), "/dev/ttyACM0")
}

func TestSession_ReceiveTimeoutError(t *testing.T) {
	port := transport.NewTestablePort()
	port.TimeoutError = errors.New("ioctl failed")
	s, _ := openTestSession(t, port)

	_, err := s.Receive(make([]byte, 4))
	assert.ErrorIs(t, err, ErrReadFailed)
}

func TestSession_SetTimeout(t *testing.T) {
	port := transport.NewTestablePort()
	s, _ := openTestSession(t, port)

	buf := make([]byte, 4)
	_, _ = s.Receive(buf)
	s.SetTimeout(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, s.Timeout())
	_, _ = s.Receive(buf)
	_, _ = s.Receive(buf)

	assert.Equal(t, []time.Duration{DefaultTimeout, 100 * time.Millisecond}, port.ReadTimeouts)
}

func TestSession_CloseOnce(t *testing.T) {
	port := transport.NewTestablePort()
	s, _ := openTestSession(t, port)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, port.CloseCalls)

	_, err := s.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Receive(make([]byte, 1))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_CloseErrorIsLoggedNotReturned(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	port := transport.NewTestablePort()
	port.CloseError = errors.New("EBUSY")
	s := NewSession(port, "/dev/ttyACM0")

	assert.NoError(t, s.Close())
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "EBUSY")
}

func TestSession_CloseNilPort(t *testing.T) {
	s := NewSession(nil, "")
	assert.NotPanics(t, func() { s.Close() })
}
