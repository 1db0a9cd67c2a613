package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tinysa/internal/transport"
)

// scriptedLines replays lines and then returns end.
type scriptedLines struct {
	lines   []string
	end     error
	prompts int
}

func (s *scriptedLines) Prompt(prompt string) (string, error) {
	s.prompts++
	if len(s.lines) == 0 {
		if s.end != nil {
			return "", s.end
		}
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func echoPort() *transport.TestablePort {
	port := transport.NewTestablePort()
	port.Responder = func(cmd string) string { return "<" + cmd + ">\r\nch> " }
	return port
}

func TestRunInteractive_ExitIsNeverSent(t *testing.T) {
	port := echoPort()
	c := newTestClient(t, port)
	lines := &scriptedLines{lines: []string{"info", "", "  ", "exit", "never"}}
	var out bytes.Buffer

	err := RunInteractive(context.Background(), c, lines, &out, "version")
	require.NoError(t, err)

	assert.Equal(t, "version\rinfo\r", port.Written())
	assert.Equal(t, "<version>\n<info>\n", out.String())
	assert.Equal(t, 4, lines.prompts)
}

func TestRunInteractive_InitialExit(t *testing.T) {
	port := echoPort()
	c := newTestClient(t, port)
	lines := &scriptedLines{}

	require.NoError(t, RunInteractive(context.Background(), c, lines, io.Discard, "exit"))
	assert.Zero(t, port.WriteCalls)
	assert.Zero(t, lines.prompts)
}

func TestRunInteractive_EmptyFirstCommandPrompts(t *testing.T) {
	port := echoPort()
	c := newTestClient(t, port)
	lines := &scriptedLines{lines: []string{"version"}}

	require.NoError(t, RunInteractive(context.Background(), c, lines, io.Discard, ""))
	assert.Equal(t, "version\r", port.Written())
}

func TestRunInteractive_EndOfInput(t *testing.T) {
	for _, end := range []error{io.EOF, liner.ErrPromptAborted} {
		port := echoPort()
		c := newTestClient(t, port)
		lines := &scriptedLines{lines: []string{"info"}, end: end}

		err := RunInteractive(context.Background(), c, lines, io.Discard, "")
		assert.NoError(t, err, "end %v", end)
		assert.Equal(t, "info\r", port.Written())
	}
}

func TestRunInteractive_PromptError(t *testing.T) {
	c := newTestClient(t, echoPort())
	boom := errors.New("terminal gone")

	err := RunInteractive(context.Background(), c, &scriptedLines{end: boom}, io.Discard, "")
	assert.ErrorIs(t, err, boom)
}

func TestRunInteractive_DeviceErrorStops(t *testing.T) {
	port := echoPort()
	port.WriteError = errors.New("EIO")
	c := newTestClient(t, port)
	lines := &scriptedLines{lines: []string{"info"}}

	err := RunInteractive(context.Background(), c, lines, io.Discard, "version")
	require.Error(t, err)
	assert.Zero(t, lines.prompts)
}

func TestRunBatch_SequentialInOrder(t *testing.T) {
	port := echoPort()
	c := newTestClient(t, port)
	var out bytes.Buffer

	err := RunBatch(context.Background(), c, []string{"version", "info", "frequencies"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "version\rinfo\rfrequencies\r", port.Written())
	assert.Equal(t,
		"ch> version\n<version>\nch> info\n<info>\nch> frequencies\n<frequencies>\n",
		out.String())
}

func TestRunBatch_StopsAtFirstFailure(t *testing.T) {
	port := echoPort()
	c := newTestClient(t, port)

	conn := &failAfterConn{Conn: c.conn, after: 2}
	c = NewClient(conn)
	err := RunBatch(context.Background(), c, []string{"version", "info", "help"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `command "info"`)
	assert.Equal(t, "version\rinfo\r", port.Written())
}

func TestRunBatch_Empty(t *testing.T) {
	port := echoPort()
	c := newTestClient(t, port)
	assert.NoError(t, RunBatch(context.Background(), c, nil, io.Discard))
	assert.Zero(t, port.WriteCalls)
}
