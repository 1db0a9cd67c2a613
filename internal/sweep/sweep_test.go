package sweep

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tinysa/internal/device"
	"github.com/banshee-data/tinysa/internal/fsutil"
	"github.com/banshee-data/tinysa/internal/protocol"
	"github.com/banshee-data/tinysa/internal/transport"
)

// scriptedExecutor answers commands from a map and records what was sent.
type scriptedExecutor struct {
	replies map[string]string
	errs    map[string]error
	sent    []string
}

func (s *scriptedExecutor) Execute(_ context.Context, cmd string) (protocol.Response, error) {
	s.sent = append(s.sent, cmd)
	if err := s.errs[cmd]; err != nil {
		return protocol.Response{Command: cmd}, err
	}
	return protocol.Response{Command: cmd, Text: s.replies[cmd] + "ch> "}, nil
}

func simulatedClient(t *testing.T) *protocol.Client {
	t.Helper()
	sim := transport.NewSimulator(device.TinySA4.VendorID, device.TinySA4.ProductID)
	s, err := device.Open(sim, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return protocol.NewClient(s)
}

func TestCapture_Simulator(t *testing.T) {
	c := simulatedClient(t)

	trace, err := Capture(context.Background(), c, Request{Start: 100_000_000, Stop: 200_000_000, Array: ArrayActual})
	require.NoError(t, err)
	require.Equal(t, 11, trace.Len())
	assert.Equal(t, 100e6, trace.Frequencies[0])
	assert.Equal(t, 200e6, trace.Frequencies[10])
	assert.Equal(t, -90.0, trace.Levels[0])
	assert.Equal(t, -20.5, trace.Levels[6])
}

func TestCapture_CommandOrder(t *testing.T) {
	ex := &scriptedExecutor{replies: map[string]string{
		"frequencies": "1000000\r\n2000000\r\n",
		"data 1":      "-50.5\r\n-40.25\r\n",
	}}

	trace, err := Capture(context.Background(), ex, Request{Start: 1_000_000, Stop: 2_000_000, Array: ArrayStored})
	require.NoError(t, err)
	assert.Equal(t, []string{"sweep start 1000000", "sweep stop 2000000", "frequencies", "data 1"}, ex.sent)
	assert.Equal(t, []float64{1e6, 2e6}, trace.Frequencies)
	assert.Equal(t, []float64{-50.5, -40.25}, trace.Levels)
}

func TestCapture_ZeroLimitsLeaveSweepAlone(t *testing.T) {
	ex := &scriptedExecutor{replies: map[string]string{
		"frequencies": "1\r\n",
		"data 2":      "-1\r\n",
	}}
	_, err := Capture(context.Background(), ex, Request{Array: ArrayActual})
	require.NoError(t, err)
	assert.Equal(t, []string{"frequencies", "data 2"}, ex.sent)
}

func TestCapture_Errors(t *testing.T) {
	deviceErr := errors.New("EIO")
	tests := []struct {
		name    string
		replies map[string]string
		errs    map[string]error
		want    error
		wantMsg string
	}{
		{
			name:    "empty trace",
			replies: map[string]string{},
			want:    ErrEmptyTrace,
		},
		{
			name:    "length mismatch",
			replies: map[string]string{"frequencies": "1\r\n2\r\n", "data 2": "-3\r\n"},
			want:    ErrLengthMismatch,
		},
		{
			name:    "unparseable level",
			replies: map[string]string{"frequencies": "1\r\n", "data 2": "data?\r\n"},
			wantMsg: `parsing "data 2" reply`,
		},
		{
			name: "device error",
			errs: map[string]error{"frequencies": deviceErr},
			want: deviceErr,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ex := &scriptedExecutor{replies: tc.replies, errs: tc.errs}
			_, err := Capture(context.Background(), ex, Request{Array: ArrayActual})
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestCapture_SweepStartFailureStops(t *testing.T) {
	ex := &scriptedExecutor{errs: map[string]error{"sweep start 5": errors.New("boom")}}
	_, err := Capture(context.Background(), ex, Request{Start: 5, Stop: 10})
	require.Error(t, err)
	assert.Equal(t, []string{"sweep start 5"}, ex.sent)
}

func simulatorTrace() *Trace {
	t := &Trace{}
	for i := 0; i < 11; i++ {
		level := -90.0 + float64(i%5)
		if i == 6 {
			level = -20.5
		}
		t.Frequencies = append(t.Frequencies, float64(100_000_000+i*10_000_000))
		t.Levels = append(t.Levels, level)
	}
	return t
}

func TestSummarise(t *testing.T) {
	s, err := Summarise(simulatorTrace())
	require.NoError(t, err)
	assert.Equal(t, 11, s.Points)
	assert.InDelta(t, -901.5/11, s.MeanLevel, 1e-9)
	assert.Greater(t, s.StdDevLevel, 15.0)
	assert.Equal(t, -90.0, s.MinLevel)
	assert.Equal(t, -20.5, s.PeakLevel)
	assert.Equal(t, 160e6, s.PeakFrequency)
	assert.Contains(t, s.String(), "peak -20.50 dBm at 160000000 Hz")
}

func TestSummarise_SinglePoint(t *testing.T) {
	s, err := Summarise(&Trace{Frequencies: []float64{1}, Levels: []float64{-3}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.StdDevLevel)
	assert.Equal(t, -3.0, s.MeanLevel)
}

func TestSummarise_Empty(t *testing.T) {
	_, err := Summarise(&Trace{})
	assert.ErrorIs(t, err, ErrEmptyTrace)
	_, err = Summarise(nil)
	assert.ErrorIs(t, err, ErrEmptyTrace)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	tr := &Trace{Frequencies: []float64{1e6, 2.5e6}, Levels: []float64{-50.456, -7}}
	require.NoError(t, WriteCSV(&buf, tr))
	assert.Equal(t, "1000000,  -50.46\n2500000,  -7.00\n", buf.String())

	err := WriteCSV(&buf, &Trace{Frequencies: []float64{1}, Levels: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestPlotPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PlotPNG(&buf, simulatorTrace(), "test"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	assert.ErrorIs(t, PlotPNG(&buf, &Trace{}, "empty"), ErrEmptyTrace)
}

func TestChartHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ChartHTML(&buf, simulatorTrace(), "Bench sweep"))
	html := buf.String()
	assert.Contains(t, html, "<title>Bench sweep</title>")
	assert.Contains(t, html, "160.000")
	assert.Contains(t, html, "-20.5")
}

func TestSave(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	err := Save(mfs, simulatorTrace(), Outputs{CSV: "/out/trace.csv", HTML: "/out/trace.html"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/trace.csv", "/out/trace.html"}, mfs.Names())

	csv, err := mfs.ReadFile("/out/trace.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csv), "100000000,  -90.00\n"))
	assert.Contains(t, string(csv), "160000000,  -20.50\n")
}

func TestSave_RenderErrorNamesFile(t *testing.T) {
	err := Save(fsutil.NewMemoryFileSystem(), &Trace{}, Outputs{PNG: "/x.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/x.png")
	assert.ErrorIs(t, err, ErrEmptyTrace)
}
