// Package sweep reads measurement traces off the instrument and exports them.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tinysa/internal/protocol"
)

// Trace arrays as numbered by the "data" command.
const (
	ArrayTemp   = 0
	ArrayStored = 1
	ArrayActual = 2
)

var (
	// ErrEmptyTrace is returned when the instrument reported no points.
	ErrEmptyTrace = errors.New("trace has no points")

	// ErrLengthMismatch is returned when the frequency and level lists differ
	// in length.
	ErrLengthMismatch = errors.New("frequency and level counts differ")
)

// Executor runs one console command. *protocol.Client implements it.
type Executor interface {
	Execute(ctx context.Context, cmd string) (protocol.Response, error)
}

// Request selects what to capture. A zero Start or Stop leaves the
// instrument's current sweep limit untouched.
type Request struct {
	Start uint64
	Stop  uint64
	Array int
}

// Trace is one captured sweep: Levels[i] was measured at Frequencies[i].
type Trace struct {
	Frequencies []float64
	Levels      []float64
}

// Len returns the number of points.
func (t *Trace) Len() int { return len(t.Levels) }

// Capture applies the sweep limits in req and reads back the frequency list
// and the selected level array.
func Capture(ctx context.Context, ex Executor, req Request) (*Trace, error) {
	if req.Start != 0 {
		if _, err := ex.Execute(ctx, fmt.Sprintf("sweep start %d", req.Start)); err != nil {
			return nil, err
		}
	}
	if req.Stop != 0 {
		if _, err := ex.Execute(ctx, fmt.Sprintf("sweep stop %d", req.Stop)); err != nil {
			return nil, err
		}
	}

	freqs, err := fetchFloats(ctx, ex, "frequencies")
	if err != nil {
		return nil, err
	}
	levels, err := fetchFloats(ctx, ex, fmt.Sprintf("data %d", req.Array))
	if err != nil {
		return nil, err
	}

	if len(levels) == 0 {
		return nil, ErrEmptyTrace
	}
	if len(freqs) != len(levels) {
		return nil, fmt.Errorf("%w: %d frequencies, %d levels", ErrLengthMismatch, len(freqs), len(levels))
	}
	return &Trace{Frequencies: freqs, Levels: levels}, nil
}

func fetchFloats(ctx context.Context, ex Executor, cmd string) ([]float64, error) {
	resp, err := ex.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	lines := resp.Lines()
	values := make([]float64, 0, len(lines))
	for _, line := range lines {
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q reply: %w", cmd, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// Summary describes the level distribution of a trace.
type Summary struct {
	Points        int
	MeanLevel     float64
	StdDevLevel   float64
	MinLevel      float64
	PeakLevel     float64
	PeakFrequency float64
}

// Summarise computes level statistics for t.
func Summarise(t *Trace) (Summary, error) {
	if t == nil || t.Len() == 0 {
		return Summary{}, ErrEmptyTrace
	}
	mean, std := stat.MeanStdDev(t.Levels, nil)
	if t.Len() == 1 {
		std = 0
	}
	peak := floats.MaxIdx(t.Levels)

	s := Summary{
		Points:      t.Len(),
		MeanLevel:   mean,
		StdDevLevel: std,
		MinLevel:    floats.Min(t.Levels),
		PeakLevel:   t.Levels[peak],
	}
	if peak < len(t.Frequencies) {
		s.PeakFrequency = t.Frequencies[peak]
	}
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf("%d points, mean %.2f dBm (sd %.2f), min %.2f dBm, peak %.2f dBm at %.0f Hz",
		s.Points, s.MeanLevel, s.StdDevLevel, s.MinLevel, s.PeakLevel, s.PeakFrequency)
}
