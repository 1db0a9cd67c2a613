package sweep

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tinysa/internal/fsutil"
)

// WriteCSV writes one "frequency, level" line per point.
func WriteCSV(w io.Writer, t *Trace) error {
	if t.Len() != len(t.Frequencies) {
		return ErrLengthMismatch
	}
	for i, level := range t.Levels {
		if _, err := fmt.Fprintf(w, "%d,  %2.2f\n", int64(t.Frequencies[i]), level); err != nil {
			return err
		}
	}
	return nil
}

// PlotPNG draws the trace as a line plot of level against frequency in MHz.
func PlotPNG(w io.Writer, t *Trace, title string) error {
	if t.Len() == 0 {
		return ErrEmptyTrace
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frequency (MHz)"
	p.Y.Label.Text = "Level (dBm)"

	pts := make(plotter.XYs, 0, t.Len())
	for i, level := range t.Levels {
		pts = append(pts, plotter.XY{X: t.Frequencies[i] / 1e6, Y: level})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// ChartHTML renders the trace as a standalone go-echarts page.
func ChartHTML(w io.Writer, t *Trace, title string) error {
	if t.Len() == 0 {
		return ErrEmptyTrace
	}
	xs := make([]string, 0, t.Len())
	data := make([]opts.LineData, 0, t.Len())
	for i, level := range t.Levels {
		xs = append(xs, fmt.Sprintf("%.3f", t.Frequencies[i]/1e6))
		data = append(data, opts.LineData{Value: level})
	}

	s, _ := Summarise(t)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: s.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "MHz", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dBm", NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(xs).AddSeries("level", data)
	return line.Render(w)
}

// Outputs names the files a sweep should be written to. Empty paths are
// skipped.
type Outputs struct {
	CSV   string
	PNG   string
	HTML  string
	Title string
}

// Save writes every requested output for t.
func Save(fsys fsutil.FileSystem, t *Trace, out Outputs) error {
	title := out.Title
	if title == "" {
		title = "tinySA4 sweep"
	}
	writers := []struct {
		path   string
		render func(io.Writer) error
	}{
		{out.CSV, func(w io.Writer) error { return WriteCSV(w, t) }},
		{out.PNG, func(w io.Writer) error { return PlotPNG(w, t, title) }},
		{out.HTML, func(w io.Writer) error { return ChartHTML(w, t, title) }},
	}
	for _, wr := range writers {
		if wr.path == "" {
			continue
		}
		var buf bytes.Buffer
		if err := wr.render(&buf); err != nil {
			return fmt.Errorf("%s: %w", wr.path, err)
		}
		if err := fsys.WriteFile(wr.path, buf.Bytes(), 0o644); err != nil {
			return err
		}
	}
	return nil
}
