package main

import (
	"context"
	"fmt"

	"github.com/banshee-data/tinysa/internal/sweep"
)

func (a *app) runSweep(ctx context.Context, args []string) error {
	fs := a.subcommand("sweep", "sweep [options]")
	port := fs.String("port", "", "Serial port (default: first tinySA4 found)")
	start := fs.Uint64("start", 0, "Start frequency in Hz (0 keeps the current setting)")
	stop := fs.Uint64("stop", 0, "Stop frequency in Hz (0 keeps the current setting)")
	array := fs.Int("array", sweep.ArrayActual, "Trace array to read: 0 temp, 1 stored, 2 actual")
	csvPath := fs.String("csv", "", "Write frequency, level CSV to this file")
	pngPath := fs.String("png", "", "Write a PNG plot to this file")
	htmlPath := fs.String("html", "", "Write an interactive HTML chart to this file")
	title := fs.String("title", "", "Plot title")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return errUsage
	}
	if *stop != 0 && *start > *stop {
		return fmt.Errorf("start frequency %d is above stop frequency %d", *start, *stop)
	}

	in, err := a.connect(ctx, connectOptions{port: *port})
	if err != nil {
		return err
	}
	defer in.Close()

	trace, err := sweep.Capture(ctx, in.client, sweep.Request{Start: *start, Stop: *stop, Array: *array})
	if err != nil {
		return err
	}
	summary, err := sweep.Summarise(trace)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, summary.String())

	return sweep.Save(a.fsys, trace, sweep.Outputs{
		CSV:   *csvPath,
		PNG:   *pngPath,
		HTML:  *htmlPath,
		Title: *title,
	})
}
