package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/banshee-data/tinysa/internal/monitoring"
)

// LineReader supplies operator input one line at a time. Prompt returns
// io.EOF when input is exhausted.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// RunInteractive sends first (when non-empty), prints the response, and then
// keeps reading and executing commands until the operator enters "exit",
// input ends or the prompt is aborted. "exit" is never sent.
func RunInteractive(ctx context.Context, c *Client, lines LineReader, out io.Writer, first string) error {
	cmd := first
	for {
		cmd = strings.TrimSpace(cmd)
		if cmd == ExitCommand {
			return nil
		}
		if cmd != "" {
			if err := executeAndPrint(ctx, c, cmd, out); err != nil {
				return err
			}
		}

		line, err := lines.Prompt(Prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		cmd = line
	}
}

// RunBatch executes cmds in order, stopping at the first failure.
func RunBatch(ctx context.Context, c *Client, cmds []string, out io.Writer) error {
	for _, cmd := range cmds {
		fmt.Fprintf(out, "%s%s\n", Prompt, cmd)
		if err := executeAndPrint(ctx, c, cmd, out); err != nil {
			return fmt.Errorf("command %q: %w", cmd, err)
		}
	}
	return nil
}

func executeAndPrint(ctx context.Context, c *Client, cmd string, out io.Writer) error {
	resp, err := c.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if body := resp.Body(); body != "" {
		fmt.Fprintln(out, body)
	}
	return nil
}

// LinerReader is a LineReader with line editing, history and completion of
// console commands.
type LinerReader struct {
	state       *liner.State
	historyPath string
}

// NewLinerReader starts line editing on the terminal. History is loaded from
// historyPath when it exists and saved back by Close. An empty historyPath
// disables persistence.
func NewLinerReader(historyPath string, completions []string) *LinerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(func(line string) (c []string) {
		for _, name := range completions {
			if strings.HasPrefix(name, strings.ToLower(line)) {
				c = append(c, name)
			}
		}
		return
	})

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			if _, err := state.ReadHistory(f); err != nil {
				monitoring.Debugf("reading history %s: %v", historyPath, err)
			}
			f.Close()
		}
	}
	return &LinerReader{state: state, historyPath: historyPath}
}

// Prompt reads one line and adds it to the history.
func (r *LinerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves history and restores the terminal.
func (r *LinerReader) Close() error {
	if r.historyPath != "" {
		if f, err := os.Create(r.historyPath); err == nil {
			if _, err := r.state.WriteHistory(f); err != nil {
				monitoring.Warnf("saving history %s: %v", r.historyPath, err)
			}
			f.Close()
		}
	}
	return r.state.Close()
}

// Commands lists the console commands offered for completion.
var Commands = []string{
	"abort", "actual_freq", "agc", "attenuate", "bulk", "calc", "caloutput",
	"capture", "clearconfig", "color", "correction", "dac", "data", "deviceid",
	"direct", "exit", "ext_gain", "fill", "freq", "freq_corr", "frequencies",
	"help", "hop", "if", "if_bw", "info", "level", "levelchange", "leveloffset",
	"line", "lna", "lna2", "load", "marker", "menu", "mode", "modulation",
	"nf", "output", "pause", "rbw", "recall", "refresh", "release", "remark",
	"repeat", "reset", "restart", "resume", "save", "saveconfig", "scan",
	"scanraw", "sd_delete", "sd_list", "sd_read", "selftest", "spur", "status",
	"sweep", "sweeptime", "sweep_voltage", "text", "threads", "touch",
	"touchcal", "touchtest", "trace", "trigger", "ultra", "usart_cfg", "vbat",
	"vbat_offset", "version", "wait", "zero",
}
