package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/tinysa/internal/monitoring"
	"github.com/banshee-data/tinysa/internal/preset"
	"github.com/banshee-data/tinysa/internal/store"
)

// errPresetsFailed is returned when at least one preset failed verification;
// the per-file reports have already been printed.
var errPresetsFailed = errors.New("one or more presets failed verification")

func (a *app) presetUsage() {
	fmt.Fprint(a.stderr, `Usage: tinysa preset <command> [options] FILES...

Commands:
  verify [-strict] FILE.prs...   Check the checksum of each preset
  json FILE.prs...               Print each preset as JSON
  build FILE.json [OUT.prs]      Write a preset with a fresh checksum (default OUT: FILE.json.prs)
  convert FILE...                .prs files are printed as JSON, .json files are built
`)
}

func (a *app) runPreset(ctx context.Context, args []string) error {
	if len(args) < 1 {
		a.presetUsage()
		return errUsage
	}
	switch args[0] {
	case "verify":
		return a.runPresetVerify(ctx, args[1:])
	case "json":
		return a.runPresetJSON(args[1:])
	case "build":
		return a.runPresetBuild(args[1:])
	case "convert":
		return a.runPresetConvert(args[1:])
	default:
		fmt.Fprintf(a.stderr, "Unknown preset command: %s\n\n", args[0])
		a.presetUsage()
		return errUsage
	}
}

func (a *app) runPresetVerify(ctx context.Context, args []string) error {
	fs := a.subcommand("preset verify", "preset verify [-strict] FILE.prs...")
	strict := fs.Bool("strict", a.cfg.GetStrictPresets(), "Treat checksum mismatches as failures")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	reports, ok := preset.VerifyFiles(a.fsys, fs.Args(), *strict)
	for _, r := range reports {
		fmt.Fprintln(a.stdout, r.String())
	}

	if a.db != "" {
		db, err := store.Open(a.db)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		for _, r := range reports {
			if err := db.RecordPresetCheck(ctx, r); err != nil {
				monitoring.Warnf("recording check of %s: %v", r.Path, err)
			}
		}
	}

	if !ok {
		return errPresetsFailed
	}
	return nil
}

func (a *app) runPresetJSON(args []string) error {
	if len(args) == 0 {
		a.presetUsage()
		return errUsage
	}
	for _, path := range args {
		if err := a.printPresetJSON(path); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) printPresetJSON(path string) error {
	p, err := preset.LoadFile(a.fsys, path)
	if err != nil {
		return err
	}
	if p.Magic != preset.Magic {
		monitoring.Warnf("%s: %v", path, &preset.MagicError{Got: p.Magic})
	}
	data, err := p.ToJSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}

func (a *app) runPresetBuild(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		a.presetUsage()
		return errUsage
	}
	in := args[0]
	out := in + ".prs"
	if len(args) == 2 {
		out = args[1]
	}
	return a.buildPreset(in, out)
}

func (a *app) buildPreset(in, out string) error {
	p, err := preset.BuildFile(a.fsys, in, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: wrote %s, checksum 0x%08X\n", in, out, p.Checksum)
	return nil
}

func (a *app) runPresetConvert(args []string) error {
	if len(args) == 0 {
		a.presetUsage()
		return errUsage
	}
	for _, path := range args {
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".prs":
			err = a.printPresetJSON(path)
		case ".json":
			err = a.buildPreset(path, path+".prs")
		default:
			err = fmt.Errorf("%s: expected a .prs or .json file", path)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
