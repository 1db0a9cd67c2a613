package preset

import (
	"errors"
	"fmt"

	"github.com/banshee-data/tinysa/internal/fsutil"
)

// FileReport is the verification outcome for one file. Err is set when the
// file could not be opened or was truncated; Result is only meaningful when
// Err is nil.
type FileReport struct {
	Path   string
	Result Result
	Err    error
}

// OK reports whether the file passes: it was read in full and, when strict
// is set, its checksum matched.
func (r FileReport) OK(strict bool) bool {
	if r.Err != nil {
		return false
	}
	return r.Result.Valid || !strict
}

func (r FileReport) String() string {
	var trunc *TruncatedFileError
	switch {
	case errors.As(r.Err, &trunc):
		return fmt.Sprintf("ERROR: Failed to read %d bytes from file %s, read %d bytes only", trunc.Expected, r.Path, trunc.Actual)
	case r.Err != nil:
		return fmt.Sprintf("ERROR: Failed to open file %s: %v", r.Path, r.Err)
	case r.Result.Valid:
		return fmt.Sprintf("%s: OK, checksum 0x%08X", r.Path, r.Result.Computed)
	default:
		return fmt.Sprintf("%s: checksum mismatch, calculated 0x%08X vs. stored 0x%08X", r.Path, r.Result.Computed, r.Result.Stored)
	}
}

// VerifyFile checks a single preset file.
func VerifyFile(fsys fsutil.FileSystem, path string) FileReport {
	report := FileReport{Path: path}
	f, err := fsys.Open(path)
	if err != nil {
		report.Err = err
		return report
	}
	defer f.Close()

	report.Result, report.Err = VerifyReader(f)
	return report
}

// VerifyFiles checks every path in order. A failing file never stops the
// batch; ok is false if any file fails under the strict policy.
func VerifyFiles(fsys fsutil.FileSystem, paths []string, strict bool) (reports []FileReport, ok bool) {
	ok = true
	for _, path := range paths {
		report := VerifyFile(fsys, path)
		ok = ok && report.OK(strict)
		reports = append(reports, report)
	}
	return reports, ok
}

// LoadFile decodes a preset file without rejecting a bad magic or checksum.
func LoadFile(fsys fsutil.FileSystem, path string) (*Preset, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Decode(buf)
}

// BuildFile converts a JSON export into a sealed preset file.
func BuildFile(fsys fsutil.FileSystem, jsonPath, outPath string) (*Preset, error) {
	data, err := fsys.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	p, err := FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", jsonPath, err)
	}
	if err := fsys.WriteFile(outPath, p.Seal(), 0o644); err != nil {
		return nil, err
	}
	return p, nil
}
