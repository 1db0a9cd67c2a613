package preset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// ErrTruncatedFile is matched by *TruncatedFileError.
var ErrTruncatedFile = errors.New("truncated preset")

// TruncatedFileError reports a source that ended before Size bytes.
type TruncatedFileError struct {
	Expected int
	Actual   int
}

func (e *TruncatedFileError) Error() string {
	return fmt.Sprintf("failed to read %d bytes, read %d bytes only", e.Expected, e.Actual)
}

func (e *TruncatedFileError) Is(target error) bool { return target == ErrTruncatedFile }

// ErrChecksumMismatch is matched by *ChecksumMismatchError.
var ErrChecksumMismatch = errors.New("preset checksum mismatch")

// ChecksumMismatchError is returned where a mismatch is treated as a
// failure. Plain verification reports it through Result instead.
type ChecksumMismatchError struct {
	Computed uint32
	Stored   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch, calculated 0x%08X vs. stored 0x%08X", e.Computed, e.Stored)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }

// Checksum folds the little-endian words before ChecksumOffset: the
// accumulator is rotated right by 31 bits and the word added. Only whole
// words present in buf are folded.
func Checksum(buf []byte) uint32 {
	n := min(len(buf)/4, checksumWords)
	var sum uint32
	for i := range n {
		sum = bits.RotateLeft32(sum, -31) + binary.LittleEndian.Uint32(buf[i*4:])
	}
	return sum
}

// Result is the outcome of checking a record's checksum.
type Result struct {
	Computed uint32
	Stored   uint32
	Valid    bool
}

// Err returns nil for a valid record and a *ChecksumMismatchError otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ChecksumMismatchError{Computed: r.Computed, Stored: r.Stored}
}

// Verify recomputes the checksum of a full record and compares it with the
// stored one. A mismatch is reported in the Result, never as an error.
func Verify(buf []byte) (Result, error) {
	if len(buf) < Size {
		return Result{}, &TruncatedFileError{Expected: Size, Actual: len(buf)}
	}
	r := Result{
		Computed: Checksum(buf),
		Stored:   binary.LittleEndian.Uint32(buf[ChecksumOffset:]),
	}
	r.Valid = r.Computed == r.Stored
	return r, nil
}

// Read reads exactly one record from r. Trailing data is left unread.
func Read(r io.Reader) ([]byte, error) {
	buf := make([]byte, Size)
	n, err := io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, &TruncatedFileError{Expected: Size, Actual: n}
	case err != nil:
		return nil, fmt.Errorf("reading preset: %w", err)
	}
	return buf, nil
}

// VerifyReader reads one record and verifies it. Truncation is detected
// before any checksum is computed.
func VerifyReader(r io.Reader) (Result, error) {
	buf, err := Read(r)
	if err != nil {
		return Result{}, err
	}
	return Verify(buf)
}
