// Package compare verifies byte-exact equality of transferred data.
//
// Files reads both inputs in lock-step blocks so memory use is bounded by
// the block size, not the file size. A difference in length is reported
// separately from a difference in content so a failing transfer can be
// diagnosed as truncation versus corruption.
package compare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/catwalk/internal/bufpool"
	"github.com/roach88/catwalk/internal/payload"
)

// BlockSize is the lock-step read length. It equals the generator's block
// size so single-block and multi-block payloads exercise both code paths.
const BlockSize = payload.BlockSize

// MismatchKind distinguishes truncation from corruption.
type MismatchKind int

const (
	// SizeMismatch means the inputs have different lengths.
	SizeMismatch MismatchKind = iota + 1
	// ContentMismatch means the inputs have equal length at the failing
	// block but differ in at least one byte.
	ContentMismatch
)

func (k MismatchKind) String() string {
	switch k {
	case SizeMismatch:
		return "size mismatch"
	case ContentMismatch:
		return "content mismatch"
	default:
		return "unknown mismatch"
	}
}

// MismatchError reports where two inputs first diverge.
type MismatchError struct {
	Kind MismatchKind

	// Offset is the first differing byte for ContentMismatch, or the start
	// of the block whose lengths differed for SizeMismatch.
	Offset int64

	// Want and Got name the compared inputs (file paths or "expected"/"actual").
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	switch e.Kind {
	case SizeMismatch:
		return fmt.Sprintf("%s: %s and %s differ in length (diverge in block at offset %d)", e.Kind, e.Want, e.Got, e.Offset)
	default:
		return fmt.Sprintf("%s: %s and %s differ at offset %d", e.Kind, e.Want, e.Got, e.Offset)
	}
}

// IsSizeMismatch reports whether err is a length difference.
func IsSizeMismatch(err error) bool {
	var m *MismatchError
	return errors.As(err, &m) && m.Kind == SizeMismatch
}

// IsContentMismatch reports whether err is a byte difference.
func IsContentMismatch(err error) bool {
	var m *MismatchError
	return errors.As(err, &m) && m.Kind == ContentMismatch
}

// Files returns nil when the two files have identical contents.
// A *MismatchError is returned when they differ; any other error is an I/O
// failure opening or reading one of the files.
func Files(want, got string) error {
	wf, err := os.Open(want)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", want, err)
	}
	defer wf.Close()

	gf, err := os.Open(got)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", got, err)
	}
	defer gf.Close()

	return Readers(want, wf, got, gf)
}

// Readers compares two streams block by block. The names are used only in
// the returned error.
func Readers(wantName string, want io.Reader, gotName string, got io.Reader) error {
	pool := bufpool.For(BlockSize)
	wbuf := pool.Get()
	gbuf := pool.Get()
	defer pool.Put(wbuf)
	defer pool.Put(gbuf)

	var offset int64
	for {
		wn, err := readBlock(want, wbuf)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", wantName, err)
		}
		gn, err := readBlock(got, gbuf)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", gotName, err)
		}

		if wn != gn {
			return &MismatchError{Kind: SizeMismatch, Offset: offset, Want: wantName, Got: gotName}
		}
		if wn == 0 {
			// Both at EOF together.
			return nil
		}
		if i := firstDiff(wbuf[:wn], gbuf[:gn]); i >= 0 {
			return &MismatchError{Kind: ContentMismatch, Offset: offset + int64(i), Want: wantName, Got: gotName}
		}
		offset += int64(wn)
	}
}

// Bytes is the in-memory equivalent of Files.
func Bytes(want, got []byte) error {
	if len(want) != len(got) {
		n := min(len(want), len(got))
		return &MismatchError{Kind: SizeMismatch, Offset: int64(n), Want: "expected", Got: "actual"}
	}
	if i := firstDiff(want, got); i >= 0 {
		return &MismatchError{Kind: ContentMismatch, Offset: int64(i), Want: "expected", Got: "actual"}
	}
	return nil
}

// readBlock fills buf unless EOF comes first. Short reads from the
// underlying reader do not end a block early.
func readBlock(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	return n, err
}

func firstDiff(a, b []byte) int {
	if bytes.Equal(a, b) {
		return -1
	}
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}
