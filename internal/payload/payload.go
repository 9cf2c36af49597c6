// Package payload generates random transfer payloads.
//
// Payloads are noise: every call draws a fresh seed, so two payloads of the
// same size are independent. There is no way to seed the
// generator; tests compare against the generated bytes, never against a
// reproduced copy.
//
// Two shapes are produced:
//
//   - Block returns a single in-memory slice, capped at MaxBlock. The
//     interactive scenarios write exactly one block into a peer's stdin.
//   - WriteFile streams an arbitrarily large payload to disk in BlockSize
//     chunks, so peak memory is one block regardless of the requested size.
package payload

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/roach88/catwalk/internal/bufpool"
)

const (
	// BlockSize is the chunk length used for incremental file generation.
	// The comparator reads with the same block size.
	BlockSize = 100_000

	// MaxBlock is the largest in-memory block Block will produce. It matches
	// the transport tool's own send buffer.
	MaxBlock = 128 * 1024
)

var (
	// ErrNegativeSize is returned when a negative payload size is requested.
	ErrNegativeSize = errors.New("payload size must be non-negative")

	// ErrBlockTooLarge is returned when Block is asked for more than MaxBlock bytes.
	ErrBlockTooLarge = fmt.Errorf("block size exceeds %d bytes", MaxBlock)
)

// newSource returns a ChaCha8 stream seeded from the OS entropy source.
func newSource() *rand.ChaCha8 {
	var seed [32]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(seed[:])
	return rand.NewChaCha8(seed)
}

// Block returns n random bytes. n == 0 yields an empty, non-nil slice.
func Block(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if n > MaxBlock {
		return nil, fmt.Errorf("%w: requested %d", ErrBlockTooLarge, n)
	}
	b := make([]byte, n)
	if n > 0 {
		_, _ = newSource().Read(b)
	}
	return b, nil
}

// WriteFile creates path (truncating any existing file) and fills it with
// n random bytes written in BlockSize chunks.
//
// It returns the number of bytes written. On success that number always
// equals n; a short write is reported as an error and the partial file is
// left for the caller's workspace cleanup.
func WriteFile(path string, n int64) (int64, error) {
	if n < 0 {
		return 0, ErrNegativeSize
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create payload file: %w", err)
	}

	written, werr := fill(f, n)
	cerr := f.Close()
	if werr != nil {
		return written, werr
	}
	if cerr != nil {
		return written, fmt.Errorf("failed to close payload file: %w", cerr)
	}
	if written != n {
		return written, fmt.Errorf("payload file %s: wrote %d of %d bytes", path, written, n)
	}
	return written, nil
}

func fill(f *os.File, n int64) (int64, error) {
	pool := bufpool.For(BlockSize)
	buf := pool.Get()
	defer pool.Put(buf)

	src := newSource()
	var written int64
	for written < n {
		chunk := buf
		if remaining := n - written; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		_, _ = src.Read(chunk)
		m, err := f.Write(chunk)
		written += int64(m)
		if err != nil {
			return written, fmt.Errorf("failed to write payload block: %w", err)
		}
	}
	return written, nil
}
