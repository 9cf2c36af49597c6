package refpeer

import (
	"bufio"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/quicvarint"
)

// Transfer modes announced by the connector in the preamble.
const (
	modeFile   byte = 'f'
	modeStream byte = 's'
)

// Application error codes used when closing a connection.
const (
	codeDone     quic.ApplicationErrorCode = 0
	codeAuth     quic.ApplicationErrorCode = 1
	codeProtocol quic.ApplicationErrorCode = 2
	codeInternal quic.ApplicationErrorCode = 3
)

var (
	errPasswordMismatch = errors.New("Peer password doesn't match!")
	errModeMismatch     = errors.New("peer transfer mode doesn't match")
)

// preamble opens every stream: one mode byte, then the SHA-256 digest of
// the shared password (of the empty string when none is set).
type preamble struct {
	Mode   byte
	Digest [sha256.Size]byte
}

func newPreamble(mode byte, password string) preamble {
	return preamble{Mode: mode, Digest: sha256.Sum256([]byte(password))}
}

func (p preamble) append(b []byte) []byte {
	b = append(b, p.Mode)
	return append(b, p.Digest[:]...)
}

func readPreamble(r io.Reader) (preamble, error) {
	var buf [1 + sha256.Size]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return preamble{}, fmt.Errorf("failed to read preamble: %w", err)
	}
	p := preamble{Mode: buf[0]}
	copy(p.Digest[:], buf[1:])
	return p, nil
}

// check verifies the connector's preamble against the listener's own
// mode and password.
func (p preamble) check(mode byte, password string) error {
	want := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(p.Digest[:], want[:]) != 1 {
		return errPasswordMismatch
	}
	if p.Mode != mode {
		return fmt.Errorf("%w: got %q, want %q", errModeMismatch, p.Mode, mode)
	}
	return nil
}

// fileHeader precedes the content of a file transfer: a one-byte name
// length, the base name, and the content size as a QUIC varint.
type fileHeader struct {
	Name string
	Size int64
}

func (h fileHeader) append(b []byte) ([]byte, error) {
	if len(h.Name) == 0 || len(h.Name) > MaxFileNameLength {
		return nil, fmt.Errorf("File name is too long! Actual: %d Maximum: %d", len(h.Name), MaxFileNameLength)
	}
	if h.Size < 0 || uint64(h.Size) > quicvarint.Max {
		return nil, fmt.Errorf("file size %d out of range", h.Size)
	}
	b = append(b, byte(len(h.Name)))
	b = append(b, h.Name...)
	return quicvarint.Append(b, uint64(h.Size)), nil
}

func readFileHeader(r *bufio.Reader) (fileHeader, error) {
	n, err := r.ReadByte()
	if err != nil {
		return fileHeader{}, fmt.Errorf("failed to read file name length: %w", err)
	}
	if n == 0 {
		return fileHeader{}, errors.New("empty file name")
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return fileHeader{}, fmt.Errorf("failed to read file name: %w", err)
	}
	size, err := quicvarint.Read(r)
	if err != nil {
		return fileHeader{}, fmt.Errorf("failed to read file size: %w", err)
	}

	h := fileHeader{Name: string(name), Size: int64(size)}
	if base := filepath.Base(h.Name); base != h.Name || base == "." || base == ".." {
		return fileHeader{}, fmt.Errorf("invalid file name %q", h.Name)
	}
	return h, nil
}
