// Package refpeer is a QUIC implementation of the transfer tool command
// line that catwalk tests. It is used to exercise the harness end to end
// and as a local stand-in for the real tool.
//
// Both peers print "Connected!" to stderr as soon as the QUIC handshake
// completes, before any other output. A connection carries exactly one
// bidirectional stream opened by the connector. The connector writes a
// preamble (mode byte and password digest) and then either a file
// (header, content, FIN) or its stdin. Whichever peer receives the FIN
// of a stdin/stdout stream closes the connection, and both exit 0.
package refpeer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/quic-go/quic-go"

	"github.com/roach88/catwalk/internal/bufpool"
	"github.com/roach88/catwalk/internal/logging"
)

// bufferSize matches the tool's send buffer.
const bufferSize = 128 * 1024

// Stdio is the standard streams of a peer.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Main runs a peer with process arguments and returns its exit code.
func Main(args []string) int {
	opts, err := ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, opts, Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// Run runs one peer until its transfer completes or ctx ends.
func Run(ctx context.Context, opts Options, stdio Stdio) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.IsListener() {
		return runListener(ctx, opts, stdio)
	}
	return runConnector(ctx, opts, stdio)
}

func runListener(ctx context.Context, opts Options, stdio Stdio) error {
	tlsConf, err := serverTLS()
	if err != nil {
		return err
	}
	ln, err := quic.ListenAddr(opts.ListenAddr(), tlsConf, quicConfig())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.ListenAddr(), err)
	}
	defer ln.Close()

	if opts.Announce {
		fmt.Fprintf(stdio.Err, "Listening on %s\n", ln.Addr())
	}

	conn, err := ln.Accept(ctx)
	if err != nil {
		return fmt.Errorf("failed to accept connection: %w", err)
	}
	fmt.Fprintln(stdio.Err, "Connected!")
	logger := newLogger(opts, stdio.Err).With("role", "listener", "remote", conn.RemoteAddr().String())

	str, err := conn.AcceptStream(ctx)
	if err != nil {
		return classify(err)
	}
	r := bufio.NewReaderSize(str, bufferSize)

	mode := modeStream
	if opts.Destination != "" {
		mode = modeFile
	}
	pre, err := readPreamble(r)
	if err == nil {
		err = pre.check(mode, opts.Password)
	}
	if err != nil {
		code := codeProtocol
		if errors.Is(err, errPasswordMismatch) {
			code = codeAuth
		}
		_ = conn.CloseWithError(code, err.Error())
		return err
	}
	logger.Debug("stream accepted", "mode", string(mode))

	if mode == modeStream {
		return pipe(ctx, conn, str, r, stdio, logger)
	}

	if err := receiveFile(r, opts.Destination, logger); err != nil {
		_ = conn.CloseWithError(codeInternal, err.Error())
		return err
	}
	return conn.CloseWithError(codeDone, "")
}

func runConnector(ctx context.Context, opts Options, stdio Stdio) error {
	conn, err := quic.DialAddr(ctx, opts.TargetAddr(), clientTLS(), quicConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", opts.TargetAddr(), err)
	}
	fmt.Fprintln(stdio.Err, "Connected!")
	logger := newLogger(opts, stdio.Err).With("role", "connector", "remote", conn.RemoteAddr().String())

	str, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return classify(err)
	}

	if opts.File == "" {
		if _, err := str.Write(newPreamble(modeStream, opts.Password).append(nil)); err != nil {
			return classify(err)
		}
		return pipe(ctx, conn, str, str, stdio, logger)
	}

	if err := sendFile(str, opts.File, opts.Password, logger); err != nil {
		_ = conn.CloseWithError(codeInternal, err.Error())
		return classify(err)
	}

	// The listener closes the connection once it has the whole file.
	select {
	case <-conn.Context().Done():
		return classify(context.Cause(conn.Context()))
	case <-ctx.Done():
		_ = conn.CloseWithError(codeInternal, "interrupted")
		return ctx.Err()
	}
}

func sendFile(str *quic.Stream, path, password string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("Failed to open file '%s' for read", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := fileHeader{Name: filepath.Base(path), Size: st.Size()}.append(newPreamble(modeFile, password).append(nil))
	if err != nil {
		return err
	}
	if _, err := str.Write(header); err != nil {
		return err
	}

	pool := bufpool.For(bufferSize)
	buf := pool.Get()
	defer pool.Put(buf)

	n, err := io.CopyBuffer(str, f, buf)
	if err != nil {
		return err
	}
	if n != st.Size() {
		return fmt.Errorf("sent %d of %d bytes", n, st.Size())
	}
	logger.Debug("file sent", "name", filepath.Base(path), "bytes", n)
	return str.Close()
}

func receiveFile(r *bufio.Reader, dest string, logger *slog.Logger) error {
	h, err := readFileHeader(r)
	if err != nil {
		return err
	}

	path := filepath.Join(dest, h.Name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	pool := bufpool.For(bufferSize)
	buf := pool.Get()
	defer pool.Put(buf)

	n, err := io.CopyBuffer(f, io.LimitReader(r, h.Size), buf)
	if err == nil && n != h.Size {
		err = fmt.Errorf("received %d of %d bytes", n, h.Size)
	}
	if err != nil {
		f.Close()
		return err
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		f.Close()
		return errors.New("unexpected data after file content")
	}
	logger.Debug("file received", "name", h.Name, "bytes", n)
	return f.Close()
}

// pipe copies stdin to the stream and the stream to stdout. It returns
// when the peer's FIN arrives, when the connection goes away, or when ctx
// ends.
func pipe(ctx context.Context, conn *quic.Conn, str *quic.Stream, r io.Reader, stdio Stdio, logger *slog.Logger) error {
	go func() {
		pool := bufpool.For(bufferSize)
		buf := pool.Get()
		defer pool.Put(buf)

		n, err := io.CopyBuffer(str, stdio.In, buf)
		if err != nil {
			logger.Debug("send stopped", "bytes", n, "error", err)
			return
		}
		logger.Debug("stdin closed, sending FIN", "bytes", n)
		_ = str.Close()
	}()

	recv := make(chan error, 1)
	go func() {
		n, err := io.Copy(stdio.Out, r)
		logger.Debug("receive finished", "bytes", n, "error", err)
		recv <- err
	}()

	select {
	case err := <-recv:
		if err != nil {
			return classify(err)
		}
		return conn.CloseWithError(codeDone, "")
	case <-ctx.Done():
		_ = conn.CloseWithError(codeInternal, "interrupted")
		return ctx.Err()
	}
}

// classify maps a connection close initiated by the peer to the error this
// peer reports. A clean close by the peer is not an error.
func classify(err error) error {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) && appErr.Remote {
		switch appErr.ErrorCode {
		case codeDone:
			return nil
		case codeAuth:
			return errPasswordMismatch
		default:
			return fmt.Errorf("peer closed the connection: %s", appErr.ErrorMessage)
		}
	}
	return err
}

func newLogger(opts Options, w io.Writer) *slog.Logger {
	if opts.LogLevel == "" {
		return logging.Discard()
	}
	return logging.New(w, "refcat", opts.LogLevel)
}
