package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// DefaultMaxLineBytes bounds a single stdio message.
const DefaultMaxLineBytes = 4 * 1024 * 1024

// errLineTooLong marks a line that was discarded for exceeding the limit.
var errLineTooLong = errors.New("line too long")

// Stdio serves a single session over newline-delimited JSON: requests on
// stdin, responses on stdout. Responses are written in request order.
type Stdio struct {
	in           io.Reader
	out          io.Writer
	maxLineBytes int
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin reads requests from r instead of os.Stdin.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) { s.in = r }
}

// WithStdout writes responses to w instead of os.Stdout.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) { s.out = w }
}

// WithMaxLineBytes sets the longest accepted message. Longer lines are
// skipped and answered with an invalid request error.
func WithMaxLineBytes(n int) StdioOption {
	return func(s *Stdio) { s.maxLineBytes = n }
}

// NewStdio returns a transport on os.Stdin and os.Stdout.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{in: os.Stdin, out: os.Stdout, maxLineBytes: DefaultMaxLineBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns "stdio".
func (s *Stdio) Addr() string { return "stdio" }

type stdioLine struct {
	data []byte
	err  error
}

// Serve handles lines until stdin reaches EOF, stdout fails or ctx is
// canceled. The session is closed when Serve returns.
func (s *Stdio) Serve(ctx context.Context, sessions SessionFactory) error {
	session := sessions()
	defer closeSession(session)
	id := sessionID(session)

	lines := make(chan stdioLine)
	go s.read(ctx, lines)

	for {
		var line stdioLine
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			return nil
		}

		var resp *protocol.Response
		switch {
		case errors.Is(line.err, errLineTooLong):
			resp = protocol.NewErrorResponse(nil,
				protocol.Errorf(protocol.CodeInvalidRequest, "message exceeds %d bytes", s.maxLineBytes))
		case line.err != nil:
			return fmt.Errorf("read stdin: %w", line.err)
		default:
			req, parseErr := decode(line.data)
			if parseErr != nil {
				resp = parseErr
			} else {
				resp = handle(ctx, "stdio", session, id, req)
			}
		}
		if resp == nil {
			continue
		}
		if err := s.write(resp); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
	}
}

// read sends each non-blank line to out and closes it at EOF.
func (s *Stdio) read(ctx context.Context, out chan<- stdioLine) {
	defer close(out)
	r := bufio.NewReaderSize(s.in, 64*1024)
	for {
		data, err := s.readLine(r)
		if errors.Is(err, io.EOF) && len(data) == 0 {
			return
		}
		if err == nil || errors.Is(err, io.EOF) {
			if len(bytes.TrimSpace(data)) == 0 {
				continue
			}
			err = nil
		}
		select {
		case out <- stdioLine{data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil && !errors.Is(err, errLineTooLong) {
			return
		}
	}
}

// readLine returns the next line without its newline. A line longer than
// maxLineBytes is consumed and reported as errLineTooLong.
func (s *Stdio) readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > s.maxLineBytes+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return nil, err
		}
		if tooLong {
			return nil, errLineTooLong
		}
		return bytes.TrimRight(line, "\r\n"), err
	}
}

func (s *Stdio) write(resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = s.out.Write(append(data, '\n'))
	return err
}
