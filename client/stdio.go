package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/fast-ish/mcp-server-template/protocol"
)

// ErrClosed is returned by transports after Close.
var ErrClosed = errors.New("transport closed")

// StdioTransport exchanges newline-delimited JSON-RPC messages over a pair
// of streams, usually the stdio of a server subprocess.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr io.ReadCloser

	writeMu sync.Mutex
	pending *pending
	readWG  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewStdioTransport starts command and talks to it over its stdio.
func NewStdioTransport(command string, args ...string) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := newStreamTransport(stdout, stdin)
	t.cmd = cmd
	t.stderr = stderr
	return t, nil
}

// NewStreamTransport talks to a server reading w and writing r. Close
// closes w, which the server sees as end of input.
func NewStreamTransport(r io.Reader, w io.WriteCloser) *StdioTransport {
	return newStreamTransport(r, w)
}

func newStreamTransport(r io.Reader, w io.WriteCloser) *StdioTransport {
	t := &StdioTransport{
		stdin:   w,
		pending: newPending(),
	}
	t.readWG.Add(1)
	go t.readResponses(r)
	return t
}

// Send writes req and, unless it is a notification, waits for its response.
func (t *StdioTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var ch chan *protocol.Response
	if !req.IsNotification() {
		if ch, err = t.pending.add(req.ID); err != nil {
			return nil, err
		}
	}

	t.writeMu.Lock()
	_, err = t.stdin.Write(append(data, '\n'))
	t.writeMu.Unlock()
	if err != nil {
		if ch != nil {
			t.pending.remove(req.ID)
		}
		return nil, fmt.Errorf("write request: %w", err)
	}

	if ch == nil {
		return nil, nil
	}
	return t.pending.wait(ctx, req.ID, ch)
}

// Close closes the server's input, waits for its output to end and, for a
// subprocess, waits for it to exit.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		_ = t.stdin.Close()
		t.readWG.Wait()
		if t.cmd != nil {
			t.closeErr = t.cmd.Wait()
		}
	})
	return t.closeErr
}

func (t *StdioTransport) readResponses(r io.Reader) {
	defer t.readWG.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		resp, err := parseResponse(scanner.Bytes())
		if err != nil {
			continue
		}
		t.pending.deliver(resp)
	}

	err := scanner.Err()
	if err == nil {
		err = ErrClosed
	}
	t.pending.fail(err)
}

// Stderr returns the subprocess's stderr, or nil for a stream transport.
func (t *StdioTransport) Stderr() io.Reader {
	return t.stderr
}
