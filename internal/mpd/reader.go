package mpd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wire protocol constants. One statement per line, newline terminated.
const (
	greetingPrefix = "OK MPD "
	okLine         = "OK"
	ackPrefix      = "ACK "
	binaryPrefix   = "binary: "
)

// ErrClosed reports that the connection reached end of stream. It is
// distinct from protocol errors: the peer went away cleanly rather than
// desynchronizing.
var ErrClosed = errors.New("mpd connection closed")

// ProtocolError reports a desynchronized stream: a response line matching no
// known shape, or malformed binary framing. It is fatal to the connection,
// which cannot be trusted afterwards.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string {
	return "mpd protocol error: " + e.msg
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// ResponseError is an application-level error response (ACK line) from the
// daemon. It terminates a single command normally and does not affect other
// in-flight commands.
type ResponseError struct {
	// Line is the diagnostic text after the ACK tag, verbatim.
	Line string
}

func (e *ResponseError) Error() string {
	return "command returned error: " + e.Line
}

// Frame is one complete success response: its attribute pairs plus an
// optional binary payload.
type Frame struct {
	Attrs  Attrs
	Binary []byte
}

// response pairs the two frame outcomes as delivered to a waiter.
type response struct {
	frame *Frame
	err   *ResponseError
}

// Reader decodes response frames from the daemon byte stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader performs the initial handshake on r: exactly one greeting line
// with the negotiated protocol version. Any other first line fails the
// connection open.
func NewReader(r io.Reader) (*Reader, string, error) {
	br := bufio.NewReader(r)

	line, err := readLine(br)
	if err != nil {
		return nil, "", fmt.Errorf("reading mpd greeting: %w", err)
	}

	version, ok := strings.CutPrefix(line, greetingPrefix)
	if !ok {
		return nil, "", protocolErrorf("unexpected initial line from mpd: %q", line)
	}

	return &Reader{r: br}, version, nil
}

// ReadFrame reads lines until one frame is complete. Application errors
// (ACK) come back in the response value; the returned error is reserved for
// connection-fatal conditions.
func (r *Reader) ReadFrame() (response, error) {
	var attrs Attrs
	var binary []byte

	for {
		line, err := readLine(r.r)
		if err != nil {
			return response{}, err
		}

		if line == okLine {
			return response{frame: &Frame{Attrs: attrs, Binary: binary}}, nil
		}

		if rest, ok := strings.CutPrefix(line, ackPrefix); ok {
			return response{err: &ResponseError{Line: rest}}, nil
		}

		if rest, ok := strings.CutPrefix(line, binaryPrefix); ok {
			binary, err = r.readBinary(rest)
			if err != nil {
				return response{}, err
			}
			continue
		}

		if key, value, ok := strings.Cut(line, ":"); ok {
			value = strings.TrimPrefix(value, " ")
			attrs = append(attrs, Attr{Key: key, Value: value})
			continue
		}

		return response{}, protocolErrorf("unrecognised response line from mpd: %q", line)
	}
}

// readBinary consumes the declared byte count plus the mandatory trailing
// newline following a "binary: N" line. The count must be a non-negative
// integer; the 31-bit bound rejects lengths no real response carries before
// anything is allocated.
func (r *Reader) readBinary(lenStr string) ([]byte, error) {
	n, err := strconv.ParseUint(lenStr, 10, 31)
	if err != nil {
		return nil, protocolErrorf("parsing length of binary data: %v", err)
	}

	bin := make([]byte, n)
	if _, err := io.ReadFull(r.r, bin); err != nil {
		return nil, protocolErrorf("reading binary data: %v", err)
	}

	nl, err := r.r.ReadByte()
	if err != nil {
		return nil, protocolErrorf("reading binary trailing newline: %v", err)
	}
	if nl != '\n' {
		return nil, protocolErrorf("binary data did not end with trailing newline")
	}

	return bin, nil
}

// readLine reads one newline-terminated line, mapping end of stream to
// ErrClosed.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", ErrClosed
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
