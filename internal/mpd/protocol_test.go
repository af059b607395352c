package mpd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestReader(t *testing.T, stream string) *Reader {
	t.Helper()
	r, version, err := NewReader(strings.NewReader("OK MPD 0.23.5\n" + stream))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if version != "0.23.5" {
		t.Fatalf("version = %q, want %q", version, "0.23.5")
	}
	return r
}

func TestReaderBadGreeting(t *testing.T) {
	_, _, err := NewReader(strings.NewReader("HELLO\n"))
	if err == nil {
		t.Fatal("NewReader accepted a non-greeting first line")
	}
}

func TestReaderOkFrame(t *testing.T) {
	r := newTestReader(t, "state: play\nTitle: a: b\nOK\n")

	resp, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if resp.err != nil {
		t.Fatalf("got error response %v, want ok", resp.err)
	}

	want := Attrs{
		{Key: "state", Value: "play"},
		// value is everything after the first colon, one leading space stripped
		{Key: "Title", Value: "a: b"},
	}
	if len(resp.frame.Attrs) != len(want) {
		t.Fatalf("attrs = %v, want %v", resp.frame.Attrs, want)
	}
	for i := range want {
		if resp.frame.Attrs[i] != want[i] {
			t.Fatalf("attr %d = %v, want %v", i, resp.frame.Attrs[i], want[i])
		}
	}
}

func TestReaderErrorFrame(t *testing.T) {
	r := newTestReader(t, "ACK [2@3]{play} message text\n")

	resp, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if resp.err == nil {
		t.Fatal("got ok response, want error frame")
	}
	if resp.err.Line != "[2@3]{play} message text" {
		t.Fatalf("diagnostic = %q, want %q", resp.err.Line, "[2@3]{play} message text")
	}
}

func TestReaderBinaryFrame(t *testing.T) {
	r := newTestReader(t, "binary: 4\nabcd\nOK\n")

	resp, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got := string(resp.frame.Binary); got != "abcd" {
		t.Fatalf("binary payload = %q, want %q", got, "abcd")
	}
}

func TestReaderBinaryShortRead(t *testing.T) {
	r := newTestReader(t, "binary: 4\nabc\n")

	_, err := r.ReadFrame()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("short binary read returned %v, want protocol error", err)
	}
}

func TestReaderBinaryBadLength(t *testing.T) {
	// a negative or oversized count must fail as a protocol error before
	// any payload is read
	for _, stream := range []string{
		"binary: -1\nOK\n",
		"binary: 99999999999\nOK\n",
		"binary: nope\nOK\n",
	} {
		r := newTestReader(t, stream)

		_, err := r.ReadFrame()
		var protoErr *ProtocolError
		if !errors.As(err, &protoErr) {
			t.Fatalf("%q returned %v, want protocol error", stream, err)
		}
	}
}

func TestReaderBinaryMissingNewline(t *testing.T) {
	r := newTestReader(t, "binary: 4\nabcdXOK\n")

	_, err := r.ReadFrame()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("missing trailing newline returned %v, want protocol error", err)
	}
}

func TestReaderUnrecognisedLine(t *testing.T) {
	r := newTestReader(t, "what even is this\nOK\n")

	_, err := r.ReadFrame()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("unrecognised line returned %v, want protocol error", err)
	}
}

func TestReaderEOF(t *testing.T) {
	r := newTestReader(t, "state: play\n")

	_, err := r.ReadFrame()
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("stream end returned %v, want ErrClosed", err)
	}
}

// decodeCommandLine reverses the wire quoting for test purposes.
func decodeCommandLine(t *testing.T, line string) (string, []string) {
	t.Helper()
	line = strings.TrimSuffix(line, "\n")

	name, rest, _ := strings.Cut(line, " ")
	var args []string
	for rest != "" {
		if rest[0] != '"' {
			t.Fatalf("argument does not start with quote: %q", rest)
		}
		rest = rest[1:]
		var arg strings.Builder
		for {
			if rest == "" {
				t.Fatalf("unterminated argument in line %q", line)
			}
			c := rest[0]
			rest = rest[1:]
			if c == '\\' {
				arg.WriteByte(rest[0])
				rest = rest[1:]
				continue
			}
			if c == '"' {
				break
			}
			arg.WriteByte(c)
		}
		args = append(args, arg.String())
		rest = strings.TrimPrefix(rest, " ")
	}
	return name, args
}

func TestWriterQuotingRoundTrip(t *testing.T) {
	inputs := []string{
		`plain`,
		`with space`,
		`quote " inside`,
		`back \ slash`,
		`both \" mixed \\ up "`,
		``,
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteCommand("add", inputs...); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}

	name, args := decodeCommandLine(t, buf.String())
	if name != "add" {
		t.Fatalf("command = %q, want %q", name, "add")
	}
	if len(args) != len(inputs) {
		t.Fatalf("decoded %d args, want %d", len(args), len(inputs))
	}
	for i, in := range inputs {
		if args[i] != in {
			t.Fatalf("arg %d = %q, want %q", i, args[i], in)
		}
	}
}

func TestWriterRejectsNewline(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteCommand("add", "evil\ninjection")
	if err == nil {
		t.Fatal("WriteCommand accepted an argument containing a newline")
	}
}

func TestWriterNoArgs(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteCommand("ping"); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if got := buf.String(); got != "ping\n" {
		t.Fatalf("wire line = %q, want %q", got, "ping\n")
	}
}
