package mpd

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer speaks the daemon side of the protocol over an in-memory pipe.
// Request lines arrive on lines in wire order; responses are written by the
// test. Keepalive pings are acknowledged inline so they never wedge a test,
// which is safe because a ping can only reach the wire while no response is
// being withheld from an earlier command.
type fakeServer struct {
	conn    net.Conn
	lines   chan string
	writeMu sync.Mutex
}

func startTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()

	clientEnd, serverEnd := net.Pipe()
	srv := &fakeServer{conn: serverEnd, lines: make(chan string, 64)}

	go func() {
		srv.send("OK MPD 0.23.5")
		br := bufio.NewReader(serverEnd)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				close(srv.lines)
				return
			}
			line = strings.TrimSuffix(line, "\n")
			if line == "ping" {
				srv.send("OK")
				continue
			}
			srv.lines <- line
		}
	}()

	client, err := NewClient(clientEnd)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		serverEnd.Close()
	})

	return client, srv
}

func (s *fakeServer) send(lines ...string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, line := range lines {
		s.conn.Write([]byte(line + "\n"))
	}
}

func (s *fakeServer) expect(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-s.lines:
		if !ok {
			t.Fatal("server connection closed while expecting a request line")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a request line")
		return ""
	}
}

func (s *fakeServer) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case line := <-s.lines:
		t.Fatalf("unexpected request line on the wire: %q", line)
	case <-time.After(d):
	}
}

func TestConnFIFO(t *testing.T) {
	client, srv := startTestClient(t)

	const n = 16

	// The server answers in arrival order, echoing the request's argument
	// back as its attribute, so each caller can verify it got the frame its
	// own command produced.
	go func() {
		for range n {
			line := <-srv.lines
			_, args := decodeCommandLine(t, line)
			srv.send("value: "+args[0], "OK")
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arg := fmt.Sprintf("%d", i)
			frame, err := client.conn.Command("echo", arg)
			if err != nil {
				errs <- err
				return
			}
			got, err := frame.Attrs.Get("value")
			if err != nil {
				errs <- err
				return
			}
			if got != arg {
				errs <- fmt.Errorf("caller %d received frame for %q", i, got)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestConnIdleExclusivity(t *testing.T) {
	client, srv := startTestClient(t)

	idleDone := make(chan Changed, 1)
	go func() {
		changed, err := client.Idle()
		if err != nil {
			t.Errorf("Idle: %v", err)
		}
		idleDone <- changed
	}()

	line := srv.expect(t)
	if name, _ := decodeCommandLine(t, line); name != "idle" {
		t.Fatalf("first wire line = %q, want idle", line)
	}

	// Submit a second command while the idle wait is outstanding. It must
	// not reach the wire until the idle response resolves.
	statusDone := make(chan error, 1)
	go func() {
		_, err := client.conn.Command("status")
		statusDone <- err
	}()

	srv.expectNone(t, 100*time.Millisecond)

	srv.send("changed: player", "OK")

	changed := <-idleDone
	events := changed.Events()
	if len(events) != 1 || events[0] != EventPlayer {
		t.Fatalf("idle events = %v, want [player]", events)
	}

	line = srv.expect(t)
	if name, _ := decodeCommandLine(t, line); name != "status" {
		t.Fatalf("post-idle wire line = %q, want status", line)
	}
	srv.send("state: stop", "playlist: 1", "repeat: 0", "random: 0", "single: 0", "OK")

	if err := <-statusDone; err != nil {
		t.Fatalf("queued status command failed: %v", err)
	}
}

func TestConnErrorResponseIsRecoverable(t *testing.T) {
	client, srv := startTestClient(t)

	go func() {
		<-srv.lines
		srv.send("ACK [50@0]{play} No such song")
		<-srv.lines
		srv.send("OK")
	}()

	_, err := client.conn.Command("play", "99")
	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("error response surfaced as %v, want *ResponseError", err)
	}
	if respErr.Line != "[50@0]{play} No such song" {
		t.Fatalf("diagnostic = %q", respErr.Line)
	}
	if !strings.Contains(err.Error(), "play") {
		t.Fatalf("error %q does not name the originating command", err)
	}

	// the connection stays usable after an application-level error
	if _, err := client.conn.Command("stop"); err != nil {
		t.Fatalf("command after error response failed: %v", err)
	}
}

func TestConnTeardownFailsWaiters(t *testing.T) {
	client, srv := startTestClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := client.conn.Command("status")
		done <- err
	}()

	srv.expect(t)
	srv.conn.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("waiter observed %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter hung after connection teardown")
	}

	// future submissions fail fast
	if _, err := client.conn.Command("status"); !errors.Is(err, ErrClosed) {
		t.Fatalf("post-teardown command returned %v, want ErrClosed", err)
	}
}

func TestConnMalformedBinaryTearsDown(t *testing.T) {
	client, srv := startTestClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := client.conn.Command("albumart", "x", "0")
		done <- err
	}()

	srv.expect(t)
	srv.send("binary: -1", "OK")

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("waiter observed %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter hung after malformed binary framing")
	}
}

func TestConnKeepalivePings(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the keepalive interval")
	}

	clientEnd, serverEnd := net.Pipe()
	pinged := make(chan struct{}, 1)

	go func() {
		serverEnd.Write([]byte("OK MPD 0.23.5\n"))
		br := bufio.NewReader(serverEnd)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if strings.TrimSuffix(line, "\n") == "ping" {
				select {
				case pinged <- struct{}{}:
				default:
				}
				serverEnd.Write([]byte("OK\n"))
			}
		}
	}()

	client, err := NewClient(clientEnd)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()
	defer serverEnd.Close()

	select {
	case <-pinged:
	case <-time.After(3 * keepaliveInterval):
		t.Fatal("no keepalive ping observed")
	}
}
