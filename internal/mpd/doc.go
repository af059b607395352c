// Package mpd is an asynchronous client for MPD's line-oriented control
// protocol over a single trusted local socket connection.
//
// Many callers may issue commands concurrently on one Client; the connection
// preserves exact request/response ordering, so each caller gets the frame
// its own command produced. The idle command is special: it monopolizes the
// connection until the daemon reports a subsystem change, and any command
// submitted meanwhile waits for the idle response before reaching the wire.
//
// The client never reconnects and enforces no per-command timeout. When the
// transport fails, or the stream desynchronizes, every pending and future
// call fails with an error wrapping ErrClosed, and the caller is expected to
// treat the Client as dead.
package mpd
