package mpd

import (
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
)

// Config carries the connection parameters for a daemon socket.
type Config struct {
	// Socket is the path of the daemon's unix domain socket.
	Socket string
}

// Client exposes typed operations over one daemon connection.
type Client struct {
	conn    *Conn
	version string
}

// Dial connects to the daemon at the configured unix socket.
func Dial(config Config) (*Client, error) {
	sock, err := net.Dial("unix", config.Socket)
	if err != nil {
		return nil, fmt.Errorf("dialing mpd at %s: %w", config.Socket, err)
	}

	client, err := NewClient(sock)
	if err != nil {
		return nil, err
	}

	log.Printf("[mpd] connected at %s, protocol version %s", config.Socket, client.version)
	return client, nil
}

// NewClient runs the protocol handshake over an established stream. Dial is
// the usual entry point; NewClient exists for transports set up elsewhere.
func NewClient(rw io.ReadWriteCloser) (*Client, error) {
	conn, version, err := NewConn(rw)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, version: version}, nil
}

// Version reports the protocol version from the greeting line.
func (c *Client) Version() string { return c.version }

// Close tears down the connection and its background tasks.
func (c *Client) Close() error { return c.conn.Close() }

// AddID appends the given locator to the queue and returns the new entry's
// id.
func (c *Client) AddID(location string) (ID, error) {
	frame, err := c.conn.Command("addid", location)
	if err != nil {
		return "", err
	}
	id, err := frame.Attrs.Get("Id")
	if err != nil {
		return "", fmt.Errorf("addid response: %w", err)
	}
	return ID(id), nil
}

// Delete removes the queue entry at the given position relative to the
// current song. The position is encoded with an explicit sign so that +0
// (the current song) is distinguishable from an absolute zero.
func (c *Client) Delete(pos int) error {
	_, err := c.conn.Command("deleteid", signed(pos))
	return err
}

// DeleteID removes the queue entry with the given id.
func (c *Client) DeleteID(id ID) error {
	_, err := c.conn.Command("deleteid", id.String())
	return err
}

// Clear empties the queue.
func (c *Client) Clear() error {
	_, err := c.conn.Command("clear")
	return err
}

// PlaylistInfo lists the full queue.
func (c *Client) PlaylistInfo() (*Playlist, error) {
	frame, err := c.conn.Command("playlistinfo")
	if err != nil {
		return nil, err
	}

	groups := frame.Attrs.SplitAt("file")
	items := make([]PlaylistItem, 0, len(groups))
	for _, group := range groups {
		item, err := playlistItemFromAttrs(group)
		if err != nil {
			return nil, fmt.Errorf("parsing playlist info response: %w", err)
		}
		items = append(items, item)
	}

	return &Playlist{Items: items}, nil
}

// PlaylistID fetches the single queue entry with the given id.
func (c *Client) PlaylistID(id ID) (PlaylistItem, error) {
	frame, err := c.conn.Command("playlistid", id.String())
	if err != nil {
		return PlaylistItem{}, err
	}
	return playlistItemFromAttrs(frame.Attrs)
}

// PlaylistClear empties the named stored playlist.
func (c *Client) PlaylistClear(name string) error {
	_, err := c.conn.Command("playlistclear", name)
	return err
}

// PlaylistAdd appends a locator to the named stored playlist.
func (c *Client) PlaylistAdd(name, location string) error {
	_, err := c.conn.Command("playlistadd", name, location)
	return err
}

// Range selects entries [Start, End) of a stored playlist.
type Range struct {
	Start, End int
}

// Load inserts a stored playlist (or a range of it) into the queue. A nil
// rng loads the whole playlist; pos, when non-nil, is a sign-prefixed
// position relative to the current song.
func (c *Client) Load(name string, rng *Range, pos *int) error {
	rangeArg := "0:"
	if rng != nil {
		rangeArg = fmt.Sprintf("%d:%d", rng.Start, rng.End)
	}

	posArg := ""
	if pos != nil {
		posArg = signed(*pos)
	}

	_, err := c.conn.Command("load", name, rangeArg, posArg)
	return err
}

// stagingPlaylist is the scratch playlist used by StageQueue.
const stagingPlaylist = "_sonicast_atomic_queue"

// StageQueue inserts locations into the queue at pos as one unit, by staging
// them in a scratch playlist and loading it. The live-queue API has no
// single-step bulk insert, so this is how "replace the next N entries"
// stays atomic from the player's point of view.
func (c *Client) StageQueue(locations []string, pos *int) error {
	if err := c.PlaylistClear(stagingPlaylist); err != nil {
		return err
	}
	for _, location := range locations {
		if err := c.PlaylistAdd(stagingPlaylist, location); err != nil {
			return err
		}
	}
	return c.Load(stagingPlaylist, nil, pos)
}

// idleSubsystems is the fixed watch-list for Idle.
var idleSubsystems = []string{"player", "playlist", "options", "mixer"}

// Idle blocks until the daemon reports a change in at least one watched
// subsystem. While an Idle is outstanding, any other command on this client
// waits for it to resolve before reaching the wire.
func (c *Client) Idle() (Changed, error) {
	frame, err := c.conn.Command("idle", idleSubsystems...)
	if err != nil {
		return Changed{}, err
	}
	return changedFromAttrs(frame.Attrs), nil
}

// Play resumes playback.
func (c *Client) Play() error {
	_, err := c.conn.Command("play")
	return err
}

// PlayPos starts playback at the given queue position.
func (c *Client) PlayPos(pos int) error {
	_, err := c.conn.Command("play", strconv.Itoa(pos))
	return err
}

// PlayID starts playback of the queue entry with the given id.
func (c *Client) PlayID(id ID) error {
	_, err := c.conn.Command("playid", id.String())
	return err
}

// Stop stops playback.
func (c *Client) Stop() error {
	_, err := c.conn.Command("stop")
	return err
}

// Pause toggles pause.
func (c *Client) Pause() error {
	_, err := c.conn.Command("pause")
	return err
}

// Next skips to the next queue entry.
func (c *Client) Next() error {
	_, err := c.conn.Command("next")
	return err
}

// Previous skips to the previous queue entry.
func (c *Client) Previous() error {
	_, err := c.conn.Command("previous")
	return err
}

// Seek seeks to an absolute time within the queue entry at index.
func (c *Client) Seek(index int, seconds float64) error {
	_, err := c.conn.Command("seek", strconv.Itoa(index), formatSeconds(seconds))
	return err
}

// SeekCur seeks to an absolute time within the current song.
func (c *Client) SeekCur(seconds float64) error {
	_, err := c.conn.Command("seekcur", formatSeconds(seconds))
	return err
}

// Status fetches and decodes the current player status.
func (c *Client) Status() (*Status, error) {
	frame, err := c.conn.Command("status")
	if err != nil {
		return nil, err
	}
	status, err := statusFromAttrs(frame.Attrs)
	if err != nil {
		return nil, fmt.Errorf("status response: %w", err)
	}
	return status, nil
}

// ReplayGainStatus reports the current replay gain mode.
func (c *Client) ReplayGainStatus() (ReplayGainMode, error) {
	frame, err := c.conn.Command("replay_gain_status")
	if err != nil {
		return "", err
	}
	value, ok := frame.Attrs.Lookup("replay_gain_mode")
	if !ok {
		return ReplayGainOff, nil
	}
	mode, err := ParseReplayGainMode(value)
	if err != nil {
		return "", fmt.Errorf("replay_gain_status response: %w", err)
	}
	return mode, nil
}

// SetReplayGainMode sets the replay gain mode.
func (c *Client) SetReplayGainMode(mode ReplayGainMode) error {
	_, err := c.conn.Command("replay_gain_mode", string(mode))
	return err
}

// Random enables or disables random playback order.
func (c *Client) Random(on bool) error {
	_, err := c.conn.Command("random", boolean(on))
	return err
}

// Repeat enables or disables repeat.
func (c *Client) Repeat(on bool) error {
	_, err := c.conn.Command("repeat", boolean(on))
	return err
}

// Single enables or disables single-song mode.
func (c *Client) Single(on bool) error {
	_, err := c.conn.Command("single", boolean(on))
	return err
}

// Shuffle shuffles the queue in place.
func (c *Client) Shuffle() error {
	_, err := c.conn.Command("shuffle")
	return err
}

// SetVolume sets the output volume, clamped to 0..100.
func (c *Client) SetVolume(volume int) error {
	volume = min(max(volume, 0), 100)
	_, err := c.conn.Command("setvol", strconv.Itoa(volume))
	return err
}

func signed(pos int) string {
	return fmt.Sprintf("%+d", pos)
}

func boolean(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}
