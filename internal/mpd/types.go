package mpd

import (
	"fmt"
	"log"
)

// ID is a queue entry id assigned by the daemon. Ids are opaque and stable
// for the lifetime of the entry, unlike queue positions.
type ID string

func (id ID) String() string { return string(id) }

// PlaybackState is the player state reported by status.
type PlaybackState int

const (
	StateStop PlaybackState = iota
	StatePause
	StatePlay
)

func (s PlaybackState) String() string {
	switch s {
	case StateStop:
		return "stop"
	case StatePause:
		return "pause"
	case StatePlay:
		return "play"
	}
	return fmt.Sprintf("PlaybackState(%d)", int(s))
}

// Status is the decoded result of the status command. Pointer fields are
// absent from the daemon's response in some player states (e.g. no elapsed
// time while stopped, no volume without an audio output).
type Status struct {
	State           PlaybackState
	Song            *int
	SongID          *ID
	Elapsed         *float64
	Duration        *float64
	AudioFormat     string
	PlaylistVersion int
	Repeat          bool
	Random          bool
	Single          bool
	Volume          *int
}

func statusFromAttrs(attrs Attrs) (*Status, error) {
	var state PlaybackState
	switch v, _ := attrs.Lookup("state"); v {
	case "play":
		state = StatePlay
	case "pause":
		state = StatePause
	case "stop":
		state = StateStop
	case "":
		return nil, fmt.Errorf("missing state attribute")
	default:
		return nil, fmt.Errorf("unknown player state: %s", v)
	}

	st := &Status{State: state}
	var err error

	if st.Song, err = optIntPtr(attrs, "song"); err != nil {
		return nil, err
	}
	if id, ok := attrs.Lookup("songid"); ok {
		songID := ID(id)
		st.SongID = &songID
	}
	if st.Elapsed, err = optFloatPtr(attrs, "elapsed"); err != nil {
		return nil, err
	}
	if st.Duration, err = optFloatPtr(attrs, "duration"); err != nil {
		return nil, err
	}
	st.AudioFormat, _ = attrs.Lookup("audio")
	if st.PlaylistVersion, err = attrs.Int("playlist"); err != nil {
		return nil, err
	}
	if st.Repeat, err = attrs.Bool("repeat"); err != nil {
		return nil, err
	}
	if st.Random, err = attrs.Bool("random"); err != nil {
		return nil, err
	}
	if st.Single, err = attrs.Bool("single"); err != nil {
		return nil, err
	}
	if st.Volume, err = optIntPtr(attrs, "volume"); err != nil {
		return nil, err
	}

	return st, nil
}

func optIntPtr(attrs Attrs, key string) (*int, error) {
	n, ok, err := attrs.OptInt(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func optFloatPtr(attrs Attrs, key string) (*float64, error) {
	f, ok, err := attrs.OptFloat(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// Playlist is the decoded result of playlistinfo.
type Playlist struct {
	Items []PlaylistItem
}

// PlaylistItem is one entry in the play queue.
type PlaylistItem struct {
	File  string
	Pos   int
	ID    ID
	Title string
	Name  string
}

func playlistItemFromAttrs(attrs Attrs) (PlaylistItem, error) {
	var item PlaylistItem
	var err error

	if item.File, err = attrs.Get("file"); err != nil {
		return item, err
	}
	if item.Pos, err = attrs.Int("Pos"); err != nil {
		return item, err
	}
	id, err := attrs.Get("Id")
	if err != nil {
		return item, err
	}
	item.ID = ID(id)
	item.Title, _ = attrs.Lookup("Title")
	item.Name, _ = attrs.Lookup("Name")

	return item, nil
}

// Event is a subsystem-change notification from an idle response. The set is
// closed: forward-compatible daemons may report subsystems outside it, which
// are dropped during decoding.
type Event int

const (
	EventPlayer Event = iota
	EventPlaylist
	EventOptions
	EventMixer
)

func (e Event) String() string {
	switch e {
	case EventPlayer:
		return "player"
	case EventPlaylist:
		return "playlist"
	case EventOptions:
		return "options"
	case EventMixer:
		return "mixer"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

func parseEvent(subsystem string) (Event, bool) {
	switch subsystem {
	case "player":
		return EventPlayer, true
	case "playlist":
		return EventPlaylist, true
	case "options":
		return EventOptions, true
	case "mixer":
		return EventMixer, true
	}
	return 0, false
}

// Changed holds the subsystem names reported by one idle response.
type Changed struct {
	subsystems []string
}

func changedFromAttrs(attrs Attrs) Changed {
	var subsystems []string
	for v := range attrs.All("changed") {
		subsystems = append(subsystems, v)
	}
	return Changed{subsystems: subsystems}
}

// Events maps the changed subsystems onto the known event set. Unrecognized
// subsystem names are logged and dropped, never fatal.
func (c Changed) Events() []Event {
	var events []Event
	for _, subsystem := range c.subsystems {
		event, ok := parseEvent(subsystem)
		if !ok {
			log.Printf("[mpd] unknown subsystem: %s", subsystem)
			continue
		}
		events = append(events, event)
	}
	return events
}

// ReplayGainMode enumerates the daemon's replay gain modes.
type ReplayGainMode string

const (
	ReplayGainOff   ReplayGainMode = "none"
	ReplayGainTrack ReplayGainMode = "track"
	ReplayGainAlbum ReplayGainMode = "album"
	ReplayGainAuto  ReplayGainMode = "auto"
)

// ParseReplayGainMode validates a wire or client-supplied mode string.
func ParseReplayGainMode(s string) (ReplayGainMode, error) {
	switch mode := ReplayGainMode(s); mode {
	case ReplayGainOff, ReplayGainTrack, ReplayGainAlbum, ReplayGainAuto:
		return mode, nil
	}
	return "", fmt.Errorf("unknown replay_gain_mode: %s", s)
}
