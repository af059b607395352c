package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"

	"sonicast/internal/mpd"
)

// dispatch runs one command and sends its response, echoing the seq number.
// Command failures become error responses rather than closing the session.
func dispatch(ctx context.Context, s *session, cmd commandMsg) {
	data, err := runCommand(ctx, s, cmd)
	resp := responseMsg{Seq: cmd.Seq, Kind: cmd.Name, Data: data}
	if err != nil {
		err = fmt.Errorf("dispatching command %s: %w", cmd.Name, err)
		log.Printf("[app] %v", err)
		resp.Kind = "error"
		resp.Data = errorData{Message: err.Error()}
	}
	s.tx.send(ctx, serverMsg{Response: &resp})
}

func runCommand(ctx context.Context, s *session, cmd commandMsg) (any, error) {
	switch cmd.Name {
	case "play":
		return nil, s.withMPD((*mpd.Client).Play)
	case "pause":
		return nil, s.withMPD((*mpd.Client).Pause)
	case "stop":
		return nil, s.withMPD((*mpd.Client).Stop)
	case "skip-next":
		return nil, s.withMPD(func(c *mpd.Client) error {
			return playerOp(c, (*mpd.Client).Next)
		})
	case "skip-previous":
		return nil, s.withMPD(func(c *mpd.Client) error {
			return playerOp(c, (*mpd.Client).Previous)
		})
	case "seek":
		param, err := decodeParam[seekParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, s.withMPD(func(c *mpd.Client) error {
			return playerOp(c, func(c *mpd.Client) error {
				return c.SeekCur(param.Position)
			})
		})
	case "play-index":
		param, err := decodeParam[playIndexParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, s.withMPD(func(c *mpd.Client) error {
			return c.PlayPos(param.Index)
		})
	case "reset-queue":
		return nil, s.withMPD((*mpd.Client).Stop)
	case "clear-queue":
		return nil, s.withMPD((*mpd.Client).Clear)
	case "add-to-queue":
		param, err := decodeParam[addToQueueParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, addToQueue(ctx, s, param)
	case "set-next-in-queue":
		param, err := decodeParam[addToQueueParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, setNextInQueue(ctx, s, param)
	case "queue":
		return queue(ctx, s)
	case "play-track-list":
		param, err := decodeParam[playTrackListParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, playTrackList(ctx, s, param)
	case "load-player-state":
		param, err := decodeParam[playerState](cmd)
		if err != nil {
			return nil, err
		}
		return nil, loadPlayerState(ctx, s, param)
	case "unload-player-state":
		return unloadPlayerState(ctx, s)
	case "remove-from-queue":
		param, err := decodeParam[removeFromQueueParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, s.withMPD(func(c *mpd.Client) error {
			return c.Delete(param.Index)
		})
	case "shuffle-queue":
		return nil, s.withMPD((*mpd.Client).Shuffle)
	case "replay-gain-mode":
		param, err := decodeParam[replayGainModeParam](cmd)
		if err != nil {
			return nil, err
		}
		mode, err := mpd.ParseReplayGainMode(param.Mode)
		if err != nil {
			return nil, err
		}
		return nil, s.withMPD(func(c *mpd.Client) error {
			return c.SetReplayGainMode(mode)
		})
	case "set-repeat":
		param, err := decodeParam[setRepeatParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, s.withMPD(func(c *mpd.Client) error {
			return c.Repeat(param.Repeat)
		})
	case "set-shuffle":
		param, err := decodeParam[setShuffleParam](cmd)
		if err != nil {
			return nil, err
		}
		return nil, s.withMPD(func(c *mpd.Client) error {
			return c.Random(param.Shuffle)
		})
	case "set-volume":
		param, err := decodeParam[setVolumeParam](cmd)
		if err != nil {
			return nil, err
		}
		// the web client uses a 0..1 volume scale, mpd uses 0..100
		volume := int(math.Round(param.Volume * 100))
		return nil, s.withMPD(func(c *mpd.Client) error {
			return c.SetVolume(volume)
		})
	case "set-playback-rate":
		return nil, errors.New("set-playback-rate not currently implemented on mpd")
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd.Name)
	}
}

func decodeParam[T any](cmd commandMsg) (T, error) {
	var param T
	if err := json.Unmarshal(cmd.Param, &param); err != nil {
		return param, fmt.Errorf("decoding %s param: %w", cmd.Name, err)
	}
	return param, nil
}

type seekParam struct {
	Position float64 `json:"pos"`
}

type playIndexParam struct {
	Index int `json:"index"`
}

type addToQueueParam struct {
	Tracks []airsonicTrackID `json:"tracks"`
}

type playTrackListParam struct {
	Tracks  []airsonicTrackID `json:"tracks"`
	Index   *int              `json:"index"`
	Shuffle *bool             `json:"shuffle"`
}

type removeFromQueueParam struct {
	Index int `json:"index"`
}

type replayGainModeParam struct {
	Mode string `json:"mode"`
}

type setRepeatParam struct {
	Repeat bool `json:"repeat"`
}

type setShuffleParam struct {
	Shuffle bool `json:"shuffle"`
}

type setVolumeParam struct {
	Volume float64 `json:"volume"`
}

// playerOp works around an mpd bug where next/previous/seek during playback
// can wind up stuck despite the status showing state = play. Pausing first
// and resuming afterwards avoids it.
func playerOp(c *mpd.Client, op func(*mpd.Client) error) error {
	status, err := c.Status()
	if err != nil {
		return err
	}
	if err := c.Pause(); err != nil {
		return err
	}
	if err := op(c); err != nil {
		return err
	}
	if status.State == mpd.StatePlay {
		return c.Play()
	}
	return nil
}

func addToQueue(ctx context.Context, s *session, param addToQueueParam) error {
	urls, err := s.resolver().streamURLs(ctx, param.Tracks)
	if err != nil {
		return err
	}
	return s.withMPD(func(c *mpd.Client) error {
		for _, u := range urls {
			if _, err := c.AddID(u); err != nil {
				return err
			}
		}
		return nil
	})
}

func setNextInQueue(ctx context.Context, s *session, param addToQueueParam) error {
	urls, err := s.resolver().streamURLs(ctx, param.Tracks)
	if err != nil {
		return err
	}
	return s.withMPD(func(c *mpd.Client) error {
		return c.StageQueue(urls, ptr(0))
	})
}

func playTrackList(ctx context.Context, s *session, param playTrackListParam) error {
	urls, err := s.resolver().streamURLs(ctx, param.Tracks)
	if err != nil {
		return err
	}
	return s.withMPD(func(c *mpd.Client) error {
		if err := c.Clear(); err != nil {
			return err
		}
		if param.Shuffle != nil {
			if err := c.Random(*param.Shuffle); err != nil {
				return err
			}
		}
		// add all tracks in the order they were provided
		for _, u := range urls {
			if _, err := c.AddID(u); err != nil {
				return err
			}
		}
		if param.Index != nil {
			return c.PlayPos(*param.Index)
		}
		return c.Play()
	})
}

type queueData struct {
	Tracks               []airsonicTrack `json:"tracks"`
	CurrentTrack         *int            `json:"currentTrack"`
	CurrentTrackPosition *float64        `json:"currentTrackPosition"`
}

func queue(ctx context.Context, s *session) (*queueData, error) {
	var playlist *mpd.Playlist
	var status *mpd.Status
	err := s.withMPD(func(c *mpd.Client) error {
		var err error
		if playlist, err = c.PlaylistInfo(); err != nil {
			return err
		}
		status, err = c.Status()
		return err
	})
	if err != nil {
		return nil, err
	}

	tracks, err := s.resolver().loadTracks(ctx, playlist.Items)
	if err != nil {
		return nil, err
	}

	var currentTrack *int
	if status.SongID != nil {
		for i, item := range playlist.Items {
			if item.ID == *status.SongID {
				currentTrack = ptr(i)
				break
			}
		}
	}

	return &queueData{
		Tracks:               tracks,
		CurrentTrack:         currentTrack,
		CurrentTrackPosition: status.Elapsed,
	}, nil
}

type playerState struct {
	Tracks  []airsonicTrack `json:"tracks"`
	Index   int             `json:"index"`
	Time    float64         `json:"time"`
	Shuffle bool            `json:"shuffle"`
	Repeat  bool            `json:"repeat"`
	Playing bool            `json:"playing"`
}

// loadPlayerState restores an entire player state, used when the web client
// hands playback over to this player.
func loadPlayerState(ctx context.Context, s *session, state playerState) error {
	ids := make([]airsonicTrackID, 0, len(state.Tracks))
	for _, track := range state.Tracks {
		ids = append(ids, track.ID)
	}

	urls, err := s.resolver().streamURLs(ctx, ids)
	if err != nil {
		return err
	}

	return s.withMPD(func(c *mpd.Client) error {
		if err := c.Clear(); err != nil {
			return err
		}
		for _, u := range urls {
			if _, err := c.AddID(u); err != nil {
				return err
			}
		}
		if err := c.Seek(state.Index, state.Time); err != nil {
			return err
		}
		if err := c.Random(state.Shuffle); err != nil {
			return err
		}
		if err := c.Repeat(state.Repeat); err != nil {
			return err
		}
		if state.Playing {
			return c.Play()
		}
		return nil
	})
}

// unloadPlayerState dumps the player state, then stops and clears the
// queue; used when the web client takes playback back from this player.
func unloadPlayerState(ctx context.Context, s *session) (*playerState, error) {
	var playlist *mpd.Playlist
	var status *mpd.Status
	err := s.withMPD(func(c *mpd.Client) error {
		var err error
		if status, err = c.Status(); err != nil {
			return err
		}
		if playlist, err = c.PlaylistInfo(); err != nil {
			return err
		}
		if err := c.Stop(); err != nil {
			return err
		}
		return c.Clear()
	})
	if err != nil {
		return nil, err
	}

	tracks, err := s.resolver().loadTracks(ctx, playlist.Items)
	if err != nil {
		return nil, err
	}

	state := &playerState{
		Tracks:  tracks,
		Shuffle: status.Random,
		Repeat:  status.Repeat,
		Playing: status.State == mpd.StatePlay,
	}
	if status.Song != nil {
		state.Index = *status.Song
	}
	if status.Elapsed != nil {
		state.Time = *status.Elapsed
	}
	return state, nil
}
