package app

import (
	"encoding/json"
	"strings"

	"sonicast/internal/subsonic"
)

// Wire shapes for the websocket protocol. Client messages are externally
// tagged objects; commands carry a seq number the response echoes back.
//
//	{"command": {"seq": 1, "name": "seek", "param": {"pos": 12.5}}}
//	{"response": {"seq": 1, "kind": "seek", "data": null}}

type clientMsg struct {
	Command *commandMsg `json:"command"`
}

type commandMsg struct {
	Seq   int64           `json:"seq"`
	Name  string          `json:"name"`
	Param json.RawMessage `json:"param"`
}

type serverMsg struct {
	Response *responseMsg   `json:"response,omitempty"`
	Playback *playbackEvent `json:"playback,omitempty"`
	Queue    *queueData     `json:"queue,omitempty"`
	Options  *optionsEvent  `json:"options,omitempty"`
}

type responseMsg struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}

type playbackEvent struct {
	Playing  bool     `json:"playing"`
	Position *float64 `json:"position"`
	Duration *float64 `json:"duration"`
}

type optionsEvent struct {
	Repeat     bool   `json:"repeat"`
	Shuffle    bool   `json:"shuffle"`
	ReplayGain string `json:"replayGain"`
	Volume     *int   `json:"volume"`
}

// airsonicTrack is a track in the shape the airsonic-refix web client
// expects: radio stations and podcast episodes are presented as tracks too.
type airsonicTrack struct {
	ID airsonicTrackID `json:"id"`
	subsonic.TrackDetails
}

// airsonicTrackID is the client-side track id space. Radio station ids are
// distinguished from regular track ids by a "radio-" prefix.
type airsonicTrackID string

const radioPrefix = "radio-"

func radioTrackID(id subsonic.RadioID) airsonicTrackID {
	return airsonicTrackID(radioPrefix + string(id))
}

func trackTrackID(id subsonic.TrackID) airsonicTrackID {
	return airsonicTrackID(id)
}

// radio returns the radio station id if this id names a station.
func (id airsonicTrackID) radio() (subsonic.RadioID, bool) {
	rest, ok := strings.CutPrefix(string(id), radioPrefix)
	if !ok {
		return "", false
	}
	return subsonic.RadioID(rest), true
}

// track returns the catalog track id for non-radio ids.
func (id airsonicTrackID) track() (subsonic.TrackID, bool) {
	if _, ok := id.radio(); ok {
		return "", false
	}
	return subsonic.TrackID(id), true
}

func trackToAirsonic(track subsonic.Track) airsonicTrack {
	return airsonicTrack{
		ID:           trackTrackID(track.ID),
		TrackDetails: track.TrackDetails,
	}
}

// The web client models radio stations as tracks, see
// airsonic-refix api.ts normalizeRadioStation.
func radioToAirsonic(station subsonic.RadioStation) airsonicTrack {
	return airsonicTrack{
		ID: radioTrackID(station.ID),
		TrackDetails: subsonic.TrackDetails{
			Title:     ptr(station.Name),
			Duration:  ptr(0.0),
			IsStream:  ptr(true),
			StreamURL: station.StreamURL,
		},
	}
}

func episodeToAirsonic(episode subsonic.PodcastEpisode) airsonicTrack {
	return airsonicTrack{
		ID: trackTrackID(episode.ID),
		TrackDetails: subsonic.TrackDetails{
			Title:     ptr(episode.Title),
			Artist:    ptr(episode.Artist),
			Album:     ptr(episode.Album),
			Duration:  ptr(episode.Duration),
			CoverArt:  episode.CoverArt,
			IsPodcast: ptr(true),
		},
	}
}

func ptr[T any](v T) *T { return &v }
