package subsonic

import "encoding/json"

type (
	// TrackID identifies a track (or podcast episode) on the catalog server.
	TrackID string
	// AlbumID identifies an album.
	AlbumID string
	// ArtistID identifies an artist.
	ArtistID string
	// CoverArtID identifies a cover art image.
	CoverArtID string
	// RadioID identifies an internet radio station.
	RadioID string
)

// Track is a catalog entry in the wire shape the web client consumes.
type Track struct {
	ID TrackID `json:"id"`
	TrackDetails
}

// TrackDetails carries the track fields shared between real tracks and the
// track-shaped entries synthesized for radio stations and podcast episodes.
type TrackDetails struct {
	Artist        *string         `json:"artist"`
	Title         *string         `json:"title"`
	Duration      *float64        `json:"duration"`
	Starred       string          `json:"starred,omitempty"`
	CoverArt      CoverArtID      `json:"coverArt,omitempty"`
	Track         *int            `json:"track,omitempty"`
	Album         *string         `json:"album,omitempty"`
	AlbumID       AlbumID         `json:"albumId"`
	Artists       []TrackArtist   `json:"artists"`
	IsStream      *bool           `json:"isStream,omitempty"`
	IsPodcast     *bool           `json:"isPodcast,omitempty"`
	IsUnavailable *bool           `json:"isUnavailable,omitempty"`
	PlayCount     *int            `json:"playCount,omitempty"`
	ReplayGain    json.RawMessage `json:"replayGain,omitempty"`
	StreamURL     string          `json:"streamUrl,omitempty"`
}

// TrackArtist names one credited artist on a track.
type TrackArtist struct {
	Name string   `json:"name"`
	ID   ArtistID `json:"id"`
}

// RadioStation is an internet radio entry from the catalog server.
type RadioStation struct {
	ID          RadioID `json:"id"`
	Name        string  `json:"name"`
	StreamURL   string  `json:"streamUrl"`
	HomepageURL string  `json:"homePageUrl"`
}

// PodcastEpisode is a podcast entry from the podcasts server.
type PodcastEpisode struct {
	ID       TrackID    `json:"id"`
	Title    string     `json:"title"`
	Album    string     `json:"album"`
	Artist   string     `json:"artist"`
	Duration float64    `json:"duration"`
	CoverArt CoverArtID `json:"coverArt"`
}
