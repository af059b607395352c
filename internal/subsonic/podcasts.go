package subsonic

import (
	"context"
	"net/url"
	"strings"
)

// PodcastsConfig locates the server that hosts podcast episodes. It may be
// the same server as the main catalog or a dedicated one; episode ids are
// recognized by prefix.
type PodcastsConfig struct {
	ServerURL     *url.URL
	EpisodePrefix string
}

// PodcastsBase is an unauthenticated handle on the podcasts server.
type PodcastsBase struct {
	server        *Base
	episodePrefix string
}

// NewPodcastsBase returns a handle on the podcasts server in cfg.
func NewPodcastsBase(cfg PodcastsConfig) *PodcastsBase {
	return &PodcastsBase{
		server:        NewBase(cfg.ServerURL),
		episodePrefix: cfg.EpisodePrefix,
	}
}

// Authenticate verifies the credentials against the podcasts server.
func (b *PodcastsBase) Authenticate(ctx context.Context, auth AuthParams) (*Podcasts, error) {
	server, err := b.server.Authenticate(ctx, auth)
	if err != nil {
		return nil, err
	}
	return &Podcasts{server: server, episodePrefix: b.episodePrefix}, nil
}

// Podcasts is an authenticated handle on the podcasts server.
type Podcasts struct {
	server        *Client
	episodePrefix string
}

// Matches reports whether id names a podcast episode rather than a regular
// catalog track.
func (p *Podcasts) Matches(id TrackID) bool {
	return strings.HasPrefix(string(id), p.episodePrefix)
}

// StreamURL returns the authenticated audio URL for an episode.
func (p *Podcasts) StreamURL(id TrackID) *url.URL {
	return p.server.StreamURL(id)
}

// TrackIDFromStreamURL extracts the episode id from a stream URL pointing
// at the podcasts server.
func (p *Podcasts) TrackIDFromStreamURL(u *url.URL) (TrackID, bool) {
	return p.server.TrackIDFromStreamURL(u)
}

// GetPodcastEpisode fetches the metadata for a single episode.
func (p *Podcasts) GetPodcastEpisode(ctx context.Context, id TrackID) (PodcastEpisode, error) {
	var out struct {
		PodcastEpisode PodcastEpisode `json:"podcastEpisode"`
	}
	params := url.Values{"id": {string(id)}}
	if err := p.server.call(ctx, "getPodcastEpisode", params, &out); err != nil {
		return PodcastEpisode{}, err
	}
	return out.PodcastEpisode, nil
}
