package app

import (
	"context"
	"fmt"
	"net/url"

	"sonicast/internal/mpd"
	"sonicast/internal/subsonic"
)

// resolver translates between the client's track id space and the stream
// URLs mpd plays. It caches the radio station list for the duration of one
// resolution pass.
type resolver struct {
	subsonic *subsonic.Client
	podcasts *subsonic.Podcasts // nil when no podcasts server is configured

	stations     []subsonic.RadioStation
	haveStations bool
}

func (s *session) resolver() *resolver {
	return &resolver{subsonic: s.subsonic, podcasts: s.podcasts}
}

func (r *resolver) radioStations(ctx context.Context) ([]subsonic.RadioStation, error) {
	if !r.haveStations {
		stations, err := r.subsonic.GetRadioStations(ctx)
		if err != nil {
			return nil, err
		}
		r.stations = stations
		r.haveStations = true
	}
	return r.stations, nil
}

// streamURLs maps client track ids to the URLs handed to mpd, preserving
// order.
func (r *resolver) streamURLs(ctx context.Context, ids []airsonicTrackID) ([]string, error) {
	urls := make([]string, 0, len(ids))
	for _, id := range ids {
		u, err := r.streamURL(ctx, id)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (r *resolver) streamURL(ctx context.Context, id airsonicTrackID) (string, error) {
	if radioID, ok := id.radio(); ok {
		stations, err := r.radioStations(ctx)
		if err != nil {
			return "", err
		}
		for _, station := range stations {
			if station.ID == radioID {
				return station.StreamURL, nil
			}
		}
		return "", fmt.Errorf("unknown radio station: %s", radioID)
	}

	trackID, _ := id.track()
	if r.podcasts != nil && r.podcasts.Matches(trackID) {
		return r.podcasts.StreamURL(trackID).String(), nil
	}
	return r.subsonic.StreamURL(trackID).String(), nil
}

// loadTracks resolves mpd queue entries back into client-shaped tracks.
func (r *resolver) loadTracks(ctx context.Context, items []mpd.PlaylistItem) ([]airsonicTrack, error) {
	tracks := make([]airsonicTrack, 0, len(items))
	for _, item := range items {
		track, err := r.loadTrack(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("loading track for url %s: %w", item.File, err)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (r *resolver) loadTrack(ctx context.Context, item mpd.PlaylistItem) (airsonicTrack, error) {
	u, err := url.Parse(item.File)
	if err != nil {
		return airsonicTrack{}, err
	}

	if r.podcasts != nil {
		if id, ok := r.podcasts.TrackIDFromStreamURL(u); ok {
			episode, err := r.podcasts.GetPodcastEpisode(ctx, id)
			if err != nil {
				return airsonicTrack{}, err
			}
			return episodeToAirsonic(episode), nil
		}
	}

	if id, ok := r.subsonic.TrackIDFromStreamURL(u); ok {
		track, err := r.subsonic.GetTrack(ctx, id)
		if err != nil {
			return airsonicTrack{}, err
		}
		return trackToAirsonic(track), nil
	}

	// not one of ours: match against the configured radio stations
	stations, err := r.radioStations(ctx)
	if err != nil {
		return airsonicTrack{}, err
	}
	for _, station := range stations {
		if station.StreamURL == item.File {
			return radioToAirsonic(station), nil
		}
	}

	return airsonicTrack{}, fmt.Errorf("no track id in url: %s", item.File)
}
