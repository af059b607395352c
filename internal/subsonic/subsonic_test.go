package subsonic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	auth := AuthParams{Username: "alice", Token: "tok", Salt: "salty"}
	c, err := NewBase(base).Authenticate(context.Background(), auth)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return c, srv
}

func writeOK(w http.ResponseWriter, body string) {
	fmt.Fprintf(w, `{"subsonic-response": {"status": "ok", "version": "1.16.1"%s}}`, body)
}

func TestAuthenticatePings(t *testing.T) {
	var pinged bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/ping" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("u") != "alice" || q.Get("t") != "tok" || q.Get("s") != "salty" {
			t.Errorf("missing auth params in %v", q)
		}
		if q.Get("f") != "json" || q.Get("c") != clientName || q.Get("v") != apiVersion {
			t.Errorf("missing protocol params in %v", q)
		}
		pinged = true
		writeOK(w, "")
	})
	if c == nil || !pinged {
		t.Fatal("expected ping round trip")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subsonic-response": {"status": "failed",
			"error": {"code": 40, "message": "Wrong username or password"}}}`)
	}))
	defer srv.Close()
	base, _ := url.Parse(srv.URL)
	_, err := NewBase(base).Authenticate(context.Background(), AuthParams{Username: "alice", Password: "nope"})
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if serr.Code != CodeUnauthorized {
		t.Fatalf("code = %d, want %d", serr.Code, CodeUnauthorized)
	}
}

func TestGetTrack(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/ping" {
			writeOK(w, "")
			return
		}
		if r.URL.Path != "/rest/getSong" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "t-42" {
			t.Errorf("id = %q, want t-42", got)
		}
		writeOK(w, `, "song": {"id": "t-42", "title": "Blue", "artist": "Joni",
			"duration": 305, "albumId": "al-7",
			"artists": [{"name": "Joni", "id": "ar-1"}]}`)
	})
	track, err := c.GetTrack(context.Background(), "t-42")
	if err != nil {
		t.Fatal(err)
	}
	if track.ID != "t-42" {
		t.Errorf("id = %q", track.ID)
	}
	if track.Title == nil || *track.Title != "Blue" {
		t.Errorf("title = %v", track.Title)
	}
	if track.Duration == nil || *track.Duration != 305 {
		t.Errorf("duration = %v", track.Duration)
	}
	if len(track.Artists) != 1 || track.Artists[0].ID != "ar-1" {
		t.Errorf("artists = %v", track.Artists)
	}
}

func TestGetTrackNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/ping" {
			writeOK(w, "")
			return
		}
		fmt.Fprint(w, `{"subsonic-response": {"status": "failed",
			"error": {"code": 70, "message": "Song not found"}}}`)
	})
	_, err := c.GetTrack(context.Background(), "gone")
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !serr.NotFound() {
		t.Errorf("NotFound() = false for code %d", serr.Code)
	}
}

func TestGetRandomSongs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/ping" {
			writeOK(w, "")
			return
		}
		if r.URL.Path != "/rest/getRandomSongs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeOK(w, `, "randomSongs": {"song": [
			{"id": "t-1", "title": "One", "duration": 61},
			{"id": "t-2", "title": "Two", "duration": 62}]}`)
	})
	songs, err := c.GetRandomSongs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 2 {
		t.Fatalf("songs = %d, want 2", len(songs))
	}
	if songs[0].ID != "t-1" || songs[1].ID != "t-2" {
		t.Errorf("ids = %q, %q", songs[0].ID, songs[1].ID)
	}
	if songs[1].Title == nil || *songs[1].Title != "Two" {
		t.Errorf("title = %v", songs[1].Title)
	}
}

func TestGetRadioStations(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/ping" {
			writeOK(w, "")
			return
		}
		writeOK(w, `, "internetRadioStations": {"internetRadioStation": [
			{"id": "r-1", "name": "FIP", "streamUrl": "https://radio.example/fip"}]}`)
	})
	stations, err := c.GetRadioStations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stations) != 1 || stations[0].Name != "FIP" {
		t.Fatalf("stations = %v", stations)
	}
}

func TestStreamURLRoundTrip(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, "")
	})
	u := c.StreamURL("t-9")
	q := u.Query()
	if q.Get("id") != "t-9" || q.Get("u") != "alice" || q.Get("c") != clientName {
		t.Fatalf("stream url query = %v", q)
	}

	id, ok := c.TrackIDFromStreamURL(u)
	if !ok || id != "t-9" {
		t.Fatalf("TrackIDFromStreamURL = %q, %v", id, ok)
	}

	other, _ := url.Parse("https://elsewhere.example/rest/stream?id=t-9")
	if _, ok := c.TrackIDFromStreamURL(other); ok {
		t.Error("accepted stream url from a different origin")
	}
	noID, _ := url.Parse(srv.URL + "/rest/stream")
	if _, ok := c.TrackIDFromStreamURL(noID); ok {
		t.Error("accepted stream url without an id")
	}
}

func TestPodcastsMatchesPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/ping" {
			writeOK(w, "")
			return
		}
		writeOK(w, `, "podcastEpisode": {"id": "pe-3", "title": "Episode 3",
			"album": "Some Show", "artist": "Host", "duration": 1800, "coverArt": "ca-3"}`)
	}))
	defer srv.Close()
	base, _ := url.Parse(srv.URL)
	p, err := NewPodcastsBase(PodcastsConfig{ServerURL: base, EpisodePrefix: "pe-"}).
		Authenticate(context.Background(), AuthParams{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}

	if !p.Matches("pe-3") {
		t.Error("Matches(pe-3) = false")
	}
	if p.Matches("t-3") {
		t.Error("Matches(t-3) = true")
	}

	ep, err := p.GetPodcastEpisode(context.Background(), "pe-3")
	if err != nil {
		t.Fatal(err)
	}
	if ep.Title != "Episode 3" || ep.Duration != 1800 {
		t.Fatalf("episode = %+v", ep)
	}
}
