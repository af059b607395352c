// Package subsonic is a minimal client for the Subsonic REST API, covering
// the handful of endpoints the bridge needs: authentication, track lookup,
// random songs, internet radio, podcasts, and stream URL derivation.
package subsonic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	clientName = "sonicast"
	apiVersion = "1.16.1"
)

// Error codes defined by the Subsonic API.
const (
	CodeGeneric      = 0
	CodeUnauthorized = 40
	CodeNotFound     = 70
)

// Error is a subsonic-response level error returned by the server.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("subsonic error %d: %s", e.Code, e.Message)
}

// NotFound reports whether the error means the requested object does not
// exist on the server.
func (e *Error) NotFound() bool { return e.Code == CodeNotFound }

// AuthParams is the per-request authentication material. Either Token+Salt
// or Password is set; empty fields are omitted from the query string.
type AuthParams struct {
	Username string
	Token    string
	Salt     string
	Password string
}

func (a AuthParams) apply(q url.Values) {
	q.Set("u", a.Username)
	if a.Token != "" {
		q.Set("t", a.Token)
	}
	if a.Salt != "" {
		q.Set("s", a.Salt)
	}
	if a.Password != "" {
		q.Set("p", a.Password)
	}
}

// Base is an unauthenticated handle on a Subsonic server.
type Base struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// NewBase returns a handle on the server at baseURL.
func NewBase(baseURL *url.URL) *Base {
	return &Base{httpClient: &http.Client{}, baseURL: baseURL}
}

// Authenticate verifies the credentials with a ping round trip and returns
// an authenticated client on success.
func (b *Base) Authenticate(ctx context.Context, auth AuthParams) (*Client, error) {
	c := &Client{base: b, auth: auth}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Client is an authenticated handle on a Subsonic server.
type Client struct {
	base *Base
	auth AuthParams
}

// BaseURL returns the server base URL the client talks to.
func (c *Client) BaseURL() *url.URL { return c.base.baseURL }

func (c *Client) endpoint(method string, params url.Values) *url.URL {
	u := c.base.baseURL.JoinPath("rest", method)
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("f", "json")
	q.Set("c", clientName)
	q.Set("v", apiVersion)
	c.auth.apply(q)
	u.RawQuery = q.Encode()
	return u
}

// call performs a GET against rest/<method> and decodes the
// subsonic-response envelope into out. A status:failed envelope is surfaced
// as *Error; out may be nil for calls with no interesting body.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	u := c.endpoint(method, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("subsonic %s: %w", method, err)
	}
	resp, err := c.base.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subsonic %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subsonic %s: unexpected status %s", method, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("subsonic %s: %w", method, err)
	}

	var root struct {
		Response json.RawMessage `json:"subsonic-response"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return fmt.Errorf("subsonic %s: decoding envelope: %w", method, err)
	}
	var status struct {
		Status string `json:"status"`
		Error  *Error `json:"error"`
	}
	if err := json.Unmarshal(root.Response, &status); err != nil {
		return fmt.Errorf("subsonic %s: decoding envelope: %w", method, err)
	}
	if status.Error != nil {
		return fmt.Errorf("subsonic %s: %w", method, status.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(root.Response, out); err != nil {
		return fmt.Errorf("subsonic %s: decoding response: %w", method, err)
	}
	return nil
}

// Ping checks connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", nil, nil)
}

// GetTrack fetches the catalog entry for a single track.
func (c *Client) GetTrack(ctx context.Context, id TrackID) (Track, error) {
	var out struct {
		Song Track `json:"song"`
	}
	params := url.Values{"id": {string(id)}}
	if err := c.call(ctx, "getSong", params, &out); err != nil {
		return Track{}, err
	}
	return out.Song, nil
}

// GetRandomSongs fetches a server-chosen batch of random tracks.
func (c *Client) GetRandomSongs(ctx context.Context) ([]Track, error) {
	var out struct {
		RandomSongs struct {
			Song []Track `json:"song"`
		} `json:"randomSongs"`
	}
	if err := c.call(ctx, "getRandomSongs", nil, &out); err != nil {
		return nil, err
	}
	return out.RandomSongs.Song, nil
}

// GetRadioStations fetches the configured internet radio stations.
func (c *Client) GetRadioStations(ctx context.Context) ([]RadioStation, error) {
	var out struct {
		InternetRadioStations struct {
			Station []RadioStation `json:"internetRadioStation"`
		} `json:"internetRadioStations"`
	}
	if err := c.call(ctx, "getInternetRadioStations", nil, &out); err != nil {
		return nil, err
	}
	return out.InternetRadioStations.Station, nil
}

// StreamURL returns the authenticated URL the player fetches the track's
// audio from.
func (c *Client) StreamURL(id TrackID) *url.URL {
	return c.endpoint("stream", url.Values{"id": {string(id)}})
}

// TrackIDFromStreamURL reverses StreamURL: it extracts the track id from a
// stream URL pointing at this server. Returns false for URLs with a
// different origin or without an id parameter.
func (c *Client) TrackIDFromStreamURL(u *url.URL) (TrackID, bool) {
	base := c.base.baseURL
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return "", false
	}
	id := u.Query().Get("id")
	if id == "" {
		return "", false
	}
	return TrackID(id), true
}
