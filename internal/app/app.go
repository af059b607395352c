// Package app is the bridge daemon: it serves the web client's websocket
// endpoint and translates its commands and events between the Subsonic
// catalog and the mpd player.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"sonicast/internal/mpd"
	"sonicast/internal/subsonic"
)

// Config assembles everything the daemon needs at startup.
type Config struct {
	Listen      string
	SubsonicURL *url.URL
	Podcasts    *subsonic.PodcastsConfig
	MPD         mpd.Config
	Verbose     bool
}

// App holds the shared state behind all websocket sessions.
type App struct {
	// mpdMu serializes command sequences on the shared connection, so
	// compound operations are not interleaved between sessions.
	mpdMu sync.Mutex
	mpd   *mpd.Client

	subsonic *subsonic.Base
	podcasts *subsonic.PodcastsBase
	events   *mpdEvents
	verbose  bool
}

// New connects to the player and starts the event loop. Two player
// connections are opened: one for commands, the other dedicated to idle
// event watching.
func New(cfg Config) (*App, error) {
	commands, err := mpd.Dial(cfg.MPD)
	if err != nil {
		return nil, err
	}
	events, err := mpd.Dial(cfg.MPD)
	if err != nil {
		commands.Close()
		return nil, err
	}

	a := &App{
		mpd:      commands,
		subsonic: subsonic.NewBase(cfg.SubsonicURL),
		events:   newMPDEvents(),
		verbose:  cfg.Verbose,
	}
	if cfg.Podcasts != nil {
		a.podcasts = subsonic.NewPodcastsBase(*cfg.Podcasts)
	}

	go a.eventLoop(events)
	return a, nil
}

// Run serves the daemon until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.handleWS)

	server := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("[app] listening on %s", cfg.Listen)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func authFromQuery(q url.Values) subsonic.AuthParams {
	return subsonic.AuthParams{
		Username: q.Get("u"),
		Token:    q.Get("t"),
		Salt:     q.Get("s"),
		Password: q.Get("p"),
	}
}

// handleWS authenticates the client against the catalog before upgrading,
// then runs the session until either side goes away.
func (a *App) handleWS(w http.ResponseWriter, r *http.Request) {
	auth := authFromQuery(r.URL.Query())

	sub, err := a.subsonic.Authenticate(r.Context(), auth)
	if err != nil {
		log.Printf("[app] subsonic authenticate: %v", err)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	var podcasts *subsonic.Podcasts
	if a.podcasts != nil {
		podcasts, err = a.podcasts.Authenticate(r.Context(), auth)
		if err != nil {
			log.Printf("[app] podcasts authenticate: %v", err)
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Printf("[app] websocket accept: %v", err)
		return
	}

	a.runSession(r.Context(), conn, sub, podcasts)
}

// session is the per-websocket state: the authenticated catalog handles
// plus the outbound message channel.
type session struct {
	id       string
	app      *App
	tx       msgSender
	subsonic *subsonic.Client
	podcasts *subsonic.Podcasts // nil when no podcasts server is configured
	cancel   context.CancelFunc
}

// withMPD runs f with exclusive access to the shared player connection.
func (s *session) withMPD(f func(*mpd.Client) error) error {
	s.app.mpdMu.Lock()
	defer s.app.mpdMu.Unlock()
	return f(s.app.mpd)
}

func (a *App) runSession(ctx context.Context, conn *websocket.Conn, sub *subsonic.Client, podcasts *subsonic.Podcasts) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &session{
		id:       uuid.NewString(),
		app:      a,
		tx:       &wsSender{conn: conn},
		subsonic: sub,
		podcasts: podcasts,
		cancel:   cancel,
	}

	log.Printf("[app] session %s connected", s.id)
	defer log.Printf("[app] session %s closed", s.id)

	go func() {
		defer cancel()
		receiveLoop(ctx, s, conn)
	}()

	runEvents(ctx, s)
	conn.Close(websocket.StatusNormalClosure, "")
}

func receiveLoop(ctx context.Context, s *session, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					log.Printf("[app] session %s: websocket receive: %v", s.id, err)
				}
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if s.app.verbose {
			log.Printf("[app] session %s: rx msg: %s", s.id, data)
		}

		var msg clientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[app] session %s: json parse error in websocket message: %v", s.id, err)
			continue
		}
		if msg.Command != nil {
			dispatch(ctx, s, *msg.Command)
		}
	}
}

// msgSender is the outbound half of a session. Sessions never fail on a
// send error; a dead socket surfaces through the receive loop instead.
type msgSender interface {
	send(ctx context.Context, msg serverMsg)
}

// wsSender serializes concurrent writers onto one websocket.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsSender) send(ctx context.Context, msg serverMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[app] encoding websocket message: %v", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.Write(ctx, websocket.MessageText, data); err != nil && ctx.Err() == nil {
		log.Printf("[app] websocket send error: %v", err)
	}
}
