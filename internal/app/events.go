package app

import (
	"context"
	"log"
	"sync"
	"time"

	"sonicast/internal/mpd"
)

const playingInterval = 300 * time.Millisecond

// notifier is an edge-triggered broadcast: notify wakes every subscriber,
// and notifications arriving while a subscriber is busy coalesce into one.
type notifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[chan struct{}]struct{})}
}

func (n *notifier) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
	}
	return ch, cancel
}

func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// mpdEvents fans the daemon's idle notifications out to sessions.
type mpdEvents struct {
	queue   *notifier
	status  *notifier
	options *notifier
}

func newMPDEvents() *mpdEvents {
	return &mpdEvents{
		queue:   newNotifier(),
		status:  newNotifier(),
		options: newNotifier(),
	}
}

// eventLoop watches the dedicated events connection and translates idle
// notifications into session broadcasts. It runs for the life of the
// process.
func (a *App) eventLoop(c *mpd.Client) {
	if err := a.mpdLoop(c); err != nil {
		log.Fatalf("[app] mpd event task: %v", err)
	}
}

func (a *App) mpdLoop(c *mpd.Client) error {
	status, err := c.Status()
	if err != nil {
		return err
	}
	ver := status.PlaylistVersion

	for {
		changed, err := c.Idle()
		if err != nil {
			return err
		}

		for _, event := range changed.Events() {
			switch event {
			case mpd.EventPlayer:
				a.events.status.notify()
			case mpd.EventPlaylist:
				status, err := c.Status()
				if err != nil {
					return err
				}
				if ver != status.PlaylistVersion {
					log.Printf("[app] playlist version changed: from %d => to %d", ver, status.PlaylistVersion)
					ver = status.PlaylistVersion
					a.events.queue.notify()
				}
			case mpd.EventOptions, mpd.EventMixer:
				a.events.options.notify()
			}
		}
	}
}

// runEvents drives a session's outbound event tasks until ctx is done:
// a playback position poller plus watchers on the daemon broadcasts.
func runEvents(ctx context.Context, s *session) {
	var wg sync.WaitGroup
	tasks := []func(context.Context, *session){
		playbackEventTask,
		func(ctx context.Context, s *session) { queueWatchTask(ctx, s, s.app.events.status) },
		func(ctx context.Context, s *session) { queueWatchTask(ctx, s, s.app.events.queue) },
		optionsWatchTask,
	}
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task(ctx, s)
		}()
	}
	wg.Wait()
}

// playbackEventTask streams the playback position to the client while the
// session is open. The web client renders its progress bar from these.
func playbackEventTask(ctx context.Context, s *session) {
	ticker := time.NewTicker(playingInterval)
	defer ticker.Stop()

	for {
		var status *mpd.Status
		err := s.withMPD(func(c *mpd.Client) error {
			var err error
			status, err = c.Status()
			return err
		})
		if err != nil {
			log.Printf("[app] session %s: playback status: %v", s.id, err)
			s.cancel()
			return
		}

		event := playbackEvent{
			Playing:  status.State == mpd.StatePlay,
			Position: status.Elapsed,
			Duration: status.Duration,
		}
		s.tx.send(ctx, serverMsg{Playback: &event})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func queueWatchTask(ctx context.Context, s *session, n *notifier) {
	ch, cancel := n.subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
		}

		data, err := queue(ctx, s)
		if err != nil {
			log.Printf("[app] session %s: fetching queue: %v", s.id, err)
			continue
		}
		s.tx.send(ctx, serverMsg{Queue: data})
	}
}

func optionsWatchTask(ctx context.Context, s *session) {
	ch, cancel := s.app.events.options.subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
		}

		var status *mpd.Status
		var mode mpd.ReplayGainMode
		err := s.withMPD(func(c *mpd.Client) error {
			var err error
			if status, err = c.Status(); err != nil {
				return err
			}
			mode, err = c.ReplayGainStatus()
			return err
		})
		if err != nil {
			log.Printf("[app] session %s: fetching options: %v", s.id, err)
			continue
		}

		event := optionsEvent{
			Repeat:     status.Repeat,
			Shuffle:    status.Random,
			ReplayGain: string(mode),
			Volume:     status.Volume,
		}
		s.tx.send(ctx, serverMsg{Options: &event})
	}
}
