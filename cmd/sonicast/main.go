// Command sonicast bridges the airsonic-refix web client to a local mpd
// player, streaming tracks from a Subsonic server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"sonicast/internal/app"
	"sonicast/internal/config"
	"sonicast/internal/mpd"
	"sonicast/internal/subsonic"
)

const version = "0.1.0"

func main() {
	var (
		configPath  = flag.StringP("config", "c", "", "path to the config file")
		listen      = flag.StringP("listen", "l", "", "listen address (overrides config)")
		mpdSocket   = flag.String("mpd-socket", "", "mpd unix socket path (overrides config)")
		subsonicURL = flag.String("subsonic-url", "", "subsonic server url (overrides config)")
		verbose     = flag.BoolP("verbose", "v", false, "log received websocket messages")
		showVersion = flag.BoolP("version", "V", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sonicast %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *mpdSocket != "" {
		cfg.MPDSocket = *mpdSocket
	}
	if *subsonicURL != "" {
		u, err := url.Parse(*subsonicURL)
		if err != nil {
			log.Fatalf("[main] parsing --subsonic-url: %v", err)
		}
		cfg.SubsonicURL = u
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := app.Config{
		Listen:      cfg.Listen,
		SubsonicURL: cfg.SubsonicURL,
		MPD:         mpd.Config{Socket: cfg.MPDSocket},
		Verbose:     *verbose,
	}
	if cfg.Podcasts != nil {
		appCfg.Podcasts = &subsonic.PodcastsConfig{
			ServerURL:     cfg.Podcasts.URL,
			EpisodePrefix: cfg.Podcasts.EpisodePrefix,
		}
	}

	log.Printf("[main] sonicast %s starting", version)
	if err := app.Run(ctx, appCfg); err != nil {
		log.Fatalf("[main] %v", err)
	}
}
