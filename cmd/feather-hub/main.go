// Command feather-hub runs the Sonos hub daemon: periodic topology
// scans, a device registry, and an HTTP/websocket control API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stephencmorton/feather-sonos/internal/config"
	"github.com/stephencmorton/feather-sonos/internal/hub"
	"github.com/stephencmorton/feather-sonos/internal/registry"
	"github.com/stephencmorton/feather-sonos/internal/scheduler"
	"github.com/stephencmorton/feather-sonos/internal/server"
	"github.com/stephencmorton/feather-sonos/internal/upnp"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	store, err := registry.Open(cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening device registry")
	}
	defer store.Close()

	client := upnp.NewClient(time.Duration(cfg.SoapTimeoutMs) * time.Millisecond)
	h := hub.New(client, store, time.Duration(cfg.DiscoveryTimeoutMs)*time.Millisecond, cfg.StaticDeviceIPs)

	rescanner := scheduler.New(h)
	if cfg.RescanInterval != "" {
		if err := rescanner.Start(cfg.RescanInterval); err != nil {
			log.Fatal().Err(err).Msg("starting rescan scheduler")
		}
	}

	addr := cfg.Host + ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewHandler(cfg, h, store),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rescanner.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("stopping scheduler")
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("shutting down server")
		}
	}()

	log.Info().Str("addr", addr).Str("db", cfg.SQLiteDBPath).Msg("feather-hub listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
