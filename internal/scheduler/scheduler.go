// Package scheduler triggers periodic topology rescans.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/stephencmorton/feather-sonos/internal/hub"
)

// Rescanner runs hub rescans on a fixed interval.
type Rescanner struct {
	hub  *hub.Hub
	cron *cron.Cron
}

// New creates a rescanner around the hub.
func New(h *hub.Hub) *Rescanner {
	return &Rescanner{hub: h, cron: cron.New()}
}

// Start schedules a rescan every interval (a Go duration string, e.g.
// "60s"). The first scan runs immediately in the background.
func (r *Rescanner) Start(interval string) error {
	if _, err := time.ParseDuration(interval); err != nil {
		return fmt.Errorf("invalid rescan interval %q: %w", interval, err)
	}
	if _, err := r.cron.AddFunc("@every "+interval, r.rescan); err != nil {
		return fmt.Errorf("schedule rescan: %w", err)
	}
	go r.rescan()
	r.cron.Start()
	log.Info().Str("interval", interval).Msg("rescan scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running scan to finish or the
// context to expire.
func (r *Rescanner) Stop(ctx context.Context) error {
	done := r.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Rescanner) rescan() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := r.hub.Rescan(ctx); err != nil {
		log.Warn().Err(err).Msg("scheduled rescan failed")
	}
}
