// Command feather-scan discovers Sonos groups on the local network and
// prints what each one is playing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stephencmorton/feather-sonos/internal/discovery"
	"github.com/stephencmorton/feather-sonos/internal/upnp"
)

func main() {
	timeout := flag.Duration("timeout", discovery.DefaultTimeout, "discovery timeout")
	soapTimeout := flag.Duration("soap-timeout", 5*time.Second, "per-command timeout")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	client := upnp.NewClient(*soapTimeout)
	ctx := context.Background()

	controllers, err := discovery.Discover(ctx, client, *timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("discovery failed")
	}

	for _, c := range controllers {
		fmt.Println(c)
	}
	for _, c := range controllers {
		callCtx, cancel := context.WithTimeout(ctx, *soapTimeout)
		track, err := c.CurrentTrackInfo(callCtx)
		cancel()
		switch {
		case err != nil:
			fmt.Printf("%-15s : error: %v\n", c.Name(), err)
		case track == nil:
			fmt.Printf("%-15s : nothing playing\n", c.Name())
		default:
			fmt.Printf("%-15s : %s\n", c.Name(), track)
		}
	}
}
