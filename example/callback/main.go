package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/pkg/realtimerobot"
)

// Runs both roles in process and prints every link event.
func main() {
	cfg := realtimerobot.DefaultConfig()
	cfg.Metrics.Addr = ""
	cfg.Telemetry.TickEvents = true

	callback := func(batch []realtimerobot.Event) error {
		for _, ev := range batch {
			fmt.Printf("%s seq=%d kind=%s state=%s peer=%s %s values=%v\n",
				ev.Time.Format(time.RFC3339Nano),
				ev.Seq,
				ev.Kind,
				ev.State,
				ev.Peer,
				ev.Detail,
				ev.Values,
			)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := realtimerobot.RunSimulation(ctx, cfg,
		realtimerobot.WithEventSink(realtimerobot.NewCallbackSink("stdout", callback)))
	if err != nil && err != context.Canceled {
		log.Fatalf("simulation error: %v", err)
	}
}
