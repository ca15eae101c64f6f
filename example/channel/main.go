package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot"
)

func main() {
	cfg, err := realtimerobot.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sink, batches, closeBatches := realtimerobot.NewChannelSink("link", 32,
		realtimerobot.EventTransition, realtimerobot.EventFault)
	defer closeBatches()

	go linkWatcher("link", batches)

	if err := realtimerobot.RunSimulation(ctx, cfg, realtimerobot.WithEventSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("simulation error: %v", err)
	}
}

func linkWatcher(name string, batches <-chan []realtimerobot.Event) {
	for batch := range batches {
		for _, ev := range batch {
			fmt.Printf("[%s] %s %s %s %s\n", name, ev.Time.Format(time.RFC3339), ev.Kind, ev.State, ev.Detail)
		}
	}
}
