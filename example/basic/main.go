package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Eric-Butcher/RealTimeRobot"
)

func main() {
	cfg, err := realtimerobot.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	bot, err := realtimerobot.NewReceiver(cfg)
	if err != nil {
		log.Fatalf("build receiver: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("receiver exited: %v", err)
	}
}
