package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iraqaf/assurance/internal/catalog"
	"github.com/iraqaf/assurance/internal/changedetect"
	"github.com/iraqaf/assurance/internal/config"
	"github.com/iraqaf/assurance/internal/eventbus"
	"github.com/iraqaf/assurance/internal/evidence"
	"github.com/iraqaf/assurance/internal/health"
	"github.com/iraqaf/assurance/internal/notify"
	"github.com/iraqaf/assurance/internal/orchestrator"
	"github.com/iraqaf/assurance/internal/store"
)

func main() {
	log.Printf("Starting Assurance Engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewStore(ctx, cfg.StoreBackend, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("Failed to open store (%s): %v", cfg.StoreBackend, err)
	}
	defer st.Close(context.Background())
	log.Printf("Store backend: %s", cfg.StoreBackend)

	// Evidence and the change registry share a redis instance when one is
	// configured; otherwise both run in-process.
	var evidenceSource evidence.Source
	var registry changedetect.Registry
	if cfg.RedisAddr != "" {
		client, err := evidence.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		evidenceSource = client
		registry = client
	} else {
		log.Printf("No REDIS_ADDR configured, using in-memory evidence store")
		evidenceSource = evidence.NewMemory()
		registry = changedetect.NewMemoryRegistry()
	}

	var publisher *eventbus.Publisher
	var subscriber *eventbus.Subscriber
	if cfg.NatsURL != "" {
		publisher, err = eventbus.NewPublisher(cfg.NatsURL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()

		subscriber, err = eventbus.NewSubscriber(cfg.NatsURL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS for intake: %v", err)
		}
		defer subscriber.Close()

		if err := subscriber.Start(); err != nil {
			log.Fatalf("Failed to subscribe to regulatory updates: %v", err)
		}
	} else {
		log.Printf("No NATS_URL configured, running without event bus")
	}

	router := buildRouter(cfg, publisher)

	engine, err := orchestrator.New(cfg, orchestrator.Deps{
		Catalog:    catalog.NewMemory(),
		Evidence:   evidenceSource,
		Store:      st,
		Registry:   registry,
		Router:     router,
		Publisher:  publisher,
		Subscriber: subscriber,
	})
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	health.StartHealthCheckServer(cfg.HealthPort, func() string {
		return string(engine.State())
	})

	go engine.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("Shutdown signal received")
	cancel()
	engine.Stop()
	log.Printf("Assurance Engine stopped")
}

// buildRouter assembles the notification channel set. The log channel is
// always present; NATS joins it when an event bus is configured.
func buildRouter(cfg *config.Config, publisher *eventbus.Publisher) *notify.Router {
	channels := []notify.Channel{notify.LogChannel{}}
	if publisher != nil {
		channels = append(channels, notify.NewNATSChannel(publisher))
	}

	var primary notify.Channel = channels[0]
	for _, channel := range channels {
		if channel.Name() == cfg.PrimaryChannel {
			primary = channel
		}
	}

	return notify.NewRouter(
		channels,
		primary,
		time.Duration(cfg.NotifyTimeoutSeconds)*time.Second,
		cfg.NotifyMaxAttempts,
		time.Duration(cfg.NotifyBackoffMS)*time.Millisecond,
	)
}
