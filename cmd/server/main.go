package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/service-matching/internal/auth"
	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/directory"
	"github.com/example/service-matching/internal/extsvc"
	"github.com/example/service-matching/internal/httpapi"
	"github.com/example/service-matching/internal/ingest"
	"github.com/example/service-matching/internal/logging"
	"github.com/example/service-matching/internal/match"
	"github.com/example/service-matching/internal/payments"
	"github.com/example/service-matching/internal/presence"
	"github.com/example/service-matching/internal/relay"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var dir directory.Directory
	if cfg.RedisAddr != "" {
		rd := directory.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.DirectoryKey)
		defer rd.Close()
		dir = rd
	} else {
		dir = directory.NewMemory()
		logger.Warn("no REDIS_ADDR set, using in-memory responder directory")
	}

	identity := extsvc.NewIdentityClient(cfg.IdentityEndpoint)
	provisioning := extsvc.NewProvisioningClient(cfg.ProvisioningEndpoint)

	var events match.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		events = producer
	} else {
		logger.Warn("no KAFKA_BROKERS set, engagement events will not be archived")
	}

	registry := presence.NewRegistry()
	coordinator := match.NewCoordinator(registry, dir, identity, events, logger)
	coordinator.RadiusKm = cfg.MatchRadiusKm
	coordinator.Window = cfg.DiscoveryWindow
	if cfg.DirectionsEndpoint != "" {
		coordinator.WithDirections(extsvc.NewDirectionsClient(cfg.DirectionsEndpoint))
	}

	var pay payments.Client
	if cfg.StripeAPIKey != "" {
		pay = payments.NewStripeClient(cfg.StripeAPIKey)
		coordinator.WithPayments(pay)
	}
	handshake := match.NewHandshake(coordinator, provisioning, pay)

	rel := relay.New(registry, logger)
	authenticator := auth.NewAuthenticator([]byte(cfg.JWTSecret), identity, logger)
	srv := httpapi.NewServer(logger, authenticator, registry, coordinator, handshake, rel, dir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// periodic sweep for engagements that stall before start
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := coordinator.SweepStale(cfg.StaleAfter); n > 0 {
					logger.Info("swept stale engagements", "count", n)
				}
			}
		}
	}()

	// read/write timeouts stay unset: they would tear down long-lived
	// socket sessions
	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     srv,
		IdleTimeout: cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("service-matching engine listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
