package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/visitord/internal/api"
	"github.com/your-org/visitord/internal/api/ws"
	"github.com/your-org/visitord/internal/config"
	"github.com/your-org/visitord/internal/models"
	"github.com/your-org/visitord/internal/observability"
	"github.com/your-org/visitord/internal/queue"
	"github.com/your-org/visitord/internal/storage"
	"github.com/your-org/visitord/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting visitord API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume visit notices to broadcast via WebSocket. The worker already
	// persisted the event; here it is only fanned out to live clients.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create visit consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeVisits(ctx, "api-visits", func(ctx context.Context, msg jetstream.Msg) error {
		var notice models.VisitNotice
		if err := json.Unmarshal(msg.Data(), &notice); err != nil {
			return err
		}

		evtType := "visit_entry"
		if notice.Kind == models.EventKindExit {
			evtType = "visit_exit"
		}

		data := dto.VisitEventResponse{
			ID:        notice.EventID,
			VisitorID: notice.VisitorID,
			StreamID:  notice.StreamID,
			Kind:      string(notice.Kind),
			Timestamp: notice.Timestamp.Format(time.RFC3339),
		}
		if notice.SnapshotKey != "" {
			data.SnapshotURL = "/v1/events/" + notice.EventID.String() + "/snapshot"
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:     evtType,
			StreamID: notice.StreamID,
			Data:     data,
		})

		return nil
	})
	if err != nil {
		slog.Warn("start visit consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
