package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	venue "github.com/cutamar/govenue"
	"github.com/cutamar/govenue/broadcast"
	"github.com/cutamar/govenue/eventlog"
	"github.com/cutamar/govenue/internal/config"
	"github.com/cutamar/govenue/internal/httpapi"
	"github.com/cutamar/govenue/internal/storage"
	"github.com/cutamar/govenue/internal/storage/mysql"
)

const (
	envDev        = "dev"
	envProduction = "production"
)

func main() {
	cfg := config.MustLoad()

	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)
	venue.SetLogger(logger)

	logger.Info("starting venue", "env", cfg.Env, "instruments", cfg.Instruments)

	// The event log is the durable record; everything else consumes it.
	log, err := eventlog.NewBoltLog(cfg.EventLog.Path)
	if err != nil {
		logger.Error("failed to open event log", "path", cfg.EventLog.Path, "error", err)
		os.Exit(1)
	}
	defer log.Close()

	views, err := buildDepthViews(cfg, log)
	if err != nil {
		logger.Error("failed to rebuild market data views", "error", err)
		os.Exit(1)
	}

	// The event log sink goes first so the durable record is written
	// before anything downstream observes an event.
	sinks := []venue.EventPublisher{eventlog.NewPublisher(log), views}

	var tradeStore storage.Storage
	if cfg.Database.Enabled {
		store, err := mysql.New(cfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		tradeStore = store
		sinks = append(sinks, storage.NewArchiver(store))
	}

	if cfg.Kafka.Enabled {
		broadcaster, err := broadcast.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Error("failed to connect to kafka", "brokers", cfg.Kafka.Brokers, "error", err)
			os.Exit(1)
		}
		defer broadcaster.Close()
		sinks = append(sinks, broadcaster)
	}

	v, err := startVenue(cfg, venue.NewFanoutPublisher(sinks...))
	if err != nil {
		logger.Error("failed to start venue", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	httpapi.NewServer(v, tradeStore, views).Routes(mux)

	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPServer.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	// Snapshot before stopping the workers so the on-disk state reflects
	// everything that was published.
	if _, err := v.TakeSnapshot(ctx, cfg.Snapshot.Dir); err != nil {
		logger.Error("snapshot on shutdown failed", "error", err)
	}

	if err := v.Shutdown(ctx); err != nil {
		logger.Error("venue shutdown failed", "error", err)
	}

	logger.Info("stopped")
}

func snapshotExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "metadata.json"))
	return err == nil
}

// buildDepthViews rebuilds one market data projection per configured
// instrument by replaying the event log. A fresh boot (no snapshot on disk)
// requires an empty log: a new engine restarts its sequences at one, and
// the idempotent append would silently drop its events behind the old ones.
func buildDepthViews(cfg *config.Config, log eventlog.Log) (*venue.ViewPublisher, error) {
	ctx := context.Background()
	restoring := snapshotExists(cfg.Snapshot.Dir)

	views := make([]*venue.DepthView, 0, len(cfg.Instruments))
	for _, ins := range cfg.Instruments {
		view := venue.NewDepthView(ins)
		if restoring {
			if err := log.Scan(ctx, ins, 0, view.Apply); err != nil {
				return nil, fmt.Errorf("replay %s: %w", ins, err)
			}
		} else {
			last, err := log.LastSeq(ctx, ins)
			if err != nil {
				return nil, err
			}
			if last > 0 {
				return nil, fmt.Errorf("event log %s already holds events for %s but no snapshot exists; restore from the snapshot or remove the log", cfg.EventLog.Path, ins)
			}
		}
		views = append(views, view)
	}
	return venue.NewViewPublisher(views...), nil
}

// startVenue restores from the last snapshot when one exists, otherwise
// boots fresh with the configured instruments. Restored workers are started
// by the restore itself.
func startVenue(cfg *config.Config, publisher venue.EventPublisher) (*venue.Venue, error) {
	if !snapshotExists(cfg.Snapshot.Dir) {
		v := venue.NewVenue(cfg.Instruments, publisher)
		v.Start()
		return v, nil
	}

	v := venue.NewVenue(nil, publisher)
	meta, err := v.RestoreFromSnapshot(cfg.Snapshot.Dir)
	if err != nil {
		return nil, err
	}
	slog.Info("restored from snapshot",
		"dir", cfg.Snapshot.Dir,
		"taken_at", meta.Timestamp,
		"last_cmd_seq_id", meta.GlobalLastCmdSeqID,
	)

	restored := v.Instruments()
	for _, ins := range cfg.Instruments {
		if !slices.Contains(restored, ins) {
			slog.Warn("configured instrument missing from snapshot", "instrument", ins)
		}
	}
	return v, nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
