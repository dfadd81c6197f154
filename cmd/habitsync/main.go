// Command habitsync runs synchronization passes between a local habit
// database and the remote habit service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/avilov/habitsync/internal/remote/httpapi"
	"github.com/avilov/habitsync/internal/store/sqlite"
	"github.com/avilov/habitsync/internal/syncer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func defaultDBPath() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "habitsync", "habits.db")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "habitsync", "habits.db")
}

// main parses configuration, opens the local store (applying migrations),
// and runs sync passes until stopped.
func main() {
	dbPath := flag.String("db", defaultDBPath(), "local database path")
	addr := flag.String("addr", "", "remote service base URL (required)")
	token := flag.String("token", "", "bearer token for the remote service")
	retention := flag.Duration("tombstone-retention", syncer.DefaultTombstoneRetention,
		"prune tombstones older than this after a successful pass (0 disables)")
	parallel := flag.Int("parallel", 8, "max concurrent sync actions")
	interval := flag.Duration("interval", 0, "re-sync period (0 = single pass)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("db", *dbPath),
	)

	if *addr == "" {
		logger.Fatal("missing remote base URL (--addr)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal("open local store", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	rc, err := httpapi.New(*addr, *token, nil)
	if err != nil {
		logger.Fatal("remote client", zap.Error(err))
	}

	s := syncer.New(st, rc, syncer.Config{
		TombstoneRetention: *retention,
		MaxParallel:        *parallel,
	}, logger)

	if err := s.Sync(ctx); err != nil {
		logger.Error("sync pass failed", zap.Error(err))
		if *interval == 0 {
			os.Exit(1)
		}
	}
	if *interval == 0 {
		return
	}

	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete")
			return
		case <-t.C:
			if err := s.Sync(ctx); err != nil {
				logger.Error("sync pass failed", zap.Error(err))
			}
		}
	}
}
