package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"schoolportal/internal/config"
	"schoolportal/internal/directory"
	"schoolportal/internal/logging"
	"schoolportal/internal/queue"
	"schoolportal/internal/recordstore"
	"schoolportal/internal/report"
	"schoolportal/internal/session"
	"schoolportal/internal/store"
)

// Worker consumes invalidation messages and keeps fee snapshots current.
// Every accepted mutation (and a periodic tick as a backstop) triggers a
// full refetch of the student collection, a summary aggregation, and one
// snapshot row in Postgres for the admin summary endpoint.
func main() {
	cfg := config.Load()

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("db connect failed", "err", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	var svc session.Session
	if cfg.TokenRedisKey != "" {
		svc = session.LoadRedis(ctx, redisClient.Client, cfg.TokenRedisKey)
	} else {
		svc = session.Load(cfg.TokenPath)
	}
	if _, ok := svc.Credential(); !ok {
		logger.Warn("no persisted record store token; snapshots will fail upstream")
	}

	client := recordstore.New(cfg.RecordStoreURL, cfg.RecordStoreTimeout)
	students := directory.New(client, svc, logger)
	reports := report.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatalw("queue consume init failed", "err", err)
	}

	ticker := time.NewTicker(cfg.SnapshotInterval)
	defer ticker.Stop()

	logger.Info("worker started, waiting for invalidations")
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			snapshot(ctx, logger, students, reports, cfg.SnapshotRetain, "tick")
		case msg, ok := <-messages:
			if !ok {
				logger.Info("worker stopped")
				return
			}
			if msg.Type != queue.TypeRecordChanged {
				continue
			}
			logger.Infow("record changed", "id", string(msg.Body))
			snapshot(ctx, logger, students, reports, cfg.SnapshotRetain, "invalidation")
		}
	}
}

func snapshot(ctx context.Context, logger *zap.SugaredLogger, students *directory.Cache, reports *report.Repository, retain int, reason string) {
	if err := students.Refresh(ctx); err != nil {
		logger.Warnw("snapshot refetch failed", "reason", reason, "err", err)
		return
	}
	s := report.Summarize(students.Students())
	if err := reports.Insert(ctx, s); err != nil {
		logger.Warnw("snapshot insert failed", "err", err)
		return
	}
	if err := reports.Prune(ctx, retain); err != nil {
		logger.Warnw("snapshot prune failed", "err", err)
	}
	logger.Infow("snapshot stored",
		"reason", reason,
		"students", s.TotalStudents,
		"active", s.ActiveStudents,
		"outstanding", s.Outstanding,
	)
}
