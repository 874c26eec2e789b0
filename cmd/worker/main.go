package main

import (
	"context"
	"os/signal"
	"syscall"

	"livepoll/internal/config"
	"livepoll/internal/db"
	"livepoll/internal/logger"
	"livepoll/internal/pubsub"
	"livepoll/internal/queue"
	"livepoll/internal/rdb"
	"livepoll/internal/services"
	"livepoll/internal/store"

	log "github.com/sirupsen/logrus"
)

// 独立的投票 worker 进程。只运行一个实例，
// 并在 API 服务上设置 WORKER_ENABLED=false
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Database unavailable")
	}

	pool, err := rdb.NewPool(rdb.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		log.WithError(err).Fatal("Redis unavailable")
	}
	defer pool.Close()

	opts := services.WorkerOptions{Interval: cfg.VoteProcessInterval, BatchSize: cfg.VoteBatchSize}
	if cfg.ResultsInvalidateOnChange {
		// 本进程只能失效共享的 Redis 缓存
		opts.Invalidator = services.NewResultService(store.NewSessionStore(conn), store.NewResultStore(conn), rdb.NewResultsCache(pool), cfg.ResultsCacheTTL)
	}
	worker := services.NewVoteWorker(queue.New(pool), store.NewVoteStore(conn), pubsub.NewPublisher(pool), opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker.Start(ctx)
	<-ctx.Done()
	worker.Stop()
	logger.For("worker").Info("Worker exited")
}
