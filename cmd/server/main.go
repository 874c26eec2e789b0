package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"livepoll/internal/config"
	"livepoll/internal/db"
	"livepoll/internal/handlers"
	"livepoll/internal/logger"
	"livepoll/internal/models"
	"livepoll/internal/pubsub"
	"livepoll/internal/queue"
	"livepoll/internal/rdb"
	"livepoll/internal/router"
	"livepoll/internal/services"
	"livepoll/internal/store"
	"livepoll/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/mediocregopher/radix/v3"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Database unavailable")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		log.WithError(err).Fatal("Database unavailable")
	}
	defer sqlDB.Close()

	redisOpts := rdb.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	}
	pool, err := rdb.NewPool(redisOpts)
	if err != nil {
		log.WithError(err).Fatal("Redis unavailable")
	}
	defer pool.Close()
	psConn, err := rdb.NewPubSub(redisOpts)
	if err != nil {
		log.WithError(err).Fatal("Redis pubsub unavailable")
	}
	subscriber := pubsub.NewSubscriber(psConn)
	defer subscriber.Close()

	sessions := store.NewSessionStore(conn)
	votes := store.NewVoteStore(conn)
	voteQueue := queue.New(pool)
	publisher := pubsub.NewPublisher(pool)

	cache, err := newResultsCache(cfg, pool)
	if err != nil {
		log.WithError(err).Fatal("Failed to create results cache")
	}
	results := services.NewResultService(sessions, store.NewResultStore(conn), cache, cfg.ResultsCacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broadcaster := services.NewBroadcaster(subscriber, cfg.KeepAliveInterval)
	if err := broadcaster.Init(); err != nil {
		// 订阅失败不阻止启动，实时连接会按需重试
		log.WithError(err).Warn("Live updates not yet available")
	}
	broadcaster.Start(ctx)

	var worker *services.VoteWorker
	if cfg.WorkerEnabled {
		opts := services.WorkerOptions{Interval: cfg.VoteProcessInterval, BatchSize: cfg.VoteBatchSize}
		if cfg.ResultsInvalidateOnChange {
			opts.Invalidator = results
		}
		worker = services.NewVoteWorker(voteQueue, votes, publisher, opts)
		worker.Start(ctx)
	}

	r := router.New()
	router.RegisterRoutes(r, router.Handlers{
		Sessions: handlers.NewSessionHandler(services.NewSessionService(sessions, votes, voteQueue, results, publisher, cfg.JoinCodeLength)),
		Votes:    handlers.NewVoteHandler(services.NewVoteService(sessions, votes, voteQueue)),
		Results:  handlers.NewResultsHandler(results, broadcaster),
		Stream:   handlers.NewStreamHandler(results, broadcaster, cfg.StreamBufferSize),
		Health: handlers.NewHealthHandler(map[string]handlers.Check{
			"database": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
			"redis":    func(context.Context) error { return pool.Do(radix.Cmd(nil, "PING")) },
		}),
	}, router.Options{
		AdminToken:    cfg.AdminToken,
		VoteRateLimit: cfg.VoteRateLimit,
		APIRateLimit:  cfg.APIRateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.For("server").WithField("addr", cfg.Addr()).Info("livepoll server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.For("server").Info("Shutting down")

	// 先关闭实时连接，否则 Shutdown 会一直等待
	broadcaster.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.For("server").WithError(err).Error("Graceful shutdown failed")
	}
	if worker != nil {
		worker.Stop()
	}
}

func newResultsCache(cfg *config.Config, client radix.Client) (services.ResultsCache, error) {
	if cfg.ResultsCacheBackend == config.CacheBackendLocal {
		local, err := utils.NewCache[*models.SessionResults](cfg.ResultsCacheSize)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	return rdb.NewResultsCache(client), nil
}
