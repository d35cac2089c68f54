package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"creditflow/application"
	"creditflow/approval"
	"creditflow/auth"
	"creditflow/config"
	"creditflow/db"
	"creditflow/httpapi"
	"creditflow/logging"
	"creditflow/notify"
	"creditflow/rejection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap database pool")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	broker := notify.NewRedisBroker(redisClient, log)

	repo := application.NewRepository(pool)
	statuses := application.NewStatusService(pool, repo, broker)
	approvals := approval.NewEngine(pool, repo, broker)
	rejections := rejection.NewManager(pool, repo, broker)
	authSvc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)

	sweeper := approval.NewSweeper(approvals, repo, cfg.SweepInterval, log)
	go sweeper.Run(ctx)

	server := httpapi.NewServer(statuses, approvals, rejections, authSvc, log)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown http server")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("api listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server")
	}
	log.Info().Msg("api stopped")
}
