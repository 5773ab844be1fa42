package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polling-system-backend/auth"
	"polling-system-backend/cache"
	"polling-system-backend/config"
	"polling-system-backend/database"
	"polling-system-backend/realtime"
	"polling-system-backend/routes"
	"polling-system-backend/vote"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.Load()
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Init(cfg)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close(db)

	// Redis is an accelerator, not a dependency: without it the projection
	// cache always misses and the sweep lock runs unguarded.
	var redisClient *redis.Client
	if client, err := cache.NewClient(cfg.RedisAddr(), cfg.RedisPassword()); err != nil {
		log.Printf("redis unavailable, continuing without cache: %v", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	hub := realtime.NewHub()
	go hub.Run()

	tokens := auth.NewService(cfg.JWTSecret(), cfg.TokenTTL())
	results := cache.NewProjectionCache(redisClient)
	rt := realtime.NewService(hub, results)
	votes := vote.NewProcessor(db, rt)
	locker := cache.NewLocker(redisClient)

	deps := routes.Deps{
		DB:      db,
		Tokens:  tokens,
		Hub:     hub,
		RT:      rt,
		Votes:   votes,
		Results: results,
		Locker:  locker,
	}

	stopSweep := make(chan struct{})
	go routes.StartSweeper(deps, sweepInterval, stopSweep)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort(),
		Handler: routes.SetupRouter(deps),
	}

	go func() {
		log.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	close(stopSweep)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	hub.Shutdown()
	log.Println("server stopped")
}
