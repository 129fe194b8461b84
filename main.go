package main

import (
	"bitwise74/waitlist-api/app"
	"bitwise74/waitlist-api/config"
	"bitwise74/waitlist-api/db"
	"bitwise74/waitlist-api/internal"
	"bitwise74/waitlist-api/internal/service"
	"bitwise74/waitlist-api/internal/store"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Setup()
	if err != nil {
		panic(err)
	}

	if err := app.SetupLogger(cfg.LogLevel); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.Database)
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}

	users := store.NewUsers(database)

	cacheStore, err := app.NewCacheStore(ctx, cfg.Redis)
	if err != nil {
		zap.L().Fatal("Failed to set up response cache", zap.Error(err))
	}

	router, err := app.NewRouter(&internal.Deps{
		DB:       database,
		Config:   cfg,
		Waitlist: service.NewWaitlist(users),
		Cache:    cacheStore,
	})
	if err != nil {
		zap.L().Fatal("Failed to build router", zap.Error(err))
	}

	scheduler, err := app.StartJobs(ctx, cfg, users)
	if err != nil {
		zap.L().Fatal("Failed to start background jobs", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Host.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Server starting", zap.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Failed to shut down server cleanly", zap.Error(err))
	}

	scheduler.Stop(shutdownCtx)
	zap.L().Sync()
}
