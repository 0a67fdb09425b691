package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/adilbekov/ridepool/internal/booking"
	"github.com/adilbekov/ridepool/internal/config"
	"github.com/adilbekov/ridepool/internal/database"
	"github.com/adilbekov/ridepool/internal/handler"
	"github.com/adilbekov/ridepool/internal/logger"
	"github.com/adilbekov/ridepool/internal/middleware"
	"github.com/adilbekov/ridepool/internal/queue"
	"github.com/adilbekov/ridepool/internal/repository"
	"github.com/adilbekov/ridepool/internal/router"
	queuepub "github.com/adilbekov/ridepool/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()
	log := logger.New("ridepool", cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("cannot connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional: when unreachable, caching and rate limiting
	// degrade to pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, cache and rate limiting disabled")
	}

	rides := repository.NewRideRepo(db)
	locks := repository.NewSeatLockRepo(db)
	bookings := repository.NewBookingRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	store := repository.NewSQLStore(db, rides, locks, bookings, users)

	var events booking.Events = booking.NopEvents{}
	if cfg.AMQPURL != "" {
		events = queuepub.NewEmitter(cfg.AMQPURL, log)
	} else {
		log.Warn("AMQP_URL not set, event publishing disabled")
	}

	svc := booking.NewService(store, events, time.Duration(cfg.HoldTTLSec)*time.Second, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaper := booking.NewReaper(svc, time.Duration(cfg.ReapIntervalSec)*time.Second, log)
	go reaper.Run(ctx)

	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartConsumers(cfg.AMQPURL); err != nil {
				log.Error("queue consumers stopped", "error", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	authH := handler.NewAuthHandler(cfg, users, tokens)
	rideH := handler.NewRideHandler(svc)
	bookingH := handler.NewBookingHandler(svc, bookings)
	searchH := handler.NewSearchHandler(rides)

	searchCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, rideH, searchH, searchCache)
	router.RegisterDriver(e, rideH, bookingH, cfg.JWTSecret)
	router.RegisterRider(e, bookingH, cfg.JWTSecret, nil)

	go func() {
		addr := ":" + cfg.Port
		log.Info("starting server", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
