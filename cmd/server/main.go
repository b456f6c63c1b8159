// Command server is the entry point of the booking API.
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

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/config"
	"github.com/iliyamo/study-space-booking/internal/database"
	"github.com/iliyamo/study-space-booking/internal/notify"
	"github.com/iliyamo/study-space-booking/internal/queue"
	"github.com/iliyamo/study-space-booking/internal/repository"
	"github.com/iliyamo/study-space-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment may be set already

	cfg := config.Load()
	policy := config.LoadPolicy()
	qcfg := config.LoadQueueConfig()

	logger := logrus.New()
	if cfg.Env == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	store := repository.NewStore(db, cfg.DBLockTimeout)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	var pub notify.Publisher = notify.LogPublisher{Log: logger}
	if qcfg.URL != "" {
		amqpPub := notify.NewAMQPPublisher(qcfg.URL)
		defer amqpPub.Close()
		pub = amqpPub
	}
	dispatcher := notify.NewDispatcher(store, pub, qcfg.Buffer, qcfg.Timeout, logger)

	svc := booking.NewService(store, policy,
		booking.WithNotifier(dispatcher),
		booking.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if qcfg.URL != "" && qcfg.Consume {
		go func() {
			if err := queue.StartBookingConsumer(ctx, qcfg.URL, qcfg.LogPath, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("booking consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	router.RegisterRoutes(e, router.Deps{
		Booking:   svc,
		JWTSecret: cfg.JWTSecret,
		DB:        db,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Log:       logger,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "db": cfg.DBDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("pending notifications dropped")
	}
}
