package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/social_messaging/configs"
	"github.com/anjiri1684/social_messaging/database"
	"github.com/anjiri1684/social_messaging/handlers"
	"github.com/anjiri1684/social_messaging/jobs"
	"github.com/anjiri1684/social_messaging/logger"
	"github.com/anjiri1684/social_messaging/routes"
	"github.com/anjiri1684/social_messaging/services"
	"github.com/anjiri1684/social_messaging/uploads"
	"github.com/anjiri1684/social_messaging/websocket"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped with error")
	}
	log.Info("Server stopped")
}

func run(cfg *config.Settings, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	log.Info("Database connection established")

	if cfg.SeedDemoData {
		if err := database.SeedDemoData(db, logger.Component(log, "seed")); err != nil {
			return err
		}
	}

	uploader, err := uploads.New(cfg)
	if err != nil {
		return err
	}
	if _, disabled := uploader.(uploads.Disabled); disabled {
		log.Warn("File storage is disabled, messages with attachments will be rejected")
	}

	hub := websocket.NewHub(cfg.HubBufferSize, logger.Component(log, "hub"))
	outbox := services.NewOutbox(db, hub, logger.Component(log, "outbox"), services.OutboxOptions{
		MaxAttempts: cfg.OutboxMaxAttempts,
		RelayDelay:  cfg.OutboxRelayDelay,
	})
	directory := services.NewDirectory(db)
	messaging := services.NewMessagingService(services.MessagingDeps{
		DB:         db,
		Identities: directory,
		Friends:    directory,
		Groups:     directory,
		Uploader:   uploader,
		Outbox:     outbox,
		Log:        logger.Component(log, "messaging"),
	})
	notifications := services.NewNotificationService(db)

	scheduler := cron.New()
	relay := jobs.RelayOutbox(outbox, cfg.OutboxBatchSize, time.Minute, logger.Component(log, "outbox-relay"))
	if _, err := jobs.Schedule(scheduler, cfg.OutboxRelaySchedule, relay, logger.Component(log, "cron")); err != nil {
		return fmt.Errorf("invalid OUTBOX_RELAY_SCHEDULE: %w", err)
	}

	httpLog := logger.Component(log, "http")
	app := routes.NewApp(cfg.CORSAllowOrigins, httpLog)
	routes.PublicRoutes(app)
	routes.MessagingRoutes(app, cfg.JWTSecret,
		handlers.NewMessageHandler(messaging),
		handlers.NewNotificationHandler(notifications),
	)
	routes.RealtimeRoutes(app, handlers.NewRealtimeHandler(hub, cfg.JWTSecret, logger.Component(log, "ws")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Port)
		httpLog.WithField("addr", addr).Info("Server is running")
		if err := app.Listen(addr); err != nil {
			return err
		}
		return errors.New("server closed unexpectedly")
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		// shutdown was requested; the listener error is expected
		return nil
	}
	return err
}
