package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"voicetask-service/internal/config"
	"voicetask-service/internal/handler"
	"voicetask-service/internal/httpserver"
	"voicetask-service/internal/repository"
	"voicetask-service/internal/service/capture"
	"voicetask-service/internal/service/extract"
	"voicetask-service/internal/service/notify"
	"voicetask-service/internal/service/reminder"
	"voicetask-service/internal/store"
	"voicetask-service/pkg/db"
	"voicetask-service/pkg/logger"
	"voicetask-service/pkg/mq"
	"voicetask-service/pkg/redis"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting voicetask-service...",
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("notification_channel", cfg.Notification.Channel),
		zap.Duration("reminder_interval", cfg.Reminder.Interval()),
	)

	// Task blob repository
	taskRepo := newTaskRepository(cfg, log)

	st := store.NewStore(taskRepo, log)
	if err := st.Load(context.Background()); err != nil {
		log.Fatal("Failed to load task list", zap.Error(err))
	}

	// Reminder delivery log (optional)
	var reminderLog *repository.ReminderLogRepository
	if cfg.DB.Enabled {
		dbConn, err := db.NewConnection(cfg.DB, log)
		if err != nil {
			log.Error("Reminder log database unavailable, continuing without it", zap.Error(err))
		} else {
			defer dbConn.Close()
			reminderLog = repository.NewReminderLogRepository(dbConn, log)
			if err := reminderLog.EnsureSchema(context.Background()); err != nil {
				log.Error("Failed to ensure reminder_log schema, continuing without it", zap.Error(err))
				reminderLog = nil
			}
		}
	}

	// Notification channel, decided once at startup
	sender, publisher := newSender(cfg, log)
	if publisher != nil {
		defer publisher.Close()
	}

	// Extraction client + capture pipeline
	extractor := extract.NewClient(
		cfg.Extraction.BaseURL,
		cfg.Extraction.APIKey,
		cfg.Extraction.Model,
		cfg.Extraction.Timeout(),
	)
	captureSvc := capture.NewService(st, extractor, log)

	// Reminder engine
	log.Info("Starting reminder engine...")
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()

	engine := reminder.NewEngine(st, sender, reminderLog, cfg.Reminder.Interval(), log)
	go engine.Run(engineCtx)

	// HTTP server
	taskHandler := handler.NewTaskHandler(st, captureSvc, log)
	router := httpserver.NewRouter(taskHandler, log, st, publisher)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("voicetask-service is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down voicetask-service gracefully...")

	engineCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("voicetask-service shutdown complete")
}

func newTaskRepository(cfg *config.Config, log *zap.Logger) repository.TaskRepository {
	switch cfg.Store.Backend {
	case "redis":
		rdb := redis.NewRedisClient(cfg.Store.Redis)
		return repository.NewRedisTaskRepository(rdb, cfg.Store.Key, log)
	case "memory":
		return repository.NewMemoryTaskRepository()
	default:
		repo, err := repository.NewFileTaskRepository(cfg.Store.File)
		if err != nil {
			log.Fatal("Failed to init file task repository", zap.Error(err))
		}
		return repo
	}
}

func newSender(cfg *config.Config, log *zap.Logger) (notify.Sender, *mq.Publisher) {
	switch cfg.Notification.Channel {
	case notify.ChannelWebhook:
		return notify.NewWebhookSender(cfg.Notification.WebhookURL, log), nil
	case notify.ChannelMQ:
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		return notify.NewMQSender(publisher), publisher
	case notify.ChannelNone:
		return notify.NopSender{}, nil
	default:
		return notify.NewLogSender(log), nil
	}
}
