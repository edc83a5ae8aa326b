package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"unisport-bot/internal/bot"
	"unisport-bot/internal/config"
	"unisport-bot/internal/database"
	"unisport-bot/internal/dialog"
	"unisport-bot/internal/handlers"
	"unisport-bot/internal/provider"
	"unisport-bot/pkg/logger"
)

const maxConcurrentUpdates = 16

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.S().Fatalw("failed to load config", "error", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, logger.DefaultServiceName)
	if err != nil {
		zap.S().Fatalw("failed to create logger", "error", err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	db, err := database.New(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := dialog.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	dialogs := dialog.NewStore(redisClient)

	b, err := bot.New(cfg.BotToken)
	if err != nil {
		log.Fatal("failed to create bot", zap.Error(err))
	}
	log.Info("bot authorized", zap.String("username", b.API.Self.UserName))

	registrar, err := provider.NewClient(
		&http.Client{Timeout: cfg.Provider.Timeout},
		cfg.Provider.SignupURL,
		cfg.Provider.RequestDelay,
		nil,
	)
	if err != nil {
		log.Fatal("failed to create provider client", zap.Error(err))
	}

	handler := handlers.New(b, db, dialogs, registrar, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.API.GetUpdatesChan(updateConfig)

	// Handle updates concurrently, but bounded; one slow provider exchange
	// must not stall every other chat.
	sem := semaphore.NewWeighted(maxConcurrentUpdates)

	log.Info("listening for updates")
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			b.API.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			go func(update tgbotapi.Update) {
				defer sem.Release(1)
				handler.HandleUpdate(ctx, update)
			}(update)
		}
	}
}
