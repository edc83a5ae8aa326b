// The notifier is the scheduled half of the bot, meant to run once a day
// shortly before signups open: it refreshes the course catalog, picks
// today's course and notifies everyone who has not been told about it yet.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"unisport-bot/internal/bot"
	"unisport-bot/internal/config"
	"unisport-bot/internal/database"
	"unisport-bot/internal/dialog"
	"unisport-bot/internal/models"
	"unisport-bot/internal/notifier"
	"unisport-bot/internal/provider"
	"unisport-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.S().Fatalw("failed to load config", "error", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, logger.DefaultServiceName+"-notifier")
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

	httpClient := &http.Client{Timeout: cfg.Provider.Timeout}
	catalog, err := provider.NewCatalog(httpClient, cfg.Provider.ListingURL, cfg.Provider.SignupURL)
	if err != nil {
		log.Fatal("failed to create catalog", zap.Error(err))
	}
	registrar, err := provider.NewClient(httpClient, cfg.Provider.SignupURL, cfg.Provider.RequestDelay, nil)
	if err != nil {
		log.Fatal("failed to create provider client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	course, err := todaysCourse(ctx, log, db, catalog, cfg.Notifier.FetchRetries)
	if err != nil {
		log.Fatal("failed to determine today's course", zap.Error(err))
	}
	if course == nil {
		log.Info("no course today, nothing to do")
		return
	}
	log.Info("notifying about course",
		zap.Int64(logger.FieldCourseID, course.ID),
		zap.Time("start_time", course.StartTime),
	)

	scheduler := notifier.NewScheduler(db, dialogs, b, registrar, bot.IsPermanentSendError, cfg.Notifier.SendDelay, log)
	report, err := scheduler.Run(ctx, course)
	if err != nil {
		log.Fatal("notification run aborted", zap.Error(err))
	}
	log.Info("notification run finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("prompted", report.Prompted),
		zap.Int("auto_signed_up", report.AutoSignedUp),
		zap.Int("auto_failed", report.AutoFailed),
		zap.Int("skipped_busy", report.SkippedBusy),
		zap.Int("skipped_no_state", report.SkippedNoState),
		zap.Int("purged", report.Purged),
		zap.Int("send_failures", report.SendFailures),
	)
}

// todaysCourse refreshes the catalog and returns the course starting today,
// or nil. The listing fetch is retried with backoff, the site tends to be
// slow right before signups open.
func todaysCourse(ctx context.Context, log *zap.Logger, db *database.DB, catalog *provider.Catalog, retries uint64) (*models.Course, error) {
	var courses []models.Course

	base, err := retry.NewExponential(2 * time.Second)
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, retry.WithMaxRetries(retries, base), func(ctx context.Context) error {
		var skipped int
		var fetchErr error
		courses, skipped, fetchErr = catalog.Fetch(ctx)
		if fetchErr != nil {
			var connErr *provider.ConnError
			if errors.As(fetchErr, &connErr) {
				log.Warn("listing fetch failed, retrying", zap.Error(fetchErr))
				return retry.RetryableError(fetchErr)
			}
			return fetchErr
		}
		if skipped > 0 {
			log.Warn("listing contained malformed rows", zap.Int(logger.FieldSkipped, skipped))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range courses {
		if err := db.UpsertCourse(&courses[i]); err != nil {
			return nil, err
		}
	}
	log.Info("catalog refreshed", zap.Int("courses", len(courses)))

	from, to := models.ProviderDayBounds(time.Now())
	return db.CourseBetween(from, to)
}
