package service

import (
	"fmt"

	"chat-purge/internal/cache"
	"chat-purge/internal/config"
	"chat-purge/internal/logger"
	"chat-purge/internal/metrics"
	"chat-purge/internal/pending"
	"chat-purge/internal/platform"
	"chat-purge/internal/platform/discord"
	"chat-purge/internal/platform/telegram"
	"chat-purge/internal/purge"
	"chat-purge/internal/scanner"
	"chat-purge/internal/storage"
)

// SchedulerOptions converts the purge settings into scheduler options
func SchedulerOptions(cfg config.PurgeConfig) purge.Options {
	return purge.Options{
		BatchMaxAge:         cfg.BatchMaxAge,
		BatchSize:           cfg.BatchSize,
		BatchPause:          cfg.BatchPause,
		SinglePause:         cfg.SinglePause,
		SinglePauseEvery:    cfg.SinglePauseEvery,
		ProgressEverySingle: cfg.ProgressEverySingle,
	}
}

// NewScanHistory returns the database-backed scan history when the database
// is connected, and an in-memory one otherwise.
func NewScanHistory() storage.ScanHistory {
	if storage.DB == nil {
		return storage.NewMemoryScanHistory()
	}
	repo := storage.NewScanRecordRepository(storage.DB)
	if err := repo.MigrateTable(); err != nil {
		logger.Warningf("Error migrating ScanRecord table: %v", err)
	}
	return repo
}

// NewJournal returns the database-backed journal when the database is
// connected, and an in-memory one otherwise.
func NewJournal() storage.Journal {
	if storage.DB == nil {
		logger.Warningf("Database is disabled, the message journal will not survive a restart")
		return storage.NewMemoryJournal()
	}
	repo := storage.NewJournalRepository(storage.DB)
	if err := repo.MigrateTable(); err != nil {
		logger.Warningf("Error migrating journal table: %v", err)
	}
	return repo
}

// New builds a Purger for p from configuration
func New(cfg *config.Config, p platform.Platform) (*Purger, error) {
	if p == nil {
		return nil, fmt.Errorf("no platform configured")
	}

	scheduler := purge.NewScheduler(p, SchedulerOptions(cfg.Purge))
	scheduler.OnDeletion = metrics.ObserveDeletion

	purger := NewPurger(Options{
		Platform:  p,
		Cache:     cache.NewStore(cfg.Cache.Path, cfg.Cache.MaxAge),
		Pending:   pending.NewStore(cfg.Purge.PendingTTL),
		Scanner:   scanner.New(p, cfg.Purge.ScanProgressEvery),
		Scheduler: scheduler,
		History:   NewScanHistory(),
	})

	if snap, err := purger.cache.Load(); err == nil {
		metrics.SnapshotMessages.Set(float64(snap.Len()))
	} else {
		logger.Infof("No usable message cache yet, run a scan first: %v", err)
	}
	return purger, nil
}

// NewPlatform connects the configured chat platform. bot is used for the
// telegram platform and may be nil for discord.
func NewPlatform(cfg *config.Config, bot telegram.BotAPI) (platform.Platform, error) {
	switch cfg.Platform.Kind {
	case config.PlatformDiscord:
		p, err := discord.Open(cfg.Platform.Discord.Token, cfg.Platform.Discord.GuildID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.PlatformTelegram:
		if bot == nil {
			return nil, fmt.Errorf("telegram platform requires a bot")
		}
		return telegram.New(bot, NewJournal(), cfg.Platform.Telegram.APIRate, cfg.Platform.Telegram.APIBurst), nil
	default:
		return nil, fmt.Errorf("unknown platform kind: %q", cfg.Platform.Kind)
	}
}
