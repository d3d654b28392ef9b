package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chat-purge/internal/bot"
	"chat-purge/internal/cache"
	"chat-purge/internal/config"
	"chat-purge/internal/logger"
	"chat-purge/internal/platform/telegram"
	"chat-purge/internal/purge"
	"chat-purge/internal/scanner"
	"chat-purge/internal/service"
	"chat-purge/internal/storage"
)

// cliRequester owns pending selections made from the command line
const cliRequester = "purgectl"

type purgeOptions struct {
	ChannelID  string
	AuthorID   string
	Percentage int
	Yes        bool
}

// purger is the part of *service.Purger the purge command drives
type purger interface {
	Query(requesterID string, req service.QueryRequest) (service.QueryResult, error)
	Confirm(ctx context.Context, requesterID string, progress purge.ProgressFunc) (purge.Result, error)
	Cancel(requesterID string) error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logger.Level))

	if cfg.Database.Enabled {
		if err := storage.Initialize(cfg); err != nil {
			return nil, fmt.Errorf("initialize database: %w", err)
		}
	}
	return cfg, nil
}

// newPurger connects the configured platform the same way the bot does
func newPurger(cfg *config.Config) (*service.Purger, error) {
	var client telegram.BotAPI
	if cfg.Platform.Kind == config.PlatformTelegram {
		b, err := bot.NewClient(cfg.Bot.Token)
		if err != nil {
			return nil, err
		}
		if !cfg.Database.Enabled {
			logger.Warning("Database is disabled: purgectl has no journal to read Telegram history from")
		}
		client = b
	}

	p, err := service.NewPlatform(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("connect platform %s: %w", cfg.Platform.Kind, err)
	}
	return service.New(cfg, p)
}

// signalContext is cancelled on the first interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("database is not enabled in configuration")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Migrating database...")
	if err := storage.Migrate(storage.GetDB()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	// status only reads the cache file, no platform connection needed
	p := service.NewPurger(service.Options{
		Cache:   cache.NewStore(cfg.Cache.Path, cfg.Cache.MaxAge),
		History: service.NewScanHistory(),
	})
	printStatus(out, p.Status(ctx))

	if !cfg.Database.Enabled {
		fmt.Fprintln(out, "Database: disabled")
		return nil
	}

	journal := storage.NewJournalRepository(storage.GetDB())
	count, err := journal.Count(ctx)
	if err != nil {
		fmt.Fprintf(out, "❌ Journal: %v\n", err)
	} else {
		fmt.Fprintf(out, "✅ Journal: %d messages\n", count)
	}

	records, err := storage.NewScanRecordRepository(storage.GetDB()).Recent(ctx, 5)
	if err != nil {
		fmt.Fprintf(out, "❌ Scan records: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "✅ Scan records: showing %d most recent\n", len(records))
	for _, r := range records {
		fmt.Fprintf(out, "   - %s %s: %d messages, %d channels (%d skipped)\n",
			r.ScannedAt.UTC().Format(time.RFC3339), r.Platform, r.TotalMessages, r.TotalChannels, r.SkippedChannels)
	}
	return nil
}

func printStatus(out io.Writer, st service.CacheStatus) {
	if !st.Present {
		fmt.Fprintln(out, "Cache: no snapshot")
		return
	}
	fmt.Fprintf(out, "Cache: snapshot %s\n", st.SnapshotID)
	fmt.Fprintf(out, "   - scanned %s (%s ago, fresh: %t, max age %s)\n",
		st.ScannedAt.UTC().Format(time.RFC3339), st.Age.Truncate(time.Second), st.Fresh, st.MaxAge)
	fmt.Fprintf(out, "   - %d messages, %d channels, %d unique words\n", st.Messages, st.Channels, st.UniqueWords)
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPurger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	out := cmd.OutOrStdout()
	summary, err := p.Scan(ctx, func(pr scanner.Progress) {
		fmt.Fprintf(out, "\rScanning... %d/%d channels, %d messages", pr.Channels, pr.TotalChannels, pr.Messages)
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	fmt.Fprintf(out, "Scan complete: %d messages in %d channels, %d unique words (%d channels skipped)\n",
		summary.TotalMessages, summary.TotalChannels, summary.UniqueWords, summary.SkippedChannels)
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPurger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return purgeWith(ctx, p, strings.Join(args, " "), purgeFlags, cmd.InOrStdin(), cmd.OutOrStdout())
}

// purgeWith queries, asks for confirmation unless opts.Yes, and deletes
func purgeWith(ctx context.Context, p purger, text string, opts purgeOptions, in io.Reader, out io.Writer) error {
	res, err := p.Query(cliRequester, service.QueryRequest{
		SearchText:         text,
		ChannelID:          opts.ChannelID,
		CurrentChannelOnly: opts.ChannelID != "",
		TargetAuthorID:     opts.AuthorID,
		Percentage:         opts.Percentage,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Fprintf(out, "Found %d messages, %d selected (%d%%)\n", res.Found, res.Selected, res.Percentage)
	if !opts.Yes && !confirm(in, out, fmt.Sprintf("Delete %d messages? This cannot be undone. (y/N): ", res.Selected)) {
		_ = p.Cancel(cliRequester)
		return fmt.Errorf("operation cancelled by user")
	}

	result, err := p.Confirm(ctx, cliRequester, func(pr purge.Progress) {
		fmt.Fprintf(out, "\rDeleting... %d deleted, %d failed, %d total", pr.Deleted, pr.Failed, pr.Total)
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	fmt.Fprintf(out, "Purge finished: %d deleted, %d failed\n", result.Deleted, result.Failed)
	for ch, chErr := range result.ChannelErrors {
		fmt.Fprintf(out, "   - channel %s: %v\n", ch, chErr)
	}
	return nil
}

// confirm asks a y/N question; anything but y or yes is a no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
