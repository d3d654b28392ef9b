package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"chat-purge/internal/cache"
	"chat-purge/internal/crash"
	"chat-purge/internal/logger"
	"chat-purge/internal/models"
	"chat-purge/internal/pending"
	"chat-purge/internal/purge"
	"chat-purge/internal/query"
	"chat-purge/internal/scanner"
	"chat-purge/internal/service"
)

// handleCommand runs a bot command. It reports false if the message is not a command.
func (h *Handler) handleCommand(ctx context.Context, message telego.Message) (bool, error) {
	cmd, args := splitCommand(message.Text)
	if cmd == "" {
		return false, nil
	}

	var run func(context.Context, telego.Message, []string) error
	switch cmd {
	case "help", "start":
		return true, h.sendHelpMessage(ctx, message)
	case "scan":
		run = h.handleScanCommand
	case "purge":
		run = h.handlePurgeCommand
	case "purge_confirm":
		run = h.handleConfirmCommand
	case "purge_cancel":
		run = h.handleCancelCommand
	case "cache_status":
		run = h.handleCacheStatusCommand
	default:
		return false, nil
	}

	if !h.authorized(ctx, message.Chat, message.From) {
		_, err := h.reply(ctx, message.Chat.ID, models.GetTranslation(userLanguage(message.From), "user_not_admin"))
		return true, err
	}
	return true, run(ctx, message, args)
}

func (h *Handler) sendHelpMessage(ctx context.Context, message telego.Message) error {
	_, err := h.reply(ctx, message.Chat.ID, models.GetTranslation(userLanguage(message.From), "help_text"))
	return err
}

// background runs fn detached from the update, reporting a panic through onPanic
func (h *Handler) background(name string, fn func(), onPanic func()) {
	h.wg.Add(1)
	crash.SafeGoroutineWithHandler(name, func() {
		fn()
		h.wg.Done()
	}, func(interface{}) {
		defer h.wg.Done()
		onPanic()
	})
}

func (h *Handler) handleScanCommand(ctx context.Context, message telego.Message, _ []string) error {
	lang := userLanguage(message.From)
	status, err := h.reply(ctx, message.Chat.ID, models.GetTranslation(lang, "scan_started"))
	if err != nil {
		return err
	}

	progress := h.newProgressMessage(status.Chat.ID, status.MessageID)
	h.background(fmt.Sprintf("scan-%d", message.Chat.ID), func() {
		summary, err := h.purger.Scan(h.base, func(p scanner.Progress) {
			progress.update(fmt.Sprintf(models.GetTranslation(lang, "scan_progress"), p.Channels, p.TotalChannels, p.Messages))
		})
		if err != nil {
			logger.Warningf("Scan requested by %s failed: %v", requesterID(message.From), err)
			progress.finish(h.describeError(lang, err, errorContext{}))
			return
		}
		progress.finish(fmt.Sprintf(models.GetTranslation(lang, "scan_done"),
			summary.TotalMessages, summary.TotalChannels, summary.UniqueWords, summary.SkippedChannels))
	}, func() {
		progress.finish(fmt.Sprintf(models.GetTranslation(lang, "scan_failed"), "internal error"))
	})
	return nil
}

func (h *Handler) handlePurgeCommand(ctx context.Context, message telego.Message, args []string) error {
	lang := userLanguage(message.From)
	parsed, err := parsePurgeArgs(args)
	if err != nil {
		var text string
		switch {
		case errors.Is(err, errUsage):
			text = models.GetTranslation(lang, "purge_usage")
		case errors.Is(err, errPercent):
			text = models.GetTranslation(lang, "invalid_percent")
		default:
			text = h.describeError(lang, err, errorContext{})
		}
		_, err = h.reply(ctx, message.Chat.ID, text)
		return err
	}

	// replying to someone's message targets that user
	if parsed.UserID == "" && message.ReplyToMessage != nil && message.ReplyToMessage.From != nil {
		parsed.UserID = strconv.FormatInt(message.ReplyToMessage.From.ID, 10)
	}

	requester := requesterID(message.From)
	res, err := h.purger.Query(requester, service.QueryRequest{
		SearchText:         parsed.Text,
		ChannelID:          strconv.FormatInt(message.Chat.ID, 10),
		CurrentChannelOnly: parsed.Here,
		TargetAuthorID:     parsed.UserID,
		Percentage:         parsed.Percentage,
	})
	if err != nil {
		_, err = h.reply(ctx, message.Chat.ID, h.describeError(lang, err, errorContext{
			text: parsed.Text, found: res.Found, percentage: res.Percentage,
		}))
		return err
	}

	text := fmt.Sprintf(models.GetTranslation(lang, "purge_found"),
		res.Found, html.EscapeString(parsed.Text), res.Selected, formatDuration(h.purger.PendingTTL()))
	_, err = h.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      tu.ID(message.Chat.ID),
		Text:        text,
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: confirmKeyboard(lang, requester, res.OperationID),
	})
	return err
}

// confirmKeyboard's buttons name the request they were shown for
func confirmKeyboard(lang, requester, opID string) *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{InlineKeyboard: [][]telego.InlineKeyboardButton{{
		{Text: models.GetTranslation(lang, "button_confirm"), CallbackData: callbackData("confirm", requester, opID)},
		{Text: models.GetTranslation(lang, "button_cancel"), CallbackData: callbackData("cancel", requester, opID)},
	}}}
}

func (h *Handler) handleConfirmCommand(ctx context.Context, message telego.Message, _ []string) error {
	lang := userLanguage(message.From)
	requester := requesterID(message.From)

	// claimed before replying, so a repeated confirm finds nothing pending
	d, err := h.purger.Claim(requester, "")
	if err != nil {
		_, err = h.reply(ctx, message.Chat.ID, h.describeError(lang, err, errorContext{}))
		return err
	}

	status, err := h.reply(ctx, message.Chat.ID, fmt.Sprintf(models.GetTranslation(lang, "purge_started"), d.Len()))
	if err != nil {
		logger.Warningf("Failed to report purge start to %s: %v", requester, err)
		h.startPurge(lang, requester, d, nil)
		return err
	}
	h.startPurge(lang, requester, d, h.newProgressMessage(status.Chat.ID, status.MessageID))
	return nil
}

// startPurge runs a claimed deletion in the background. progress may be nil
// when there is no status message to edit.
func (h *Handler) startPurge(lang, requester string, d *service.Deletion, progress *progressMessage) {
	h.background("purge-"+requester, func() {
		res := d.Run(h.base, func(p purge.Progress) {
			if progress != nil {
				progress.update(fmt.Sprintf(models.GetTranslation(lang, "purge_progress"), p.Deleted, p.Failed, p.Total))
			}
		})
		if progress != nil {
			progress.finish(fmt.Sprintf(models.GetTranslation(lang, "purge_done"), res.Deleted, res.Failed))
		}
	}, func() {
		if progress != nil {
			progress.finish(models.GetTranslation(lang, "purge_interrupted"))
		}
	})
}

func (h *Handler) handleCancelCommand(ctx context.Context, message telego.Message, _ []string) error {
	lang := userLanguage(message.From)
	key := "purge_cancelled"
	if err := h.purger.Cancel(requesterID(message.From)); err != nil {
		key = "no_pending"
	}
	_, err := h.reply(ctx, message.Chat.ID, models.GetTranslation(lang, key))
	return err
}

func (h *Handler) handleCacheStatusCommand(ctx context.Context, message telego.Message, _ []string) error {
	lang := userLanguage(message.From)
	_, err := h.reply(ctx, message.Chat.ID, formatStatus(lang, h.purger.Status(ctx)))
	return err
}

func formatStatus(lang string, st service.CacheStatus) string {
	if !st.Present {
		return models.GetTranslation(lang, "cache_status_none")
	}
	fresh := models.GetTranslation(lang, "no")
	if st.Fresh {
		fresh = models.GetTranslation(lang, "yes")
	}
	return fmt.Sprintf(models.GetTranslation(lang, "cache_status"),
		st.SnapshotID,
		st.ScannedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		formatDuration(st.Age),
		fresh,
		st.Messages, st.Channels, st.UniqueWords)
}

// errorContext carries what some error messages mention
type errorContext struct {
	text       string
	found      int
	percentage int
}

// describeError turns a purge error into a message for the user
func (h *Handler) describeError(lang string, err error, ec errorContext) string {
	switch {
	case errors.Is(err, cache.ErrCacheMissingOrCorrupt):
		return models.GetTranslation(lang, "cache_missing")
	case errors.Is(err, cache.ErrCacheStale):
		return fmt.Sprintf(models.GetTranslation(lang, "cache_stale"), formatDuration(h.purger.CacheMaxAge()))
	case errors.Is(err, query.ErrInvalidQuery):
		return models.GetTranslation(lang, "invalid_query")
	case errors.Is(err, query.ErrNoMatches):
		return fmt.Sprintf(models.GetTranslation(lang, "no_matches"), html.EscapeString(ec.text))
	case errors.Is(err, service.ErrInvalidPercentage):
		return models.GetTranslation(lang, "invalid_percent")
	case errors.Is(err, service.ErrNothingSelected):
		return fmt.Sprintf(models.GetTranslation(lang, "nothing_selected"), ec.found, ec.percentage)
	case errors.Is(err, service.ErrScanInProgress):
		return models.GetTranslation(lang, "scan_in_progress")
	case errors.Is(err, pending.ErrNoPendingOperation):
		return models.GetTranslation(lang, "no_pending")
	case errors.Is(err, pending.ErrExpired):
		return models.GetTranslation(lang, "pending_expired")
	case errors.Is(err, pending.ErrReplaced):
		return models.GetTranslation(lang, "pending_replaced")
	default:
		return fmt.Sprintf(models.GetTranslation(lang, "operation_failed"), html.EscapeString(err.Error()))
	}
}
