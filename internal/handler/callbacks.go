package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"chat-purge/internal/logger"
	"chat-purge/internal/models"
)

// HandleCallbackQuery processes callback queries from inline keyboards
func (h *Handler) HandleCallbackQuery(ctx context.Context, query telego.CallbackQuery) error {
	if query.Data == "" {
		return nil
	}

	logger.Debugf("Received callback query: %s", query.Data)

	if strings.HasPrefix(query.Data, "purge:") {
		return h.handlePurgeCallback(ctx, query)
	}
	return nil
}

func (h *Handler) handlePurgeCallback(ctx context.Context, query telego.CallbackQuery) error {
	lang := userLanguage(&query.From)

	action, requester, opID, err := parseCallbackData(query.Data)
	if err != nil {
		logger.Warningf("Invalid callback data in purge callback: %s", query.Data)
		return nil
	}

	// only the user who ran /purge may confirm or cancel it
	if requester != requesterID(&query.From) {
		return h.alert(ctx, query.ID, models.GetTranslation(lang, "not_your_request"))
	}

	var chatID int64
	var messageID int
	if query.Message != nil {
		chatID = query.Message.GetChat().ID
		messageID = query.Message.GetMessageID()
	}

	switch action {
	case "confirm":
		d, err := h.purger.Claim(requester, opID)
		if err != nil {
			// the message may belong to a purge that is still running, leave it alone
			return h.alert(ctx, query.ID, h.describeError(lang, err, errorContext{}))
		}

		started := fmt.Sprintf(models.GetTranslation(lang, "purge_started"), d.Len())
		h.answer(ctx, query.ID, started)
		if messageID == 0 {
			msg, err := h.reply(ctx, query.From.ID, started)
			if err != nil {
				logger.Warningf("Failed to report purge start to %s: %v", requester, err)
				h.startPurge(lang, requester, d, nil)
				return err
			}
			chatID, messageID = msg.Chat.ID, msg.MessageID
		} else {
			h.edit(ctx, chatID, messageID, started, nil)
		}
		h.startPurge(lang, requester, d, h.newProgressMessage(chatID, messageID))

	case "cancel":
		text := models.GetTranslation(lang, "purge_cancelled")
		if err := h.purger.CancelOperation(requester, opID); err != nil {
			return h.alert(ctx, query.ID, h.describeError(lang, err, errorContext{}))
		}
		h.answer(ctx, query.ID, text)
		if messageID != 0 {
			h.edit(ctx, chatID, messageID, text, nil)
		}

	default:
		logger.Warningf("Unknown purge callback action: %s", action)
	}
	return nil
}

func (h *Handler) alert(ctx context.Context, queryID, text string) error {
	return h.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       true,
	})
}

func (h *Handler) answer(ctx context.Context, queryID, text string) {
	err := h.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		logger.Warningf("Error answering callback query: %v", err)
	}
}
