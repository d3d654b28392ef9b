package handler

import (
	"context"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"chat-purge/internal/config"
	"chat-purge/internal/logger"
	"chat-purge/internal/service"
)

// BotAPI is the part of *telego.Bot the handlers call
type BotAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// MessageRecorder journals group messages for later scans
type MessageRecorder interface {
	Record(ctx context.Context, msg *telego.Message) error
}

// defaultProgressInterval limits how often a progress message is edited
const defaultProgressInterval = 3 * time.Second

type Handler struct {
	bot      BotAPI
	purger   *service.Purger
	recorder MessageRecorder

	adminOnly        bool
	progressInterval time.Duration

	// base outlives single updates; scans and purges run on it
	base context.Context
	wg   sync.WaitGroup
}

// New creates the bot handlers. recorder may be nil when the platform keeps
// its own history.
func New(ctx context.Context, bot BotAPI, purger *service.Purger, recorder MessageRecorder, cfg *config.Config) *Handler {
	return &Handler{
		bot:              bot,
		purger:           purger,
		recorder:         recorder,
		adminOnly:        cfg.Bot.AdminOnly,
		progressInterval: defaultProgressInterval,
		base:             ctx,
	}
}

// SetupMessageHandlers configures all bot message and update handlers
func (h *Handler) SetupMessageHandlers(bh *th.BotHandler) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		return h.HandleMessage(ctx.Context(), message)
	})

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		return h.record(ctx.Context(), update.EditedMessage)
	}, th.AnyEditedMessage())

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		return h.HandleCallbackQuery(ctx.Context(), query)
	})
}

// HandleMessage dispatches commands and journals everything else
func (h *Handler) HandleMessage(ctx context.Context, message telego.Message) error {
	if ok, err := h.handleCommand(ctx, message); ok {
		return err
	}
	return h.record(ctx, &message)
}

func (h *Handler) record(ctx context.Context, message *telego.Message) error {
	if h.recorder == nil || message == nil || message.Chat.Type == telego.ChatTypePrivate {
		return nil
	}
	if message.From != nil && message.From.IsBot {
		return nil
	}
	if err := h.recorder.Record(ctx, message); err != nil {
		logger.Warningf("Failed to journal message %d in chat %d: %v", message.MessageID, message.Chat.ID, err)
	}
	return nil
}

// WaitForHandlers blocks until background scans and purges have finished
func (h *Handler) WaitForHandlers() {
	h.wg.Wait()
}
