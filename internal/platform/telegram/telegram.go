// Package telegram adapts the Bot API to the purge platform interfaces. Bots
// cannot fetch chat history, so history comes from the message journal the
// bot keeps while it is a member of a group.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"chat-purge/internal/logger"
	"chat-purge/internal/models"
	"chat-purge/internal/platform"
	"chat-purge/internal/storage"
)

const Name = "telegram"

// BotAPI is the part of *telego.Bot the platform calls
type BotAPI interface {
	GetChat(ctx context.Context, params *telego.GetChatParams) (*telego.ChatFullInfo, error)
	DeleteMessages(ctx context.Context, params *telego.DeleteMessagesParams) error
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
}

type Platform struct {
	bot     BotAPI
	journal storage.Journal
	limiter *rate.Limiter
}

// New paces every Bot API call at apiRate requests per second
func New(bot BotAPI, journal storage.Journal, apiRate float64, burst int) *Platform {
	limit := rate.Inf
	if apiRate > 0 {
		limit = rate.Limit(apiRate)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Platform{
		bot:     bot,
		journal: journal,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (p *Platform) Name() string {
	return Name
}

// Record journals a group message. Messages without text or caption are skipped.
func (p *Platform) Record(ctx context.Context, msg *telego.Message) error {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return nil
	}

	entry := &models.JournalMessage{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      text,
		SentAt:    time.Unix(msg.Date, 0).UTC(),
	}
	if msg.From != nil {
		entry.AuthorID = msg.From.ID
	}
	return p.journal.Record(ctx, entry)
}

// Channels lists every chat with journaled messages
func (p *Platform) Channels(ctx context.Context) ([]platform.Channel, error) {
	ids, err := p.journal.Chats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list journaled chats: %w", err)
	}

	channels := make([]platform.Channel, len(ids))
	for i, id := range ids {
		s := strconv.FormatInt(id, 10)
		channels[i] = platform.Channel{ID: s, Name: s}
	}
	return channels, nil
}

// History verifies the bot can still see the chat, then replays its journal
func (p *Platform) History(ctx context.Context, ch platform.Channel, fn func(platform.HistoryMessage) error) error {
	chatID, err := strconv.ParseInt(ch.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", ch.ID, err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	info, err := p.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(chatID)})
	if err != nil {
		return fmt.Errorf("get chat %d: %w", chatID, mapError(err))
	}
	if info.Title != "" {
		logger.Debugf("Reading journal of %s (%d)", info.Title, chatID)
	}

	return p.journal.Each(ctx, chatID, func(m models.JournalMessage) error {
		return fn(platform.HistoryMessage{
			ID:        strconv.Itoa(m.MessageID),
			AuthorID:  strconv.FormatInt(m.AuthorID, 10),
			Content:   m.Text,
			Timestamp: m.SentAt,
		})
	})
}

func (p *Platform) DeleteBatch(ctx context.Context, channelID string, messageIDs []string) error {
	chatID, ids, err := parseIDs(channelID, messageIDs)
	if err != nil {
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	err = p.bot.DeleteMessages(ctx, &telego.DeleteMessagesParams{
		ChatID:     tu.ID(chatID),
		MessageIDs: ids,
	})
	if err != nil {
		return fmt.Errorf("delete %d messages in %d: %w", len(ids), chatID, mapError(err))
	}
	p.forget(ctx, chatID, ids)
	return nil
}

func (p *Platform) DeleteOne(ctx context.Context, channelID string, messageID string) error {
	chatID, ids, err := parseIDs(channelID, []string{messageID})
	if err != nil {
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	err = p.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: ids[0],
	})
	if err != nil {
		return fmt.Errorf("delete message %d in %d: %w", ids[0], chatID, mapError(err))
	}
	p.forget(ctx, chatID, ids)
	return nil
}

// forget drops deleted messages from the journal so the next scan does not see them
func (p *Platform) forget(ctx context.Context, chatID int64, ids []int) {
	if err := p.journal.Remove(ctx, chatID, ids); err != nil {
		logger.Warningf("Failed to remove %d deleted messages of %d from journal: %v", len(ids), chatID, err)
	}
}

func parseIDs(channelID string, messageIDs []string) (int64, []int, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid chat id %q: %w", channelID, err)
	}
	ids := make([]int, len(messageIDs))
	for i, s := range messageIDs {
		if ids[i], err = strconv.Atoi(s); err != nil {
			return 0, nil, fmt.Errorf("invalid message id %q: %w", s, err)
		}
	}
	return chatID, ids, nil
}

var deniedDescriptions = []string{
	"not enough rights",
	"need administrator rights",
	"bot was kicked",
	"chat not found",
}

// mapError marks permission failures with platform.ErrAccessDenied
func mapError(err error) error {
	var apiErr *ta.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.ErrorCode == 403 {
		return fmt.Errorf("%w: %s", platform.ErrAccessDenied, apiErr.Description)
	}
	desc := strings.ToLower(apiErr.Description)
	for _, d := range deniedDescriptions {
		if strings.Contains(desc, d) {
			return fmt.Errorf("%w: %s", platform.ErrAccessDenied, apiErr.Description)
		}
	}
	return err
}
