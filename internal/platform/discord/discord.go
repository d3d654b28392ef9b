// Package discord reads guild history and deletes messages over Discord's REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"chat-purge/internal/logger"
	"chat-purge/internal/platform"
)

const (
	Name = "discord"

	// pageSize is the most messages one history request returns
	pageSize = 100
)

// Session is the part of *discordgo.Session the platform calls
type Session interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

type Platform struct {
	session Session
	guildID string
}

// Open creates a REST-only session for a bot token. No gateway connection is made.
func Open(token, guildID string) (*Platform, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return New(session, guildID), nil
}

func New(session Session, guildID string) *Platform {
	return &Platform{session: session, guildID: guildID}
}

func (p *Platform) Name() string {
	return Name
}

func scannable(ch *discordgo.Channel) bool {
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return true
	}
	return false
}

// Channels lists the guild's text and announcement channels
func (p *Platform) Channels(ctx context.Context) ([]platform.Channel, error) {
	all, err := p.session.GuildChannels(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list channels of guild %s: %w", p.guildID, mapError(err))
	}

	var channels []platform.Channel
	for _, ch := range all {
		if scannable(ch) {
			channels = append(channels, platform.Channel{ID: ch.ID, Name: ch.Name})
		}
	}
	return channels, nil
}

// History pages backwards from the newest message until the channel is exhausted
func (p *Platform) History(ctx context.Context, ch platform.Channel, fn func(platform.HistoryMessage) error) error {
	before := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := p.session.ChannelMessages(ch.ID, pageSize, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to read history of %s: %w", ch.Name, mapError(err))
		}

		for _, m := range page {
			msg := platform.HistoryMessage{
				ID:        m.ID,
				Content:   m.Content,
				Timestamp: m.Timestamp,
			}
			if m.Author != nil {
				msg.AuthorID = m.Author.ID
			}
			if err := fn(msg); err != nil {
				return err
			}
		}

		if len(page) < pageSize {
			return nil
		}
		before = page[len(page)-1].ID
	}
}

// DeleteBatch bulk deletes up to 100 messages. Discord rejects bulk deletes of
// a single message, so those go through DeleteOne.
func (p *Platform) DeleteBatch(ctx context.Context, channelID string, messageIDs []string) error {
	switch len(messageIDs) {
	case 0:
		return nil
	case 1:
		return p.DeleteOne(ctx, channelID, messageIDs[0])
	}

	if err := p.session.ChannelMessagesBulkDelete(channelID, messageIDs, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("bulk delete of %d messages failed: %w", len(messageIDs), mapError(err))
	}
	logger.Debugf("Bulk deleted %d messages in %s", len(messageIDs), channelID)
	return nil
}

func (p *Platform) DeleteOne(ctx context.Context, channelID string, messageID string) error {
	if err := p.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete of message %s failed: %w", messageID, mapError(err))
	}
	return nil
}

// mapError marks Discord permission failures with platform.ErrAccessDenied
func mapError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%w: %s", platform.ErrAccessDenied, restErr.Message.Message)
		}
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", platform.ErrAccessDenied, err)
	}
	return err
}
