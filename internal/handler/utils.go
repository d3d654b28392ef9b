package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"chat-purge/internal/logger"
	"chat-purge/internal/models"
)

// isUserAdmin checks if a user is an admin in a chat
func (h *Handler) isUserAdmin(ctx context.Context, chatID int64, userID int64) (bool, error) {
	member, err := h.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		return false, err
	}

	switch member.MemberStatus() {
	case telego.MemberStatusCreator, telego.MemberStatusAdministrator:
		return true, nil
	}
	return false, nil
}

// authorized reports whether the sender may run purge commands in the chat
func (h *Handler) authorized(ctx context.Context, chat telego.Chat, user *telego.User) bool {
	if !h.adminOnly {
		return true
	}
	if user == nil || chat.Type == telego.ChatTypePrivate {
		return false
	}
	ok, err := h.isUserAdmin(ctx, chat.ID, user.ID)
	if err != nil {
		logger.Warningf("Failed to check admin status of %d in %d: %v", user.ID, chat.ID, err)
		return false
	}
	return ok
}

func userLanguage(user *telego.User) string {
	if user == nil {
		return models.DefaultLanguage
	}
	return models.LanguageFromCode(user.LanguageCode)
}

func requesterID(user *telego.User) string {
	if user == nil {
		return ""
	}
	return strconv.FormatInt(user.ID, 10)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) (*telego.Message, error) {
	return h.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    tu.ID(chatID),
		Text:      text,
		ParseMode: telego.ModeHTML,
	})
}

func (h *Handler) edit(ctx context.Context, chatID int64, messageID int, text string, markup *telego.InlineKeyboardMarkup) {
	_, err := h.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      tu.ID(chatID),
		MessageID:   messageID,
		Text:        text,
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil && !strings.Contains(err.Error(), "message is not modified") {
		logger.Warningf("Failed to edit message %d in %d: %v", messageID, chatID, err)
	}
}

// formatDuration renders d rounded to the largest sensible unit
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

// callbackData builds "purge:<action>:<requester>:<operation>"
func callbackData(action, requester, opID string) string {
	return "purge:" + action + ":" + requester + ":" + opID
}

func parseCallbackData(data string) (action, requester, opID string, err error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != "purge" || parts[3] == "" {
		return "", "", "", fmt.Errorf("invalid data format: %s", data)
	}
	return parts[1], parts[2], parts[3], nil
}
