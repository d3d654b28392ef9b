package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"chat-purge/internal/config"
	"chat-purge/internal/logger"
	"chat-purge/internal/models"
)

// BotService represents the Telegram bot service
type BotService struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
}

// Start starts the bot handler
func (b *BotService) Start() {
	b.Handler.Start()
}

// Stop stops the bot handler
func (b *BotService) Stop() {
	b.Handler.Stop()
}

// NewClient creates a Bot API client without touching webhooks, for tools
// that only need to read chats or delete messages.
func NewClient(token string) (*telego.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	return bot, nil
}

// Initialize initializes the bot and webhook
func Initialize(ctx context.Context, cfg *config.Config) (*BotService, *WebhookServer, error) {
	if cfg.Bot.Token == "" {
		return nil, nil, fmt.Errorf("bot token is required")
	}

	var opts []telego.BotOption
	if logger.Enabled(logger.LevelDebug) {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	bot, err := telego.NewBot(cfg.Bot.Token, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", botUser.Username)

	setLocalizedCommands(ctx, bot)

	if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		return nil, nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	// derived from the bot token so restarts keep the same secret
	secretToken := "purge_webhook_" + cfg.Bot.Token[len(cfg.Bot.Token)-6:]

	bh, server, err := SetupWebhook(ctx, bot, cfg.Bot.Webhook, secretToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	return &BotService{
		Bot:     bot,
		Handler: bh,
	}, server, nil
}

// commandKeys is the bot menu, in display order
var commandKeys = []struct {
	Command string
	DescKey string
}{
	{Command: "help", DescKey: "cmd_desc_help"},
	{Command: "scan", DescKey: "cmd_desc_scan"},
	{Command: "purge", DescKey: "cmd_desc_purge"},
	{Command: "purge_confirm", DescKey: "cmd_desc_purge_confirm"},
	{Command: "purge_cancel", DescKey: "cmd_desc_purge_cancel"},
	{Command: "cache_status", DescKey: "cmd_desc_cache_status"},
}

func localizedCommands(lang string) []telego.BotCommand {
	commands := make([]telego.BotCommand, 0, len(commandKeys))
	for _, cmd := range commandKeys {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: models.GetTranslation(lang, cmd.DescKey),
		})
	}
	return commands
}

// setLocalizedCommands sets bot commands in different languages
func setLocalizedCommands(ctx context.Context, bot *telego.Bot) {
	// our language keys to Telegram language codes
	langCodes := map[string]string{
		models.LangEnglish:            "en",
		models.LangSimplifiedChinese:  "zh",
		models.LangTraditionalChinese: "zh-hant",
	}

	for lang, telegramLang := range langCodes {
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     localizedCommands(lang),
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %s: %v", lang, err)
		}
	}

	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: localizedCommands(models.DefaultLanguage),
	})
	if err != nil {
		logger.Warningf("Failed to set default bot commands: %v", err)
	}
}
