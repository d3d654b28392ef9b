package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Platform PlatformConfig `mapstructure:"platform"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Purge    PurgeConfig    `mapstructure:"purge"`
}

// Telegram bot configuration
type BotConfig struct {
	Token     string        `mapstructure:"token"`
	AdminOnly bool          `mapstructure:"admin_only"`
	Webhook   WebhookConfig `mapstructure:"webhook"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ListenPort  string `mapstructure:"listen_port"`
	DebugPath   string `mapstructure:"debug_path"`
	MetricsPath string `mapstructure:"metrics_path"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
	Level     string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

// PlatformConfig selects where history is read from and deletions are sent to.
type PlatformConfig struct {
	Kind     string               `mapstructure:"kind"`
	Discord  DiscordConfig        `mapstructure:"discord"`
	Telegram TelegramSourceConfig `mapstructure:"telegram"`
}

type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	GuildID string `mapstructure:"guild_id"`
}

// TelegramSourceConfig paces Bot API calls made by the journal-backed platform
type TelegramSourceConfig struct {
	APIRate  float64 `mapstructure:"api_rate"`
	APIBurst int     `mapstructure:"api_burst"`
}

// message cache snapshot settings
type CacheConfig struct {
	Path   string        `mapstructure:"path"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

// search-and-purge settings
type PurgeConfig struct {
	PendingTTL          time.Duration `mapstructure:"pending_ttl"`
	BatchMaxAge         time.Duration `mapstructure:"batch_max_age"`
	BatchSize           int           `mapstructure:"batch_size"`
	BatchPause          time.Duration `mapstructure:"batch_pause"`
	SinglePause         time.Duration `mapstructure:"single_pause"`
	SinglePauseEvery    int           `mapstructure:"single_pause_every"`
	ProgressEverySingle int           `mapstructure:"progress_every_single"`
	ScanProgressEvery   int           `mapstructure:"scan_progress_every"`
}

const (
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
)

var cfg *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	loadDotEnv(configPath)

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PURGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	// Unmarshal configuration
	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := loaded.validate(); err != nil {
		return nil, err
	}

	cfg = loaded
	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

// loadDotEnv reads a .env file next to the config file, then one in the
// working directory. Variables already set in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: failed to load %s: %v", path, err)
			continue
		}
		log.Printf("Loaded environment from %s", path)
		return
	}
}

func (c *Config) validate() error {
	switch c.Platform.Kind {
	case PlatformTelegram:
	case PlatformDiscord:
		if c.Platform.Discord.Token == "" || c.Platform.Discord.GuildID == "" {
			return fmt.Errorf("platform.discord.token and platform.discord.guild_id are required for the discord platform")
		}
	default:
		return fmt.Errorf("unknown platform kind: %q", c.Platform.Kind)
	}

	if c.Purge.BatchSize <= 0 || c.Purge.BatchSize > 100 {
		return fmt.Errorf("purge.batch_size must be between 1 and 100, got %d", c.Purge.BatchSize)
	}
	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("cache.max_age must be positive")
	}
	if c.Purge.PendingTTL <= 0 {
		return fmt.Errorf("purge.pending_ttl must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.admin_only", true)
	v.SetDefault("bot.webhook.listen_port", "8443")
	v.SetDefault("bot.webhook.debug_path", "/debug")
	v.SetDefault("bot.webhook.metrics_path", "/metrics")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("platform.kind", PlatformTelegram)
	v.SetDefault("platform.telegram.api_rate", 20.0)
	v.SetDefault("platform.telegram.api_burst", 5)

	v.SetDefault("cache.path", "data/message-cache.json.gz")
	v.SetDefault("cache.max_age", 24*time.Hour)

	v.SetDefault("purge.pending_ttl", 300*time.Second)
	v.SetDefault("purge.batch_max_age", 14*24*time.Hour)
	v.SetDefault("purge.batch_size", 100)
	v.SetDefault("purge.batch_pause", time.Second)
	v.SetDefault("purge.single_pause", time.Second)
	v.SetDefault("purge.single_pause_every", 5)
	v.SetDefault("purge.progress_every_single", 20)
	v.SetDefault("purge.scan_progress_every", 500)
}
