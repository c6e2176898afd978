package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	Shopify     ShopifyConfig
	Mysql       MysqlConfig
	Redis       RedisConfig
	TelegramBot TelegramBotConfig
	Webhook     WebhookConfig
	Auth        AuthConfig
	HTTP        HTTPConfig
	Preorder    PreorderConfig
}

type ShopifyConfig struct {
	ShopDomain string
	Token      string
	APIVer     string
	Timeout    time.Duration
}

type MysqlConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

type RedisConfig struct {
	URL string
}

type TelegramBotConfig struct {
	ChatId string
	Token  string
}

type WebhookConfig struct {
	Secret    string
	RateLimit int
}

type AuthConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	SessionSecret     string
	SessionTTL        time.Duration
}

type HTTPConfig struct {
	Port           int
	PublicBaseURL  string
	MaxUploadBytes int64
}

// PreorderConfig holds the knobs of the upload pipeline and the executor.
type PreorderConfig struct {
	Namespace      string
	Strategy       string
	Workers        int
	BatchInterval  time.Duration
	ChunkInterval  time.Duration
	PolicyGroup    int
	PolicyInterval time.Duration
}

// LoadForServer loads everything the HTTP server needs. The webhook and
// session secrets are required here, a missing one aborts startup.
func LoadForServer() (Config, error) {
	cfg, err := loadBase()
	if err != nil {
		return Config{}, err
	}
	if cfg.Webhook.Secret, err = requiredString("SHOPIFY_WEBHOOK_SECRET"); err != nil {
		return Config{}, err
	}
	if cfg.Auth.SessionSecret, err = requiredString("SESSION_SECRET"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadForWorker loads the queue worker configuration. REDIS_URL is required.
func LoadForWorker() (Config, error) {
	cfg, err := loadBase()
	if err != nil {
		return Config{}, err
	}
	if cfg.Redis.URL, err = requiredString("REDIS_URL"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadForClear() (Config, error) {
	return loadBase()
}

func loadBase() (Config, error) {
	// .env is optional, real env vars win.
	_ = godotenv.Load()

	var cfg Config
	var err error

	cfg.AppEnv = stringWithDefault("APP_ENV", "development")

	if cfg.Shopify.ShopDomain, err = requiredString("SHOPIFY_STORE_DOMAIN"); err != nil {
		return Config{}, err
	}
	if cfg.Shopify.Token, err = requiredString("SHOPIFY_ADMIN_ACCESS_TOKEN"); err != nil {
		return Config{}, err
	}
	cfg.Shopify.APIVer = stringWithDefault("SHOPIFY_API_VERSION", "2024-10")
	if cfg.Shopify.Timeout, err = durationWithDefault("SHOPIFY_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.Mysql.Host, err = requiredString("MYSQL_HOST"); err != nil {
		return Config{}, err
	}
	if cfg.Mysql.Port, err = intWithDefault("MYSQL_PORT", 3306); err != nil {
		return Config{}, err
	}
	if cfg.Mysql.Username, err = requiredString("MYSQL_USER"); err != nil {
		return Config{}, err
	}
	cfg.Mysql.Password = stringWithDefault("MYSQL_PASSWORD", "")
	if cfg.Mysql.Database, err = requiredString("MYSQL_DATABASE"); err != nil {
		return Config{}, err
	}

	cfg.Redis.URL = stringWithDefault("REDIS_URL", "")

	cfg.TelegramBot.ChatId = stringWithDefault("TELEGRAM_CHAT_ID", "")
	cfg.TelegramBot.Token = stringWithDefault("TELEGRAM_BOT_TOKEN", "")

	cfg.Webhook.Secret = stringWithDefault("SHOPIFY_WEBHOOK_SECRET", "")
	if cfg.Webhook.RateLimit, err = intWithDefault("WEBHOOK_RATE_LIMIT", 20); err != nil {
		return Config{}, err
	}

	cfg.Auth.AdminEmail = stringWithDefault("ADMIN_EMAIL", "")
	cfg.Auth.AdminPasswordHash = stringWithDefault("ADMIN_PASSWORD_HASH", "")
	cfg.Auth.SessionSecret = stringWithDefault("SESSION_SECRET", "")
	if cfg.Auth.SessionTTL, err = durationWithDefault("SESSION_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}

	if cfg.HTTP.Port, err = intWithDefault("HTTP_PORT", 8080); err != nil {
		return Config{}, err
	}
	cfg.HTTP.PublicBaseURL = stringWithDefault("PUBLIC_BASE_URL", "")
	maxUpload, err := intWithDefault("UPLOAD_MAX_BYTES", 10<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.MaxUploadBytes = int64(maxUpload)

	if cfg.Preorder, err = loadPreorder(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadPreorder() (PreorderConfig, error) {
	var p PreorderConfig
	var err error

	p.Namespace = stringWithDefault("METAFIELD_NAMESPACE", "preorder")
	p.Strategy = stringWithDefault("PREORDER_STRATEGY", "sku")
	if p.Strategy != "sku" && p.Strategy != "handle" {
		return PreorderConfig{}, fmt.Errorf("invalid PREORDER_STRATEGY %q: want sku or handle", p.Strategy)
	}
	if p.Workers, err = intWithDefault("PREORDER_WORKERS", 5); err != nil {
		return PreorderConfig{}, err
	}
	if p.BatchInterval, err = durationWithDefault("PREORDER_BATCH_INTERVAL", 500*time.Millisecond); err != nil {
		return PreorderConfig{}, err
	}
	if p.ChunkInterval, err = durationWithDefault("PREORDER_CHUNK_INTERVAL", 500*time.Millisecond); err != nil {
		return PreorderConfig{}, err
	}
	if p.PolicyGroup, err = intWithDefault("PREORDER_POLICY_GROUP", 5); err != nil {
		return PreorderConfig{}, err
	}
	if p.PolicyInterval, err = durationWithDefault("PREORDER_POLICY_INTERVAL", time.Second); err != nil {
		return PreorderConfig{}, err
	}
	return p, nil
}
