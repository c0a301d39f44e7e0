package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"photo-review-backend/internal/signature"
	"photo-review-backend/internal/storage"
	"photo-review-backend/internal/verdict"
)

const (
	AuthModeSignature = "signature"
	AuthModeToken     = "token"
	AuthModeTrusted   = "trusted"

	StorageDisk     = "disk"
	StorageSupabase = "supabase"
	StorageMinio    = "minio"

	QueueMemory = "memory"
	QueueAMQP   = "amqp"
)

type Config struct {
	// Discord
	DiscordBotToken  string
	DiscordPublicKey string
	DiscordChannelID string

	// Server
	Port        string
	Environment string
	LogLevel    string
	BaseURL     string
	StaticDir   string

	// Verdicts
	VerdictLabels      []string
	VerdictDestructive string

	// Text-command path
	MessageAuthMode string
	BridgeJWTSecret string

	// Interaction replay guard
	InteractionMaxSkew     time.Duration
	InteractionReplayCache int

	// Storage
	StorageBackend string
	UploadDir      string
	MaxUploadBytes int64

	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	MinioURLExpiry time.Duration

	// Notifications
	NotifyQueue      string
	NotifyQueueSize  int
	NotifyMaxRetries int
	AMQPURL          string
	AMQPQueue        string

	IDNode int64
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists. CONFIG_FILE may name a yaml,
// json or toml file; environment variables override its values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := NewViper()
	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return LoadFrom(v)
}

// LoadFrom builds a Config from an already populated viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DiscordBotToken:  v.GetString("DISCORD_BOT_TOKEN"),
		DiscordPublicKey: v.GetString("DISCORD_PUBLIC_KEY"),
		DiscordChannelID: v.GetString("DISCORD_CHANNEL_ID"),

		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		BaseURL:     strings.TrimRight(v.GetString("BASE_URL"), "/"),
		StaticDir:   v.GetString("STATIC_DIR"),

		VerdictLabels:      splitList(v.GetString("VERDICT_LABELS")),
		VerdictDestructive: strings.TrimSpace(v.GetString("VERDICT_DESTRUCTIVE")),

		MessageAuthMode: strings.ToLower(v.GetString("MESSAGE_AUTH_MODE")),
		BridgeJWTSecret: v.GetString("BRIDGE_JWT_SECRET"),

		InteractionMaxSkew:     v.GetDuration("INTERACTION_MAX_SKEW"),
		InteractionReplayCache: v.GetInt("INTERACTION_REPLAY_CACHE"),

		StorageBackend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),

		SupabaseURL:           v.GetString("SUPABASE_URL"),
		SupabaseServiceKey:    v.GetString("SUPABASE_SERVICE_KEY"),
		SupabaseStorageBucket: v.GetString("SUPABASE_STORAGE_BUCKET"),

		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		MinioRegion:    v.GetString("MINIO_REGION"),
		MinioURLExpiry: v.GetDuration("MINIO_URL_EXPIRY"),

		NotifyQueue:      strings.ToLower(v.GetString("NOTIFY_QUEUE")),
		NotifyQueueSize:  v.GetInt("NOTIFY_QUEUE_SIZE"),
		NotifyMaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		AMQPURL:          v.GetString("AMQP_URL"),
		AMQPQueue:        v.GetString("AMQP_QUEUE"),

		IDNode: v.GetInt64("ID_NODE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// NewViper returns a viper instance bound to the environment and carrying the
// default values.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("STATIC_DIR", "public")
	v.SetDefault("VERDICT_LABELS", "잘생김,귀여움,훈훈함,못생김")
	v.SetDefault("VERDICT_DESTRUCTIVE", "못생김")
	v.SetDefault("MESSAGE_AUTH_MODE", AuthModeSignature)
	v.SetDefault("INTERACTION_MAX_SKEW", "0s")
	v.SetDefault("INTERACTION_REPLAY_CACHE", 1024)
	v.SetDefault("STORAGE_BACKEND", StorageDisk)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("SUPABASE_STORAGE_BUCKET", "review-photos")
	v.SetDefault("MINIO_BUCKET", "review-photos")
	v.SetDefault("MINIO_URL_EXPIRY", "168h")
	v.SetDefault("NOTIFY_QUEUE", QueueMemory)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 64)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("AMQP_QUEUE", "review_notifications")
	v.SetDefault("ID_NODE", 1)

	return v
}

func (c *Config) Validate() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if c.DiscordPublicKey == "" {
		return fmt.Errorf("DISCORD_PUBLIC_KEY is required")
	}
	if _, err := signature.ParsePublicKey(c.DiscordPublicKey); err != nil {
		return fmt.Errorf("DISCORD_PUBLIC_KEY: %w", err)
	}
	if c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if _, err := c.Vocabulary(); err != nil {
		return err
	}

	switch c.MessageAuthMode {
	case AuthModeSignature, AuthModeTrusted:
	case AuthModeToken:
		if c.BridgeJWTSecret == "" {
			return fmt.Errorf("BRIDGE_JWT_SECRET is required when MESSAGE_AUTH_MODE is %q", AuthModeToken)
		}
	default:
		return fmt.Errorf("unsupported MESSAGE_AUTH_MODE %q", c.MessageAuthMode)
	}

	if c.InteractionMaxSkew < 0 {
		return fmt.Errorf("INTERACTION_MAX_SKEW must not be negative")
	}
	if c.InteractionReplayCache < 0 {
		return fmt.Errorf("INTERACTION_REPLAY_CACHE must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	switch c.StorageBackend {
	case StorageDisk:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for the disk storage backend")
		}
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase storage backend")
		}
	case StorageMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio storage backend")
		}
		if c.MinioURLExpiry < 0 || c.MinioURLExpiry > storage.MaxURLExpiry {
			return fmt.Errorf("MINIO_URL_EXPIRY must be between 0 and %s", storage.MaxURLExpiry)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.NotifyQueue {
	case QueueMemory:
		if c.NotifyQueueSize <= 0 {
			return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
		}
	case QueueAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when NOTIFY_QUEUE is %q", QueueAMQP)
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_QUEUE %q", c.NotifyQueue)
	}
	if c.NotifyMaxRetries < 1 {
		return fmt.Errorf("NOTIFY_MAX_RETRIES must be at least 1")
	}

	if c.IDNode < 0 || c.IDNode > 1023 {
		return fmt.Errorf("ID_NODE must be between 0 and 1023")
	}
	return nil
}

// Vocabulary returns the validated verdict vocabulary.
func (c *Config) Vocabulary() (verdict.Vocabulary, error) {
	return verdict.NewVocabulary(c.VerdictLabels, c.VerdictDestructive)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
