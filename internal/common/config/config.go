package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AlibekovAA/chat-presence-hub/internal/common/constants"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type ChatConfig struct {
	HTTPPort string `env:"CHAT_HTTP_PORT" envDefault:"8082"`
	LogDir   string `env:"LOG_DIR" envDefault:"/var/log/chat-presence-hub"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	JWTSecret string `env:"JWT_SECRET"`

	StoreDriver  string        `env:"MESSAGE_STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"chat.db"`
	StoreTimeout time.Duration `env:"CHAT_STORE_TIMEOUT" envDefault:"5s"`

	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	RedisPresenceTTL time.Duration `env:"REDIS_PRESENCE_TTL" envDefault:"2m"`

	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaMessageTopic string   `env:"KAFKA_MESSAGE_TOPIC" envDefault:"chat.messages"`

	WebSocketWriteWait    time.Duration `env:"CHAT_WS_WRITE_WAIT" envDefault:"10s"`
	WebSocketPongWait     time.Duration `env:"CHAT_WS_PONG_WAIT" envDefault:"60s"`
	WebSocketPingPeriod   time.Duration `env:"CHAT_WS_PING_PERIOD" envDefault:"54s"`
	WebSocketMaxMsgSize   int64         `env:"CHAT_WS_MAX_MSG_SIZE" envDefault:"65536"`
	WebSocketSendBufSize  int           `env:"CHAT_WS_SEND_BUF_SIZE" envDefault:"256"`
	WebSocketSendTimeout  time.Duration `env:"CHAT_WS_SEND_TIMEOUT" envDefault:"2s"`
	WebSocketFramesPerSec float64       `env:"CHAT_WS_FRAMES_PER_SECOND" envDefault:"20"`
	WebSocketFrameBurst   int           `env:"CHAT_WS_FRAME_BURST" envDefault:"40"`

	CircuitBreakerThreshold int           `env:"CHAT_CB_THRESHOLD" envDefault:"20"`
	CircuitBreakerTimeout   time.Duration `env:"CHAT_CB_TIMEOUT" envDefault:"5s"`
	CircuitBreakerReset     time.Duration `env:"CHAT_CB_RESET" envDefault:"10s"`
}

func LoadChatConfig() (ChatConfig, error) {
	var cfg ChatConfig
	if err := env.Parse(&cfg); err != nil {
		return ChatConfig{}, commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("parse env: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return ChatConfig{}, err
	}

	return cfg, nil
}

func (c ChatConfig) Validate() error {
	if c.JWTSecret == "" {
		return commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("JWT_SECRET"))
	}
	if err := validateJWTSecret(c.JWTSecret); err != nil {
		return err
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("DATABASE_URL"))
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("SQLITE_PATH"))
		}
	default:
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("unknown MESSAGE_STORE_DRIVER %q", c.StoreDriver))
	}

	if c.WebSocketPongWait > 0 && c.WebSocketPingPeriod >= c.WebSocketPongWait {
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("CHAT_WS_PING_PERIOD must be shorter than CHAT_WS_PONG_WAIT"))
	}
	if c.WebSocketSendBufSize <= 0 {
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("CHAT_WS_SEND_BUF_SIZE must be positive"))
	}
	if c.WebSocketFramesPerSec <= 0 || c.WebSocketFrameBurst <= 0 {
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("frame limiter settings must be positive"))
	}
	if c.MessageEventsEnabled() && c.KafkaMessageTopic == "" {
		return commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("KAFKA_MESSAGE_TOPIC"))
	}

	return nil
}

func (c ChatConfig) PresenceMirrorEnabled() bool {
	return c.RedisAddr != ""
}

func (c ChatConfig) MessageEventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return commonerrors.ErrInvalidJWTSecret.WithCause(fmt.Errorf("got %d bytes", len(secret)))
	}
	return nil
}
