package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/database"
)

type Config struct {
	// ENV=LOCAL の場合は .env を読み込む
	Env string `envconfig:"ENV"`

	DB database.Config `envconfig:"DB"`

	// HTTP
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// 認証
	JWTSecret        string        `envconfig:"JWT_SECRET"`
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"5s"`
	WSWriteTimeout   time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`

	// 通知
	NotificationRetention time.Duration `envconfig:"NOTIFICATION_RETENTION" default:"720h"`
	PushQueueSize         int           `envconfig:"PUSH_QUEUE_SIZE" default:"1024"`

	// RabbitMQ。AMQP_URL が空の場合はレプリカ間の中継を行わない
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"homeservice.notifications"`

	// バッチ
	BatchTimeout time.Duration `envconfig:"BATCH_TIMEOUT" default:"5m"`
	SFN          struct {
		TaskToken string
	} `ignored:"true"`

	EnableTracing bool `envconfig:"SBCNTR_ENABLE_TRACING" default:"false"`
}

// LoadConfig は設定を読み込みます
func LoadConfig(taskToken string) (*Config, error) {
	if strings.EqualFold(os.Getenv("ENV"), "LOCAL") {
		if err := godotenv.Load(); err != nil {
			log.Printf(".env is not loaded: %v", err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.SFN.TaskToken = taskToken

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	if !sdkDisabled() && cfg.EnableTracing {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// ValidateAPI はAPIサーバーの起動に必要な設定を検証します
func (c *Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PushQueueSize <= 0 {
		return fmt.Errorf("PUSH_QUEUE_SIZE must be positive")
	}
	return nil
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
