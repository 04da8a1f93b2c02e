package database

import (
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	UserName string `envconfig:"USERNAME" default:"sbcntrapp"`
	Password string `envconfig:"PASSWORD" default:"password"`
	DBName   string `envconfig:"NAME" default:"sbcntrapp"`

	MaxOpenConns int `envconfig:"MAX_OPEN_CONNS" default:"25"`
}

// DSN はlib/pq向けの接続文字列を返します
func (c Config) DSN() string {
	// localhostのDBの場合はSSLを無効化
	sslModeValue := "require"
	if c.Host == "localhost" || c.Host == "127.0.0.1" {
		sslModeValue = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.UserName,
		c.Password,
		c.DBName,
		sslModeValue,
	)
}

// Open はX-Rayでトレースされる接続を開きます
func Open(cfg Config) (*sqlx.DB, error) {
	// X-Ray対応のSQLコンテキストを作成
	db, err := xray.SQLContext("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database with X-Ray: %w", err)
	}

	// コネクションプールの設定
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlx.NewDb(db, "postgres"), nil
}
