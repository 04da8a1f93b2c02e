package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher はトピックエクスチェンジへJSONを発行します
type Publisher struct {
	session  *session
	exchange string
}

// NewPublisher はRabbitMQに接続してエクスチェンジを宣言します
func NewPublisher(url, exchange string) (*Publisher, error) {
	s, err := openSession(url, exchange)
	if err != nil {
		return nil, err
	}
	return &Publisher{session: s, exchange: exchange}, nil
}

// PublishJSON は v をJSONにして routing key で発行します
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	err = p.session.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Close はチャネルと接続を閉じます
func (p *Publisher) Close() error {
	return p.session.close()
}
