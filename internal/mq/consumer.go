package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer はレプリカ専用のキューからメッセージを受け取ります
// キューは排他かつ自動削除で、接続が切れると消えます
type Consumer struct {
	session *session
	queue   string
}

// NewConsumer はサーバー命名のキューを宣言し、keys で束縛します
func NewConsumer(url, exchange string, keys []string) (*Consumer, error) {
	s, err := openSession(url, exchange)
	if err != nil {
		return nil, err
	}
	q, err := s.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = s.close()
		return nil, fmt.Errorf("declare relay queue: %w", err)
	}
	for _, key := range keys {
		if err := s.ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			_ = s.close()
			return nil, fmt.Errorf("bind %s to %s: %w", q.Name, key, err)
		}
	}
	return &Consumer{session: s, queue: q.Name}, nil
}

// Deliveries は手動ACKで配信を受け取るチャネルを返します
// ブローカーとの接続が切れるとチャネルは閉じます
func (c *Consumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.session.ch.ConsumeWithContext(ctx, c.queue, "", false, true, false, false, nil)
}

// Close はチャネルと接続を閉じます
func (c *Consumer) Close() error {
	return c.session.close()
}
