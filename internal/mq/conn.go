package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// session はRabbitMQへの接続とチャネルの組です
type session struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// openSession は接続してトピックエクスチェンジを宣言します
// 途中で失敗した場合は開いたものをすべて閉じます
func openSession(url, exchange string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	s := &session{conn: conn}
	if s.ch, err = conn.Channel(); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := s.ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return s, nil
}

func (s *session) close() error {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
