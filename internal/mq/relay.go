package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/notification"
)

const (
	DefaultExchange = "homeservice.notifications"

	routingKeyPrefix      = "notification."
	bindingKey            = routingKeyPrefix + "#"
	defaultPublishTimeout = 5 * time.Second
)

// ErrDeliveryClosed はブローカーとの接続が切れて配信チャネルが閉じたことを表します
var ErrDeliveryClosed = errors.New("relay delivery channel closed")

// RoutingKey は宛先ユーザーのルーティングキーを返します
func RoutingKey(userID string) string {
	return routingKeyPrefix + userID
}

// BindingKeys は全ユーザー宛てのメッセージを受け取るバインディングです
func BindingKeys() []string {
	return []string{bindingKey}
}

type relayMessage struct {
	RecipientID string          `json:"recipientId"`
	Event       string          `json:"event"`
	Payload     json.RawMessage `json:"payload"`
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// RelayEmitter はライブ配信をRabbitMQ経由で全レプリカへ中継します
// notification.QueuePusher のワーカーから呼ばれます
type RelayEmitter struct {
	publisher jsonPublisher
	timeout   time.Duration
}

// NewRelayEmitter は新しいRelayEmitterを作成します
func NewRelayEmitter(publisher jsonPublisher) *RelayEmitter {
	return &RelayEmitter{publisher: publisher, timeout: defaultPublishTimeout}
}

// Emit はイベントを宛先ユーザーのルーティングキーで発行します
func (e *RelayEmitter) Emit(userID, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relay payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	return e.publisher.PublishJSON(ctx, RoutingKey(userID), relayMessage{
		RecipientID: userID,
		Event:       event,
		Payload:     raw,
	})
}

type deliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// Relay は中継されたイベントを受け取り、このレプリカの接続へ配信します
type Relay struct {
	source  deliverySource
	emitter notification.Emitter
}

// NewRelay は新しいRelayを作成します
func NewRelay(source deliverySource, emitter notification.Emitter) *Relay {
	return &Relay{source: source, emitter: emitter}
}

// Run はコンテキストが終了するまで処理を続けます
// 配信チャネルが閉じた場合は ErrDeliveryClosed を返します
func (r *Relay) Run(ctx context.Context) error {
	deliveries, err := r.source.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("consume relay queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveryClosed
			}
			r.handle(d)
		}
	}
}

func (r *Relay) handle(d amqp.Delivery) {
	var msg relayMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.RecipientID == "" {
		log.Printf("mq: discarding malformed relay message key=%s err=%v", d.RoutingKey, err)
		_ = d.Nack(false, false)
		return
	}

	// 接続がないレプリカでは何もしない
	if err := r.emitter.Emit(msg.RecipientID, msg.Event, msg.Payload); err != nil {
		log.Printf("mq: live delivery to %s failed: %v", msg.RecipientID, err)
	}
	_ = d.Ack(false)
}
