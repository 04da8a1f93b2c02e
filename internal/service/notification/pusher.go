package notification

import (
	"context"
	"log"

	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

const DefaultQueueSize = 1024

// Emitter はユーザーの接続中チャネルへイベントを送ります
type Emitter interface {
	Emit(userID, event string, payload any) error
}

// QueuePusher はプロセス内の有界キューを介してライブ配信します
//
// キューが満杯のときは通知を破棄してログに残します。通知は永続化済みのため、
// 受信者は未読一覧で取得できます。単一のワーカーが順に処理するため、同じ宛先
// への配信順は Push の呼び出し順と一致します。
type QueuePusher struct {
	emitter Emitter
	queue   chan *model.Notification
}

// NewQueuePusher は新しいQueuePusherを作成します
func NewQueuePusher(emitter Emitter, size int) *QueuePusher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &QueuePusher{
		emitter: emitter,
		queue:   make(chan *model.Notification, size),
	}
}

// Push は通知をキューに積みます。満杯の場合は破棄します
func (p *QueuePusher) Push(record *model.Notification) {
	select {
	case p.queue <- record:
	default:
		log.Printf("Push queue full, dropping live delivery of notification %s to %s", record.ID, record.RecipientID)
	}
}

// Run はコンテキストが終了するまでキューを処理します
func (p *QueuePusher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-p.queue:
			p.deliver(record)
		}
	}
}

func (p *QueuePusher) deliver(record *model.Notification) {
	if err := p.emitter.Emit(record.RecipientID, EventNotification, record); err != nil {
		log.Printf("Live delivery of notification %s to %s failed: %v", record.ID, record.RecipientID, err)
	}
}
