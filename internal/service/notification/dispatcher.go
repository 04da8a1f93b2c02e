package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
)

// EventNotification はライブ配信時のイベント名です
const EventNotification = "notification"

const defaultPersistTimeout = 5 * time.Second

// Notifier は業務処理から通知を依頼するためのインターフェースです
// 失敗は呼び出し元に返りません
type Notifier interface {
	Notify(ctx context.Context, event model.NotificationEvent)
}

// Pusher は永続化済みの通知をライブ配信に引き渡します
// Push はI/Oを待たずに戻ります
type Pusher interface {
	Push(record *model.Notification)
}

// Dispatcher は通知を永続化してからライブ配信を試みます
type Dispatcher struct {
	repo           repository.NotificationRepository
	pusher         Pusher
	retention      time.Duration
	persistTimeout time.Duration
	clock          func() time.Time
	newID          func() string
}

// Option はDispatcherの設定を変更します
type Option func(*Dispatcher)

// WithRetention は通知の保持期間を設定します
func WithRetention(retention time.Duration) Option {
	return func(d *Dispatcher) {
		if retention > 0 {
			d.retention = retention
		}
	}
}

// WithClock は現在時刻の取得方法を差し替えます
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// NewDispatcher は新しいDispatcherを作成します
func NewDispatcher(repo repository.NotificationRepository, pusher Pusher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:           repo,
		pusher:         pusher,
		retention:      model.DefaultNotificationRetention,
		persistTimeout: defaultPersistTimeout,
		clock:          time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send は通知を永続化し、その後ライブ配信に引き渡します
// エラーは永続化に失敗した場合のみ返ります
func (d *Dispatcher) Send(ctx context.Context, recipientID string, typ model.NotificationType, title, message string, data any) (*model.Notification, error) {
	return d.send(ctx, model.NotificationEvent{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		Data:        data,
	})
}

// Notify は Send を呼び出し、失敗をログに残して破棄します
func (d *Dispatcher) Notify(ctx context.Context, event model.NotificationEvent) {
	if _, err := d.send(ctx, event); err != nil {
		log.Printf("Failed to dispatch %s notification to %s: %v", event.Type, event.RecipientID, err)
	}
}

func (d *Dispatcher) send(ctx context.Context, event model.NotificationEvent) (*model.Notification, error) {
	// 呼び出し元のリクエストが先に終わっても永続化は完了させる
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.persistTimeout)
	defer cancel()

	ctx, seg := xray.BeginSubsegment(ctx, "NotificationDispatcher.Send")
	defer seg.Close(nil)

	record, err := event.ToNotification(d.newID(), d.clock().UTC(), d.retention)
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	if err := d.repo.Create(ctx, record); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	if d.pusher != nil {
		d.pusher.Push(record)
	}

	return record, nil
}
