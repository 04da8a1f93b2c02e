package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
)

// Service は受信者向けの通知一覧と既読処理を担当します
type Service struct {
	repo  repository.NotificationRepository
	clock func() time.Time
}

// NewService は新しいServiceを作成します
func NewService(repo repository.NotificationRepository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// ListUnread は本人の未読通知を取得します
func (s *Service) ListUnread(ctx context.Context, identity model.Identity) ([]model.Notification, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationService.ListUnread")
	defer seg.Close(nil)

	records, err := s.repo.ListUnread(ctx, identity.UserID, s.clock().UTC())
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return records, nil
}

// MarkRead は本人宛ての通知を既読にします
// 既読済みの通知はそのまま返します
func (s *Service) MarkRead(ctx context.Context, identity model.Identity, notificationID string) (*model.Notification, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationService.MarkRead")
	defer seg.Close(nil)

	now := s.clock().UTC()
	record, err := s.repo.GetByID(ctx, notificationID, now)
	if err != nil {
		return nil, err
	}
	if record.RecipientID != identity.UserID {
		return nil, fmt.Errorf("notification %s belongs to another user: %w", notificationID, model.ErrUnauthorized)
	}
	if record.IsRead {
		return record, nil
	}

	return s.repo.MarkRead(ctx, notificationID, now)
}
