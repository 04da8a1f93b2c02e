package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

const notificationColumns = `
	id,
	recipient_id,
	type,
	title,
	message,
	data,
	is_read,
	created_at,
	updated_at,
	expires_at`

// NotificationRepository は通知の永続化を担当するインターフェースです
type NotificationRepository interface {
	Create(ctx context.Context, record *model.Notification) error
	GetByID(ctx context.Context, id string, now time.Time) (*model.Notification, error)
	ListUnread(ctx context.Context, recipientID string, now time.Time) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string, now time.Time) (*model.Notification, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NotificationRepositoryImpl は通知の永続化を担当します
type NotificationRepositoryImpl struct {
	db *DB
}

// NewNotificationRepository は新しいNotificationRepositoryを作成します
func NewNotificationRepository(db *DB) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{
		db: db,
	}
}

// Create は単一の通知レコードを作成します
func (r *NotificationRepositoryImpl) Create(ctx context.Context, record *model.Notification) error {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.Create")
	defer seg.Close(nil)

	query := `
		INSERT INTO notifications (
			id, recipient_id, type, title, message, data, is_read, created_at, updated_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := r.db.ExecContext(ctx,
		query,
		record.ID,
		record.RecipientID,
		record.Type,
		record.Title,
		record.Message,
		record.Data,
		record.IsRead,
		record.CreatedAt,
		record.UpdatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByID は保持期間内の通知をIDで取得します
func (r *NotificationRepositoryImpl) GetByID(ctx context.Context, id string, now time.Time) (*model.Notification, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.GetByID")
	defer seg.Close(nil)

	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE id = $1
		AND expires_at > $2`

	var record model.Notification
	if err := r.db.GetContext(ctx, &record, query, id, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification %s: %w", id, model.ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return &record, nil
}

// ListUnread は指定されたユーザーの未読通知を新しい順に取得します
func (r *NotificationRepositoryImpl) ListUnread(ctx context.Context, recipientID string, now time.Time) ([]model.Notification, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.ListUnread")
	defer seg.Close(nil)

	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1
		AND is_read = FALSE
		AND expires_at > $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, recipientID, now)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	records := make([]model.Notification, 0)
	for rows.Next() {
		var record model.Notification
		if err := rows.StructScan(&record); err != nil {
			seg.Close(err)
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return records, nil
}

// MarkRead は通知を既読にします
func (r *NotificationRepositoryImpl) MarkRead(ctx context.Context, id string, now time.Time) (*model.Notification, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.MarkRead")
	defer seg.Close(nil)

	query := `
		UPDATE notifications
		SET is_read = TRUE, updated_at = $1
		WHERE id = $2
		AND expires_at > $1
		RETURNING ` + notificationColumns

	var record model.Notification
	if err := r.db.GetContext(ctx, &record, query, now, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification %s: %w", id, model.ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to update notification is_read: %w", err)
	}

	return &record, nil
}

// DeleteExpired は保持期間を過ぎた通知を削除します
func (r *NotificationRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.DeleteExpired")
	defer seg.Close(nil)

	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE expires_at <= $1`, now)
	if err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
