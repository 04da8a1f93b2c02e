package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

const bookingColumns = `
	id,
	customer_id,
	technician_id,
	service_id,
	status,
	scheduled_at,
	price,
	notes,
	created_at,
	updated_at`

// BookingRepository は予約の永続化を担当するインターフェースです
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
	UpdateStatusIfMatch(ctx context.Context, id string, from, to model.BookingStatus, now time.Time) (*model.Booking, error)
	CancelStalePending(ctx context.Context, now time.Time) (int64, error)
	GetTechnicianStats(ctx context.Context, technicianID string) (*model.TechnicianStats, error)
}

type BookingRepositoryImpl struct {
	db *DB
}

func NewBookingRepository(db *DB) *BookingRepositoryImpl {
	return &BookingRepositoryImpl{db: db}
}

// Create は予約を作成します
func (r *BookingRepositoryImpl) Create(ctx context.Context, booking *model.Booking) error {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.Create")
	defer seg.Close(nil)

	query := `
		INSERT INTO bookings (
			id,
			customer_id,
			technician_id,
			service_id,
			status,
			scheduled_at,
			price,
			notes,
			created_at,
			updated_at
		) VALUES (
			:id,
			:customer_id,
			:technician_id,
			:service_id,
			:status,
			:scheduled_at,
			:price,
			:notes,
			:created_at,
			:updated_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetByID は予約をIDで取得します
func (r *BookingRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.GetByID")
	defer seg.Close(nil)

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking model.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

// List は条件に一致する予約を予定日時の新しい順に取得します
func (r *BookingRepositoryImpl) List(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.List")
	defer seg.Close(nil)

	var (
		conditions []string
		args       []interface{}
	)
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.TechnicianID != "" {
		args = append(args, filter.TechnicianID)
		conditions = append(conditions, fmt.Sprintf("technician_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY scheduled_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := rows.StructScan(&b); err != nil {
			seg.Close(err)
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}

	if err = rows.Err(); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}

	return bookings, nil
}

// UpdateStatusIfMatch は現在のステータスが from の場合に限り to へ更新します
// 一致しない場合は ErrConflict、予約が存在しない場合は ErrNotFound を返します
func (r *BookingRepositoryImpl) UpdateStatusIfMatch(ctx context.Context, id string, from, to model.BookingStatus, now time.Time) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.UpdateStatusIfMatch")
	defer seg.Close(nil)

	query := `
		UPDATE bookings
		SET status = $1,
			updated_at = $2
		WHERE id = $3
		AND status = $4
		RETURNING ` + bookingColumns

	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, query, to, now, id, from)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		seg.Close(err)
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to check booking existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}
	return nil, fmt.Errorf("booking %s is no longer %s: %w", id, from, model.ErrConflict)
}

// CancelStalePending は予定日時を過ぎたPENDINGの予約をキャンセルします
// 書き込み時点でPENDINGである行のみが対象です
func (r *BookingRepositoryImpl) CancelStalePending(ctx context.Context, now time.Time) (int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.CancelStalePending")
	defer seg.Close(nil)

	query := `
		UPDATE bookings
		SET status = $1,
			updated_at = $2
		WHERE status = $3
		AND scheduled_at < $2
	`

	result, err := r.db.ExecContext(ctx, query, model.BookingStatusCancelled, now, model.BookingStatusPending)
	if err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to cancel stale bookings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// GetTechnicianStats は完了済み予約から技術者の売上と件数を集計します
func (r *BookingRepositoryImpl) GetTechnicianStats(ctx context.Context, technicianID string) (*model.TechnicianStats, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.GetTechnicianStats")
	defer seg.Close(nil)

	query := `
		SELECT
			COALESCE(SUM(price), 0) AS total_earnings,
			COUNT(*) AS completed_jobs
		FROM bookings
		WHERE technician_id = $1
		AND status = $2
	`

	stats := model.TechnicianStats{TechnicianID: technicianID}
	if err := r.db.GetContext(ctx, &stats, query, technicianID, model.BookingStatusCompleted); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to get technician stats: %w", err)
	}

	return &stats, nil
}
