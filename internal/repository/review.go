package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

const reviewColumns = `
	id,
	booking_id,
	customer_id,
	technician_id,
	rating,
	text,
	created_at`

// ReviewRepository はレビューの永続化を担当するインターフェースです
type ReviewRepository interface {
	CreateWithRating(ctx context.Context, review *model.Review, aggregate model.RatingAggregateFunc) (*model.TechnicianProfile, error)
	GetByBookingID(ctx context.Context, bookingID string) (*model.Review, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]model.Review, error)
}

// ReviewRepositoryImpl はReviewRepositoryの実装です
type ReviewRepositoryImpl struct {
	db *DB
}

// NewReviewRepository は新しいReviewRepositoryを作成します
func NewReviewRepository(db *DB) *ReviewRepositoryImpl {
	return &ReviewRepositoryImpl{db: db}
}

// CreateWithRating はレビューを作成し、同じトランザクションで技術者の評価を再計算します
// booking_id の一意制約違反は ErrDuplicateReview になります
func (r *ReviewRepositoryImpl) CreateWithRating(ctx context.Context, review *model.Review, aggregate model.RatingAggregateFunc) (*model.TechnicianProfile, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReviewRepository.CreateWithRating")
	defer seg.Close(nil)

	query := `
		INSERT INTO reviews (
			id,
			booking_id,
			customer_id,
			technician_id,
			rating,
			text,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	var profile *model.TechnicianProfile
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockTechnicianProfile(ctx, tx, review.TechnicianID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, query,
			review.ID,
			review.BookingID,
			review.CustomerID,
			review.TechnicianID,
			review.Rating,
			review.Text,
			review.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("booking %s: %w", review.BookingID, model.ErrDuplicateReview)
			}
			return fmt.Errorf("failed to create review: %w", err)
		}

		var err error
		profile, err = writeRatingAggregate(ctx, tx, review.TechnicianID, aggregate)
		return err
	})
	if err != nil {
		if !errors.Is(err, model.ErrDuplicateReview) {
			seg.Close(err)
		}
		return nil, err
	}

	return profile, nil
}

// GetByBookingID は予約IDからレビューを取得します
func (r *ReviewRepositoryImpl) GetByBookingID(ctx context.Context, bookingID string) (*model.Review, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReviewRepository.GetByBookingID")
	defer seg.Close(nil)

	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE booking_id = $1`

	var review model.Review
	if err := r.db.GetContext(ctx, &review, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review for booking %s: %w", bookingID, model.ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &review, nil
}

// ListByTechnician は技術者へのレビューを新しい順に取得します
func (r *ReviewRepositoryImpl) ListByTechnician(ctx context.Context, technicianID string) ([]model.Review, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReviewRepository.ListByTechnician")
	defer seg.Close(nil)

	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE technician_id = $1
		ORDER BY created_at DESC`

	reviews := make([]model.Review, 0)
	if err := r.db.SelectContext(ctx, &reviews, query, technicianID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	return reviews, nil
}
