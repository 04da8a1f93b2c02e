package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

const technicianProfileColumns = `
	user_id,
	bio,
	avg_rating,
	total_jobs,
	updated_at`

// TechnicianRepository は技術者プロフィールの評価項目を扱うインターフェースです
type TechnicianRepository interface {
	GetProfile(ctx context.Context, userID string) (*model.TechnicianProfile, error)
	RecomputeRating(ctx context.Context, technicianID string, aggregate model.RatingAggregateFunc) (*model.TechnicianProfile, error)
}

// TechnicianRepositoryImpl はTechnicianRepositoryの実装です
type TechnicianRepositoryImpl struct {
	db *DB
}

// NewTechnicianRepository は新しいTechnicianRepositoryを作成します
func NewTechnicianRepository(db *DB) *TechnicianRepositoryImpl {
	return &TechnicianRepositoryImpl{db: db}
}

// GetProfile は技術者プロフィールを取得します
func (r *TechnicianRepositoryImpl) GetProfile(ctx context.Context, userID string) (*model.TechnicianProfile, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "TechnicianRepository.GetProfile")
	defer seg.Close(nil)

	query := `SELECT ` + technicianProfileColumns + ` FROM technician_profiles WHERE user_id = $1`

	var profile model.TechnicianProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("technician %s: %w", userID, model.ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get technician profile: %w", err)
	}

	return &profile, nil
}

// RecomputeRating は技術者の全レビューから評価を再計算して書き戻します
func (r *TechnicianRepositoryImpl) RecomputeRating(ctx context.Context, technicianID string, aggregate model.RatingAggregateFunc) (*model.TechnicianProfile, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "TechnicianRepository.RecomputeRating")
	defer seg.Close(nil)

	var profile *model.TechnicianProfile
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockTechnicianProfile(ctx, tx, technicianID); err != nil {
			return err
		}
		var err error
		profile, err = writeRatingAggregate(ctx, tx, technicianID, aggregate)
		return err
	})
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	return profile, nil
}

// lockTechnicianProfile はプロフィール行を確保してから行ロックを取得します
// 同じ技術者への評価書き込みはこのロックで直列化されます
func lockTechnicianProfile(ctx context.Context, tx *sqlx.Tx, technicianID string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO technician_profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, technicianID); err != nil {
		return fmt.Errorf("failed to ensure technician profile: %w", err)
	}

	var locked string
	if err := tx.GetContext(ctx, &locked, `
		SELECT user_id
		FROM technician_profiles
		WHERE user_id = $1
		FOR UPDATE`, technicianID); err != nil {
		return fmt.Errorf("failed to lock technician profile: %w", err)
	}
	return nil
}

// writeRatingAggregate は技術者の全評価を読み込み、集計結果でプロフィールを上書きします
func writeRatingAggregate(ctx context.Context, tx *sqlx.Tx, technicianID string, aggregate model.RatingAggregateFunc) (*model.TechnicianProfile, error) {
	ratings := make([]int, 0)
	if err := tx.SelectContext(ctx, &ratings, `
		SELECT rating
		FROM reviews
		WHERE technician_id = $1`, technicianID); err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}

	result := aggregate(ratings)

	query := `
		UPDATE technician_profiles
		SET avg_rating = $1,
			total_jobs = $2,
			updated_at = $3
		WHERE user_id = $4
		RETURNING ` + technicianProfileColumns

	var profile model.TechnicianProfile
	if err := tx.GetContext(ctx, &profile, query, result.AvgRating, result.TotalJobs, time.Now().UTC(), technicianID); err != nil {
		return nil, fmt.Errorf("failed to update technician rating: %w", err)
	}
	return &profile, nil
}
