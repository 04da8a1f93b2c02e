package review

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
)

// Aggregate はレビュー評価の一覧から平均評価と件数を計算します
//
// 平均は小数第一位で四捨五入します。丸めは10分の1単位の整数で行うため、
// 浮動小数点の誤差は結果に現れません。
func Aggregate(ratings []int) model.RatingAggregate {
	n := len(ratings)
	if n == 0 {
		return model.RatingAggregate{AvgRating: model.DefaultAvgRating, TotalJobs: 0}
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	// round(sum*10/n) = floor((sum*20 + n) / 2n)
	tenths := (sum*20 + n) / (2 * n)

	return model.RatingAggregate{
		AvgRating: float64(tenths) / 10,
		TotalJobs: n,
	}
}

// Aggregator は技術者の評価を全レビューから再計算します
type Aggregator struct {
	repo repository.TechnicianRepository
}

// NewAggregator は新しいAggregatorを作成します
func NewAggregator(repo repository.TechnicianRepository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Recompute は技術者の avgRating と totalJobs を上書きします
func (a *Aggregator) Recompute(ctx context.Context, technicianID string) (*model.TechnicianProfile, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "RatingAggregator.Recompute")
	defer seg.Close(nil)

	profile, err := a.repo.RecomputeRating(ctx, technicianID, Aggregate)
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return profile, nil
}
