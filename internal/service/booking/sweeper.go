package booking

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
)

// Sweeper は予定時刻を過ぎたPENDINGの予約をキャンセルします
// 一覧取得の直前に同期的に呼ばれ、通知は行いません
type Sweeper struct {
	repo repository.BookingRepository
}

// NewSweeper は新しいSweeperを作成します
func NewSweeper(repo repository.BookingRepository) *Sweeper {
	return &Sweeper{repo: repo}
}

// Sweep は now より前に予定されたPENDINGの予約をCANCELLEDにします
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AutoExpirySweeper.Sweep")
	defer seg.Close(nil)

	n, err := s.repo.CancelStalePending(ctx, now)
	if err != nil {
		seg.Close(err)
		return 0, err
	}
	if n > 0 {
		log.Printf("Cancelled %d stale pending bookings", n)
	}
	return n, nil
}
