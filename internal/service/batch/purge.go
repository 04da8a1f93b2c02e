package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/config"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/database"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/utils"
	"github.com/uma-arai/sbcntr-homeservice/internal/repository"
)

// TaskReporter はStep Functionsへタスクの成否を通知します
// *sfn.Client が実装します
type TaskReporter interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
}

// PurgeResult はStep Functionsへ返す出力です
type PurgeResult struct {
	Deleted      int64     `json:"deleted"`
	PurgedBefore time.Time `json:"purgedBefore"`
}

// NotificationPurgeBatchService は保持期間を過ぎた通知を削除するバッチ処理を担当します
type NotificationPurgeBatchService struct {
	db               *repository.DB
	notificationRepo repository.NotificationRepository
	reporter         TaskReporter
	cfg              *config.Config
	clock            func() time.Time
}

// NewNotificationPurgeBatchService は新しいNotificationPurgeBatchServiceを作成します
// reporter が nil の場合はStep Functionsへの通知を行いません
func NewNotificationPurgeBatchService(cfg *config.Config, reporter TaskReporter) (*NotificationPurgeBatchService, error) {
	conn, err := database.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	db := repository.NewDB(conn)

	return &NotificationPurgeBatchService{
		db:               db,
		notificationRepo: repository.NewNotificationRepository(db),
		reporter:         reporter,
		cfg:              cfg,
		clock:            time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *NotificationPurgeBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run は期限切れの通知を削除し、結果をStep Functionsへ通知します
func (s *NotificationPurgeBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationPurgeBatchService.Run")
	defer seg.Close(nil)

	startTime := s.clock()
	now := startTime.UTC()

	deleted, err := s.notificationRepo.DeleteExpired(ctx, now)
	if err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to purge expired notifications: %w", err))
	}
	log.Printf("Purged %d notifications expired before %s", deleted, now.Format(time.RFC3339))

	if err := s.sendTaskSuccess(ctx, PurgeResult{Deleted: deleted, PurgedBefore: now}); err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := s.clock().Sub(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("deleted", deleted); err != nil {
		log.Printf("Failed to add deleted metadata: %v", err)
	}
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		log.Printf("Failed to add duration metadata: %v", err)
	}

	log.Printf("Notification purge batch process completed successfully. Duration: %v", duration)
	return nil
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知します
func (s *NotificationPurgeBatchService) sendTaskSuccess(ctx context.Context, result PurgeResult) error {
	// ローカルの場合はStep Functionsの処理をスキップ
	if os.Getenv("ENV") == "LOCAL" || s.reporter == nil {
		log.Printf("Local environment detected. Skipping Step Functions task success notification")
		return nil
	}

	output, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal purge result: %w", err)
	}

	// タスクトークンを設定から取得
	taskToken := s.cfg.SFN.TaskToken
	if taskToken == "" {
		return fmt.Errorf("SFN_TASK_TOKEN is not set in config")
	}

	input := &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(output)),
	}
	if _, err := s.reporter.SendTaskSuccess(ctx, input); err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}

	log.Printf("Successfully sent task success: %s", string(output))
	return nil
}
