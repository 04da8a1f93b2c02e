package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	flag "github.com/spf13/pflag"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/config"
	"github.com/uma-arai/sbcntr-homeservice/internal/common/utils"
	"github.com/uma-arai/sbcntr-homeservice/internal/service/batch"
)

const serviceName = "homeservice-notification-purge"

func main() {
	timeout := flag.Duration("timeout", 0, "バッチ処理のタイムアウト時間 (未指定の場合は BATCH_TIMEOUT)")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	local := os.Getenv("ENV") == "LOCAL"
	taskToken := "DUMMY_TASK_TOKEN"
	if !local {
		if flag.NArg() == 0 || flag.Arg(flag.NArg()-1) == "" {
			log.Fatalf("Task token is required")
		}
		taskToken = flag.Arg(flag.NArg() - 1)
	}

	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}
	if *timeout <= 0 {
		*timeout = cfg.BatchTimeout
	}

	if cfg.EnableTracing {
		utils.ConfigureTracing()
	}

	// Step Functionsクライアントの初期化
	var sfnClient *sfn.Client
	var reporter batch.TaskReporter
	if !local {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v\nStack trace:\n%s", err, debug.Stack())
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
		reporter = sfnClient
	}

	service, err := batch.NewNotificationPurgeBatchService(cfg, reporter)
	if err != nil {
		log.Fatalf("Failed to create service: %v\nStack trace:\n%s", err, debug.Stack())
	}
	defer service.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, serviceName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			log.Printf("Failed to add timeout metadata: %v", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Printf("Notification purge failed: %v", err)

			if sfnClient != nil {
				input := &sfn.SendTaskFailureInput{
					TaskToken: aws.String(taskToken),
					Error:     aws.String("NotificationPurgeFailed"),
					Cause:     aws.String(err.Error()),
				}
				if _, err := sfnClient.SendTaskFailure(context.Background(), input); err != nil {
					log.Printf("Failed to send task failure: %v", err)
				}
			}

			service.Close()
			os.Exit(1)
		}
		log.Println("Notification purge completed successfully")
	}
}
