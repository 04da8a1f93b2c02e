package utils

import (
	"context"
	"fmt"
	"time"
)

// RunWithTimeout は fn を timeout 以内で実行します
// 時間内に終わらない場合はコンテキストをキャンセルし、context.DeadlineExceeded をラップしたエラーを返します
// 呼び出し元のコンテキストがキャンセルされた場合はその理由を返します
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("batch process stopped after %v: %w", timeout, ctx.Err())
	}
}
