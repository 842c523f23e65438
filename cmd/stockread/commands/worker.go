package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "포스트 팩트체크 워커",
	Long: `사용자 포스트를 분석하는 컨슈머를 실행합니다.

이 워커는:
- Redis 큐(BLPOP)에서 작업을 즉시 처리
- 큐를 쓸 수 없으면 미분석 포스트 폴링으로 전환
- 폴링 중에도 주기적으로 큐를 재확인
- Graceful shutdown 지원

Example:
  go run ./cmd/stockread worker`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runner := a.newRunner()
	if err := runner.Init(ctx); err != nil {
		return fmt.Errorf("init consumer: %w", err)
	}

	fmt.Printf("🚀 Worker started (%s). Press Ctrl+C to stop\n", runner.Active())
	err = runner.Run(ctx)

	stats := a.processor.Stats()
	fmt.Printf("\nProcessed: %d, invalid: %d, failed: %d\n", stats.Processed, stats.Invalid, stats.Failed)
	return err
}
