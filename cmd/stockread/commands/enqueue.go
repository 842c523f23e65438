package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/stockread/internal/consumer"
	"github.com/wonny/stockread/internal/contracts"
)

// enqueueCmd represents the enqueue command
var enqueueCmd = &cobra.Command{
	Use:   "enqueue [post_id] [ticker]",
	Short: "분석 작업을 큐에 추가",
	Long: `게시글 분석 작업을 Redis 큐에 넣습니다.
Redis가 설정되지 않았으면 실패합니다 (worker는 폴링으로 처리).

Example:
  go run ./cmd/stockread enqueue 42 AAPL`,
	Args: cobra.ExactArgs(2),
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %q", args[0])
	}
	job := contracts.AnalysisJob{
		PostID: postID,
		Ticker: strings.ToUpper(strings.TrimSpace(args[1])),
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := consumer.EnqueueJob(ctx, a.queue, job); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	n, _ := a.queue.Len(ctx)
	PrintSuccess(fmt.Sprintf("post %d (%s) queued, %d job(s) pending", job.PostID, job.Ticker, n))
	return nil
}
