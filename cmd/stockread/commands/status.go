package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "연결 상태 확인",
	Long: `데이터베이스, Redis, AI 키, 분석 큐, 스케줄 작업 상태를 출력합니다.

Example:
  go run ./cmd/stockread status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("stockread status")

	dbStatus := "connected"
	if err := a.store.Ping(ctx); err != nil {
		dbStatus = "error: " + err.Error()
	}
	PrintKeyValue("Environment", a.cfg.Env, 16)
	PrintKeyValue("Database", dbStatus, 16)
	PrintKeyValue("Redis", a.redis.Status(ctx), 16)

	key := a.cfg.AIKey()
	aiStatus := "missing"
	if key != "" {
		aiStatus = fmt.Sprintf("configured (%d chars)", len(key))
	}
	PrintKeyValue("AI provider", a.cfg.AI.Provider, 16)
	PrintKeyValue("AI key", aiStatus, 16)

	if a.redis.Enabled() {
		if n, err := a.queue.Len(ctx); err == nil {
			PrintKeyValue("Queue", fmt.Sprintf("%s (%d pending)", a.queue.Key(), n), 16)
		}
	} else {
		PrintKeyValue("Queue", "disabled (polling)", 16)
	}

	open := "closed"
	if a.hours.IsOpen(time.Now()) {
		open = "open"
	}
	PrintKeyValue("Market", open, 16)

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	fmt.Println()
	widths := []int{18, 16}
	PrintTableHeader([]string{"Job", "Schedule"}, widths)
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}
	return nil
}
