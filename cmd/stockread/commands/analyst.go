package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// analystCmd represents the analyst command
var analystCmd = &cobra.Command{
	Use:   "analyst",
	Short: "티어별 배치 분석",
	Long: `S&P 500 유니버스를 시가총액 티어로 나눠 배치 분석합니다.

Subcommands:
  run   - 장중 스케줄에 따라 계속 실행
  once  - 장 시간과 무관하게 지금 한 번 실행

Example:
  go run ./cmd/stockread analyst run
  go run ./cmd/stockread analyst once --tier top`,
}

var (
	analystRunCmd = &cobra.Command{
		Use:   "run",
		Short: "스케줄 실행 (Ctrl+C로 종료)",
		RunE:  runAnalyst,
	}

	analystOnceCmd = &cobra.Command{
		Use:   "once",
		Short: "지정 티어 즉시 분석",
		RunE:  runAnalystOnce,
	}
)

var (
	analystTiers []string
)

func init() {
	rootCmd.AddCommand(analystCmd)
	analystCmd.AddCommand(analystRunCmd)
	analystCmd.AddCommand(analystOnceCmd)

	// Flags
	analystOnceCmd.Flags().StringSliceVar(&analystTiers, "tier", nil, "분석할 티어 (default: 전체)")
}

func runAnalyst(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	an, err := a.newAnalyst()
	if err != nil {
		return err
	}
	if err := an.Init(ctx); err != nil {
		return fmt.Errorf("init analyst: %w", err)
	}

	fmt.Println("🚀 Analyst started. Press Ctrl+C to stop")
	return an.Run(ctx)
}

func runAnalystOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	an, err := a.newAnalyst()
	if err != nil {
		return err
	}
	if err := an.Init(ctx); err != nil {
		return fmt.Errorf("init analyst: %w", err)
	}

	tiers := analystTiers
	if len(tiers) == 0 {
		for _, t := range a.schedule.Tiers {
			tiers = append(tiers, t.Name)
		}
	}

	report, err := an.RunTiers(ctx, tiers)
	PrintRunReport(report)
	return err
}
