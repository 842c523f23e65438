package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockread",
	Short: "Stockread - AI 종목 분석 파이프라인",
	Long: `Stockread Unified CLI

시장 데이터 수집 → LLM 분석 → 결과 저장 파이프라인.
배치 애널리스트, 포스트 팩트체크 컨슈머, 주기 작업, HTTP API.

Usage:
  go run ./cmd/stockread [command]

Examples:
  go run ./cmd/stockread serve
  go run ./cmd/stockread analyst once --tier top
  go run ./cmd/stockread analyze AAPL
  go run ./cmd/stockread enqueue 42 TSLA`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file (default: .env search path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
