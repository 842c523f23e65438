package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/internal/marketdata"
)

var analyzeText string

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "단일 종목 AI 분석",
	Long: `한 종목의 시장 데이터를 수집하고 AI 분석 결과를 출력합니다.
결과는 저장하지 않습니다.

Example:
  go run ./cmd/stockread analyze AAPL
  go run ./cmd/stockread analyze NVDA --text "실적 발표 앞두고 매수?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "함께 분석할 사용자 글")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ticker, err := marketdata.NormalizeTicker(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.generator.Available() {
		return fmt.Errorf("AI provider %s is not configured", a.cfg.AI.Provider)
	}

	snap, err := a.market.Snapshot(ctx, ticker)
	if err != nil {
		if errors.Is(err, contracts.ErrNoData) {
			PrintWarning(fmt.Sprintf("%s: invalid ticker (no market data)", ticker))
			return nil
		}
		return fmt.Errorf("snapshot: %w", err)
	}

	tech, err := a.market.Technicals(ctx, ticker)
	if err != nil {
		a.log.WithError(err).WithField("ticker", ticker).Warn("technicals unavailable")
	}

	req := contracts.AnalysisRequest{
		Ticker:     ticker,
		Snapshot:   snap,
		Technicals: tech,
		News:       a.market.News(ctx, ticker, 3),
		Social:     a.market.Social(ctx, ticker, 5),
		Macro:      a.market.Macro(ctx),
		UserText:   analyzeText,
	}

	ins, err := a.generator.Analyze(ctx, req)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", ticker, err)
	}

	PrintHeader(fmt.Sprintf("%s 분석", ticker))
	if snap.Price != nil {
		PrintKeyValue("Price", fmt.Sprintf("%.2f", *snap.Price), 14)
	}
	PrintKeyValue("VIX", req.Macro.Sentiment, 14)
	PrintKeyValue("Headlines", fmt.Sprintf("%d", len(req.News)), 14)
	PrintInsight(ticker, ins)
	return nil
}
