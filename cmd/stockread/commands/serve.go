package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/stockread/internal/api"
	"github.com/wonny/stockread/internal/api/handlers"
	"github.com/wonny/stockread/internal/supervisor"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 + 전체 백그라운드 서비스 시작",
	Long: `HTTP API와 모든 백그라운드 서비스를 하나의 프로세스로 실행합니다.

Services:
  analyst    - 장중 티어별 배치 분석 (ENABLE_ANALYST)
  consumer   - 포스트 팩트체크 (Redis 큐, 실패 시 폴링) (ENABLE_CONSUMER)
  scheduler  - 시세/뉴스/유지보수/유니버스 작업 (ENABLE_JOBS)
  stream     - /ws/insights 실시간 스트림
  api        - HTTP API

Endpoints:
  POST /ingest      - 포스트 즉시 분석
  POST /analyze     - 종목 분석
  POST /summarize   - 종목/포스트 요약
  GET  /services    - 서비스 상태
  GET  /healthz     - 헬스 체크
  GET  /ws/insights - 실시간 인사이트

Example:
  go run ./cmd/stockread serve
  go run ./cmd/stockread serve --port 9000`,
	RunE: runServe,
}

var (
	servePort string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default: PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	sup := supervisor.New(a.cfg.Supervisor.ShutdownTimeout, a.log)
	if err := registerServices(a, sup); err != nil {
		return err
	}

	// HTTP API (supervisor 상태를 /services, /healthz로 노출)
	insightHandler := handlers.NewInsightHandler(a.processor, a.market, a.generator, a.store, a.store, a.log)
	systemHandler := handlers.NewSystemHandler(sup, a.redis, a.store, handlers.SystemInfo{
		Env:        a.cfg.Env,
		AIProvider: a.cfg.AI.Provider,
		AIKey:      a.cfg.AIKey(),
	}, a.log)
	router := api.NewRouter(insightHandler, systemHandler, a.hub, api.RouterOptions{
		RateLimit: a.cfg.API.RateLimit,
		RateBurst: a.cfg.API.RateBurst,
	}, a.log)
	if err := sup.Register("api", api.New(a.cfg, a.log, router)); err != nil {
		return err
	}

	sup.Start(ctx)
	sum := supervisor.Summarize(sup.Status())
	a.log.WithFields(map[string]interface{}{
		"services": sum.Total,
		"running":  sum.Running,
		"failed":   sum.Failed,
		"port":     a.cfg.Port,
	}).Info("Stockread started")

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	<-ctx.Done()
	a.log.Info("Shutdown signal received")
	sup.Stop()

	for name, st := range sup.Status() {
		if st.ShutdownStatus == supervisor.ShutdownTimeout {
			a.log.WithField("service", name).Warn("Service did not stop in time")
		}
	}
	return nil
}

// registerServices adds the enabled background services
func registerServices(a *app, sup *supervisor.Supervisor) error {
	if err := sup.Register("stream", a.hub); err != nil {
		return err
	}

	if a.cfg.Supervisor.EnableAnalyst {
		an, err := a.newAnalyst()
		if err != nil {
			return fmt.Errorf("init analyst: %w", err)
		}
		if err := sup.Register("analyst", an); err != nil {
			return err
		}
	}

	if a.cfg.Supervisor.EnableConsumer {
		if err := sup.Register("consumer", a.newRunner()); err != nil {
			return err
		}
	}

	if a.cfg.Supervisor.EnableJobs {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		if err := sup.Register("scheduler", sched); err != nil {
			return err
		}
	}
	return nil
}
