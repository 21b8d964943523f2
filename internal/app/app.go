package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"srtingest/internal/api"
	"srtingest/internal/ingest"
	"srtingest/pkg/srt"
	"srtingest/pkg/utils"
)

// App represents the main application
type App struct {
	config       *ingest.Config
	ingestServer *ingest.Server
	apiServer    *api.Server
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApp creates a new application instance
func NewApp(configPath string) (*App, error) {
	// 설정 로드
	config, err := ingest.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 설정을 기반으로 로거 초기화
	InitLogger(config)

	var (
		metrics  *srt.Metrics
		gatherer prometheus.Gatherer
	)
	if config.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = srt.NewMetrics(reg)
		gatherer = reg
	}

	sink, err := ingest.NewSink(config.Ingest.RelayAddr)
	if err != nil {
		return nil, err
	}

	// 수집 서버 생성
	ingestServer, err := ingest.NewServer(config, sink, metrics)
	if err != nil {
		utils.CloseWithLog("sink", sink)
		return nil, err
	}

	// API 서버 생성 (수집 서버를 DI)
	var apiServer *api.Server
	if config.API.Enabled {
		apiServer = api.NewServer(strconv.Itoa(config.API.Port), ingestServer, gatherer)
	}

	// 취소 가능한 컨텍스트 생성
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		config:       config,
		ingestServer: ingestServer,
		apiServer:    apiServer,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Run 서버를 시작하고 종료 시그널까지 대기
func (app *App) Run() error {
	slog.Info("Application starting...")

	if err := app.ingestServer.Start(); err != nil {
		return fmt.Errorf("failed to start ingest server: %w", err)
	}

	if app.apiServer != nil {
		if err := app.apiServer.Start(); err != nil {
			app.ingestServer.Stop()
			return fmt.Errorf("failed to start API server: %w", err)
		}
		slog.Info("API Server started", "port", app.config.API.Port)
	}

	// 시그널 처리
	app.waitForShutdown()
	return nil
}

// Stop 외부에서 종료 요청
func (app *App) Stop() {
	app.cancel()
}

// waitForShutdown waits for shutdown signals and performs graceful shutdown
func (app *App) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down application", "signal", sig)
	case <-app.ctx.Done():
		slog.Info("Context cancelled, shutting down application")
	}

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *App) shutdown() {
	slog.Info("Stopping application...")

	app.cancel()

	if app.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.apiServer.Stop(ctx); err != nil {
			slog.Error("API server shutdown failed", "err", err)
		}
	}

	// 수집 서버 종료 (연결된 피어에 Shutdown 전송)
	app.ingestServer.Stop()

	slog.Info("Application stopped successfully")
}
