package app

import (
	"log/slog"
	"os"

	"srtingest/internal/ingest"
)

// InitLogger 설정의 로그 레벨로 기본 slog 로거 설정
func InitLogger(config *ingest.Config) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.GetSlogLevel(),
	})
	slog.SetDefault(slog.New(handler))
}
