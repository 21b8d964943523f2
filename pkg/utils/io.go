package utils

import (
	"io"
	"log/slog"
)

// CloseWithLog 리소스를 닫고 실패하면 이름과 함께 에러 로그를 남긴다
func CloseWithLog(name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Error("Error closing resource", "resource", name, "err", err)
	}
}
