package ingest

import (
	"fmt"
	"log/slog"
	"net"
)

// Sink 수락된 스트림 페이로드의 전달 대상. 페이로드는 해석하지 않는다.
type Sink interface {
	Write(stream Stream, payload []byte) error
	Close() error
}

// NewSink relayAddr가 비어 있으면 버리는 싱크, 아니면 UDP 중계 싱크 생성
func NewSink(relayAddr string) (Sink, error) {
	if relayAddr == "" {
		return discardSink{}, nil
	}
	return NewUDPRelaySink(relayAddr)
}

type discardSink struct{}

func (discardSink) Write(Stream, []byte) error { return nil }
func (discardSink) Close() error               { return nil }

// UDPRelaySink 페이로드를 UDP 목적지로 그대로 전달 (예: ffmpeg udp:// 입력)
type UDPRelaySink struct {
	conn net.Conn
}

func NewUDPRelaySink(addr string) (*UDPRelaySink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open relay %s: %w", addr, err)
	}
	slog.Info("Relaying ingest payloads", "addr", conn.RemoteAddr())
	return &UDPRelaySink{conn: conn}, nil
}

func (s *UDPRelaySink) Write(stream Stream, payload []byte) error {
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("relay %s: %w", stream.Key, err)
	}
	return nil
}

func (s *UDPRelaySink) Close() error {
	return s.conn.Close()
}
