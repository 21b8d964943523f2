package srt

import (
	"fmt"
	"time"
)

// SRTConfig SRT 엔진 설정
type SRTConfig struct {
	Port                int           // UDP 포트 (0이면 임의 포트)
	Host                string        // 바인드 주소
	ReadBufferSize      int           // 데이터그램 수신 버퍼 (바이트)
	IdleTimeout         time.Duration // 무응답 연결 정리 시간
	HandshakeTimeout    time.Duration // 미완료 핸드셰이크 정리 시간
	MaxConnections      int           // 최대 동시 연결 수 (핸드셰이크 포함)
	AckInterval         uint32        // ACK 주기 (데이터 패킷 수)
	RTTBias             time.Duration // ACK에 보고하는 RTT 가산값
	AvailableBufferSize uint32        // ACK에 보고하는 수신 버퍼 크기 (패킷)
	IDs                 IDGenerator   // 소켓 ID / 쿠키 생성기 (nil이면 난수)
}

// NewSRTConfig 기본 SRT 설정 생성
func NewSRTConfig(port int) SRTConfig {
	return SRTConfig{
		Port:                port,
		ReadBufferSize:      DefaultReadBufferSize,
		IdleTimeout:         DefaultIdleTimeout,
		HandshakeTimeout:    DefaultHandshakeTimeout,
		MaxConnections:      DefaultMaxConnections,
		AckInterval:         DefaultAckInterval,
		RTTBias:             DefaultRTTBias,
		AvailableBufferSize: DefaultAvailableBufferSize,
	}
}

// ValidateConfig SRT 설정 검증. 비어 있는 값은 기본값으로 채운다.
func (c *SRTConfig) ValidateConfig() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid SRT port: %d (must be 0-65535)", c.Port)
	}

	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.ReadBufferSize < HeaderSize {
		return fmt.Errorf("read buffer size %d is smaller than the packet header", c.ReadBufferSize)
	}

	if c.MaxConnections < 0 {
		return fmt.Errorf("max connections cannot be negative")
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}

	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.AckInterval == 0 {
		c.AckInterval = DefaultAckInterval
	}
	if c.RTTBias < 0 {
		return fmt.Errorf("rtt bias cannot be negative")
	}
	if c.AvailableBufferSize == 0 {
		c.AvailableBufferSize = DefaultAvailableBufferSize
	}
	if c.IDs == nil {
		c.IDs = RandomIDGenerator{}
	}

	return nil
}

// Address 리슨 주소 문자열
func (c *SRTConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Clone 설정 복사본 생성
func (c *SRTConfig) Clone() SRTConfig {
	return *c
}

func (c *SRTConfig) connectionConfig() connectionConfig {
	return connectionConfig{
		ackInterval:         c.AckInterval,
		rttBias:             c.RTTBias,
		availableBufferSize: c.AvailableBufferSize,
	}
}
