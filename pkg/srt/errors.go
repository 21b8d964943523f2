package srt

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrMalformedPacket 길이 부족, 잘못된 필드 조합 등 디코딩 불가능한 데이터그램
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrUnknownControlType 헤더는 정상이지만 매핑되지 않은 제어 타입
	ErrUnknownControlType = fmt.Errorf("%w: unknown control type", ErrMalformedPacket)

	// ErrHandshakeFailure 핸드셰이크 중 잘못된 패킷 종류 또는 상태
	ErrHandshakeFailure = errors.New("handshake failure")

	// ErrIO 소켓 송수신 실패
	ErrIO = errors.New("srt i/o error")

	ErrServerClosed     = errors.New("srt server closed")
	ErrConnectionClosed = errors.New("srt connection closed")
	ErrTooManyPeers     = errors.New("too many srt peers")
)
