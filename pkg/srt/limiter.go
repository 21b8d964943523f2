package srt

import "sync"

// ConnectionLimiter 피어 수 제한 (진행 중인 핸드셰이크 포함)
type ConnectionLimiter struct {
	maxConnections int
	current        int
	mutex          sync.RWMutex
}

// NewConnectionLimiter 새 연결 제한기 생성. 0 이하면 제한하지 않는다.
func NewConnectionLimiter(maxConnections int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxConnections: maxConnections,
	}
}

// Acquire 슬롯 획득 시도
func (l *ConnectionLimiter) Acquire() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.maxConnections > 0 && l.current >= l.maxConnections {
		return false
	}

	l.current++
	return true
}

// Release 슬롯 반환
func (l *ConnectionLimiter) Release() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.current > 0 {
		l.current--
	}
}

// Current 사용 중인 슬롯 수
func (l *ConnectionLimiter) Current() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.current
}

// Max 최대 슬롯 수
func (l *ConnectionLimiter) Max() int {
	return l.maxConnections
}
