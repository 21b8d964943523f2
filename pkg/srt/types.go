package srt

import (
	"net"
	"time"
)

// Descriptor 수립된 연결을 콜백 쪽에 설명하는 정보
type Descriptor struct {
	StreamID      *string       // 핸드셰이크의 스트림 ID (없으면 nil)
	StreamInfo    *StreamIDInfo // 파싱된 스트림 ID (파싱 실패 또는 없음이면 nil)
	PeerAddr      net.Addr
	PeerSocketID  uint32
	LocalSocketID uint32
	Established   time.Time
}

// StreamKey 스트림 식별 키. 스트림 ID가 없으면 피어 주소를 사용한다.
func (d *Descriptor) StreamKey() string {
	if d.StreamInfo != nil {
		return d.StreamInfo.GetStreamKey()
	}
	if d.StreamID != nil && *d.StreamID != "" {
		return *d.StreamID
	}
	if d.PeerAddr != nil {
		return d.PeerAddr.String()
	}
	return ""
}

// Handler 연결 이벤트 콜백. 디스패처의 수신 고루틴에서 동기적으로 호출되므로
// 콜백 안에서 엔진으로 다시 진입하면 안 된다.
type Handler interface {
	OnConnect(d *Descriptor)
	OnDisconnect(d *Descriptor, reason string)
	OnData(d *Descriptor, payload []byte)
}

// 연결 종료 사유
const (
	ReasonShutdown     = "shutdown"
	ReasonIdleTimeout  = "idle_timeout"
	ReasonServerClosed = "server_closed"
)

// ConnectionStats 연결 통계 스냅샷
type ConnectionStats struct {
	PeerAddr        string        `json:"peerAddr"`
	LocalSocketID   uint32        `json:"localSocketId"`
	PeerSocketID    uint32        `json:"peerSocketId"`
	StreamID        string        `json:"streamId,omitempty"`
	ConnectedAt     time.Time     `json:"connectedAt"`
	LastActivity    time.Time     `json:"lastActivity"`
	PacketsReceived uint64        `json:"packetsReceived"`
	BytesReceived   uint64        `json:"bytesReceived"`
	ControlReceived uint64        `json:"controlReceived"`
	PacketsLost     uint64        `json:"packetsLost"`
	AcksSent        uint64        `json:"acksSent"`
	NaksSent        uint64        `json:"naksSent"`
	LastSequence    uint32        `json:"lastSequence"`
	RTT             time.Duration `json:"rtt"`
	RTTVariance     time.Duration `json:"rttVariance"`
}
