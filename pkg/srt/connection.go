package srt

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// PacketWriter 응답 송신에 필요한 net.PacketConn 의 일부
type PacketWriter interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

type connectionConfig struct {
	ackInterval         uint32
	rttBias             time.Duration
	availableBufferSize uint32
}

// Connection 핸드셰이크가 끝난 피어 하나의 신뢰성 상태
type Connection struct {
	desc    *Descriptor
	writer  PacketWriter
	handler Handler
	metrics *Metrics
	config  connectionConfig
	now     func() time.Time

	// Handle 직렬화. loss 는 이 락 아래에서만 접근한다.
	mu   sync.Mutex
	loss lossDetector

	ack        *ackScheduler
	ackCounter atomic.Uint32
	rtt        rttTracker

	lastActivity atomic.Int64
	closed       atomic.Bool

	// 통계
	packetsReceived atomic.Uint64
	bytesReceived   atomic.Uint64
	controlReceived atomic.Uint64
	packetsLost     atomic.Uint64
	acksSent        atomic.Uint64
	naksSent        atomic.Uint64
}

func newConnection(session *Session, peer net.Addr, w PacketWriter, h Handler,
	config connectionConfig, metrics *Metrics, now func() time.Time) *Connection {

	if now == nil {
		now = time.Now
	}

	desc := &Descriptor{
		StreamID:      session.StreamID,
		PeerAddr:      peer,
		PeerSocketID:  session.PeerSocketID,
		LocalSocketID: session.LocalSocketID,
		Established:   session.Established,
	}
	if session.StreamID != nil && *session.StreamID != "" {
		info, err := ParseStreamID(*session.StreamID)
		if err != nil {
			slog.Debug("Unparsable SRT stream id", "streamID", *session.StreamID, "err", err)
		} else {
			desc.StreamInfo = info
		}
	}

	c := &Connection{
		desc:    desc,
		writer:  w,
		handler: h,
		metrics: metrics,
		config:  config,
		now:     now,
		loss:    newLossDetector(session.InitialSequence),
		ack:     newAckScheduler(config.ackInterval),
	}
	c.ackCounter.Store(1)
	c.lastActivity.Store(now().UnixNano())

	return c
}

// Descriptor 연결 설명 정보
func (c *Connection) Descriptor() *Descriptor {
	return c.desc
}

// Closed 피어가 Shutdown을 보냈거나 연결이 정리되었는지
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// LastActivity 마지막 패킷 수신 시각
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// Handle 수신 패킷 처리. 제어 패킷은 프로토콜 응답을, 데이터 패킷은 손실 감지,
// ACK 스케줄링, 페이로드 전달을 일으킨다. 송신 실패는 ErrIO로 감싸 반환한다.
func (c *Connection) Handle(p *Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}
	c.lastActivity.Store(c.now().UnixNano())

	switch content := p.Content.(type) {
	case *DataPacket:
		return c.handleData(content)
	case Control:
		c.controlReceived.Add(1)
		return c.handleControl(content)
	default:
		return fmt.Errorf("%w: packet without content", ErrMalformedPacket)
	}
}

func (c *Connection) handleControl(ctrl Control) error {
	switch msg := ctrl.(type) {
	case KeepAlive:
		return c.send(KeepAlive{})

	case AckAck:
		rtt, ok := c.rtt.observeAckAck(msg.AckNumber, c.now())
		if !ok {
			slog.Debug("SRT ackack without matching ack", "socketID", c.desc.LocalSocketID, "ackNumber", msg.AckNumber)
			return nil
		}
		c.metrics.rtt(rtt.Seconds())
		slog.Debug("SRT rtt updated", "socketID", c.desc.LocalSocketID, "ackNumber", msg.AckNumber, "rtt", rtt)
		return nil

	case Shutdown:
		c.closed.Store(true)
		slog.Info("SRT peer requested shutdown", "socketID", c.desc.LocalSocketID, "remoteAddr", c.desc.PeerAddr)
		return nil

	default:
		slog.Debug("Ignoring SRT control packet", "socketID", c.desc.LocalSocketID, "type", ctrl.ControlType())
		return nil
	}
}

func (c *Connection) handleData(d *DataPacket) error {
	var errs []error

	c.packetsReceived.Add(1)
	c.bytesReceived.Add(uint64(len(d.Payload)))

	if lost, ok := c.loss.observe(d.SequenceNumber, d.MessageNumber); ok {
		c.packetsLost.Add(1)
		c.metrics.lost()
		slog.Debug("SRT sequence gap", "socketID", c.desc.LocalSocketID, "sequence", d.SequenceNumber, "lost", lost)

		if err := c.send(Nak{LostPacket: lost}); err != nil {
			errs = append(errs, err)
		} else {
			c.naksSent.Add(1)
		}
	}

	if c.ack.tick() {
		if err := c.sendAck(d.SequenceNumber); err != nil {
			errs = append(errs, err)
		}
	}

	c.metrics.data(len(d.Payload))
	if c.handler != nil {
		c.handler.OnData(c.desc, d.Payload)
	}

	return errors.Join(errs...)
}

// sendAck 마지막 ACK 기록은 송신과 같은 락 안에서 갱신되어야 ACKACK 경로가
// 기록되지 않은 ACK 번호를 보지 않는다.
func (c *Connection) sendAck(seq uint32) error {
	c.rtt.mu.Lock()
	defer c.rtt.mu.Unlock()

	ackNumber := c.ackCounter.Add(1) - 1
	ack := AckSmall{
		AckNumber:           ackNumber,
		LastAckedSequence:   (seq + 1) & MaxSequenceNumber,
		RTT:                 c.rtt.estimate() + uint32(c.config.rttBias.Microseconds()),
		RTTVariance:         c.rtt.variance(),
		AvailableBufferSize: c.config.availableBufferSize,
	}

	sentAt := c.now()
	if err := c.send(ack); err != nil {
		return err
	}
	c.rtt.recordLocked(ackNumber, sentAt)
	c.acksSent.Add(1)

	return nil
}

// sendShutdown 서버 종료 시 피어에 Shutdown 통보
func (c *Connection) sendShutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.send(Shutdown{})
}

// close 연결을 닫힘으로 표시. 처음 닫는 호출만 true
func (c *Connection) close() bool {
	return c.closed.CompareAndSwap(false, true)
}

func (c *Connection) send(ctrl Control) error {
	data, err := c.pack(ctrl).MarshalBinary()
	if err != nil {
		return err
	}

	if _, err := c.writer.WriteTo(data, c.desc.PeerAddr); err != nil {
		return fmt.Errorf("%w: send %s to %s: %w", ErrIO, ctrl.ControlType(), c.desc.PeerAddr, err)
	}
	c.metrics.controlPacketSent(ctrl.ControlType())

	return nil
}

// pack 세션 수립 이후 경과 시간(마이크로초)을 타임스탬프로 붙인다.
func (c *Connection) pack(ctrl Control) *Packet {
	elapsed := c.now().Sub(c.desc.Established).Microseconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return &Packet{
		Timestamp:    uint32(elapsed),
		DestSocketID: c.desc.PeerSocketID,
		Content:      ctrl,
	}
}

// Stats 통계 스냅샷
func (c *Connection) Stats() ConnectionStats {
	c.mu.Lock()
	lastSequence := c.loss.last()
	c.mu.Unlock()

	stats := ConnectionStats{
		LocalSocketID:   c.desc.LocalSocketID,
		PeerSocketID:    c.desc.PeerSocketID,
		ConnectedAt:     c.desc.Established,
		LastActivity:    c.LastActivity(),
		PacketsReceived: c.packetsReceived.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		ControlReceived: c.controlReceived.Load(),
		PacketsLost:     c.packetsLost.Load(),
		AcksSent:        c.acksSent.Load(),
		NaksSent:        c.naksSent.Load(),
		LastSequence:    lastSequence,
		RTT:             time.Duration(c.rtt.estimate()) * time.Microsecond,
		RTTVariance:     time.Duration(c.rtt.variance()) * time.Microsecond,
	}
	if c.desc.PeerAddr != nil {
		stats.PeerAddr = c.desc.PeerAddr.String()
	}
	if c.desc.StreamID != nil {
		stats.StreamID = *c.desc.StreamID
	}

	return stats
}
