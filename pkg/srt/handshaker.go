package srt

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"
)

// HandshakeState 핸드셰이크 진행 상태
type HandshakeState int

const (
	AwaitingInduction HandshakeState = iota
	AwaitingConversion
	Established
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case AwaitingInduction:
		return "awaiting_induction"
	case AwaitingConversion:
		return "awaiting_conversion"
	case Established:
		return "established"
	default:
		return "failed"
	}
}

// IDGenerator 이 쪽에서 할당하는 소켓 ID와 SYN 쿠키 생성 전략
type IDGenerator interface {
	SocketID() uint32
	Cookie() uint32
}

// RandomIDGenerator crypto/rand 기반 0이 아닌 임의 값 생성
type RandomIDGenerator struct{}

func (RandomIDGenerator) SocketID() uint32 { return randomNonZero() }
func (RandomIDGenerator) Cookie() uint32   { return randomNonZero() }

func randomNonZero() uint32 {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			// crypto/rand 실패 시 시간 기반 값으로 대체
			return uint32(time.Now().UnixNano()) | 1
		}
		if v := binary.BigEndian.Uint32(b[:]); v != 0 {
			return v
		}
	}
}

// FixedIDGenerator 항상 같은 값을 반환 (테스트 픽스처)
type FixedIDGenerator struct {
	ID        uint32
	SynCookie uint32
}

func (g FixedIDGenerator) SocketID() uint32 { return g.ID }
func (g FixedIDGenerator) Cookie() uint32   { return g.SynCookie }

// CounterIDGenerator 시작값부터 1씩 증가하는 소켓 ID, 쿠키는 임의 값
type CounterIDGenerator struct {
	next atomic.Uint32
}

func NewCounterIDGenerator(start uint32) *CounterIDGenerator {
	g := &CounterIDGenerator{}
	g.next.Store(start)
	return g
}

func (g *CounterIDGenerator) SocketID() uint32 { return g.next.Add(1) - 1 }
func (g *CounterIDGenerator) Cookie() uint32   { return randomNonZero() }

// Session 핸드셰이크 완료 후 생성되는 세션 정보
type Session struct {
	LocalSocketID   uint32
	PeerSocketID    uint32
	StreamID        *string
	InitialSequence uint32
	Established     time.Time
	Handshake       *Handshake // 수락된 conversion 핸드셰이크
}

// Handshaker 피어 하나에 대한 induction/conversion 교환 상태 머신
type Handshaker struct {
	state    HandshakeState
	ids      IDGenerator
	socketID uint32
	cookie   uint32
	session  *Session
}

// NewHandshaker 새 핸드셰이크 상태 머신 생성
func NewHandshaker(ids IDGenerator) *Handshaker {
	if ids == nil {
		ids = RandomIDGenerator{}
	}
	return &Handshaker{
		state: AwaitingInduction,
		ids:   ids,
	}
}

// State 현재 상태
func (h *Handshaker) State() HandshakeState {
	return h.state
}

// Session 수립된 세션 (Established 상태에서만 non-nil)
func (h *Handshaker) Session() *Session {
	return h.session
}

// Handle 핸드셰이크 패킷을 처리하고 보낼 응답을 반환한다.
// 실패하면 ErrHandshakeFailure를 반환하고 상태 머신은 HandshakeFailed가 된다.
func (h *Handshaker) Handle(in *Packet, now time.Time) (*Packet, error) {
	hs, ok := in.Content.(*Handshake)
	if !ok {
		return nil, h.fail("expected handshake, got %T", in.Content)
	}

	switch h.state {
	case AwaitingInduction:
		return h.handleInduction(in, hs)
	case AwaitingConversion:
		return h.handleConversion(in, hs, now)
	default:
		return nil, h.fail("handshake packet in state %s", h.state)
	}
}

// handleInduction v5로 강제하고 매직 코드와 이 쪽 소켓 ID/쿠키를 실어 응답
func (h *Handshaker) handleInduction(in *Packet, hs *Handshake) (*Packet, error) {
	if hs.Type != HandshakeInduction {
		return nil, h.fail("expected induction, got %s", hs.Type)
	}

	h.socketID = h.ids.SocketID()
	h.cookie = h.ids.Cookie()

	reply := hs.Clone()
	reply.Version = 5
	reply.ExtensionField = HandshakeMagicCode
	reply.SRTSocketID = h.socketID
	reply.SynCookie = h.cookie

	h.state = AwaitingConversion

	return &Packet{
		Timestamp:    in.Timestamp + 1,
		DestSocketID: hs.SRTSocketID,
		Content:      reply,
	}, nil
}

// handleConversion 쿠키 확인 후 받은 핸드셰이크를 그대로 돌려보내 수락
func (h *Handshaker) handleConversion(in *Packet, hs *Handshake, now time.Time) (*Packet, error) {
	if hs.Type != HandshakeConclusion {
		return nil, h.fail("expected conclusion, got %s", hs.Type)
	}
	if hs.SynCookie != h.cookie {
		return nil, h.fail("syn cookie mismatch: got 0x%08x, issued 0x%08x", hs.SynCookie, h.cookie)
	}

	h.session = &Session{
		LocalSocketID:   h.socketID,
		PeerSocketID:    hs.SRTSocketID,
		StreamID:        hs.StreamIDValue(),
		InitialSequence: hs.InitialSequenceNumber & MaxSequenceNumber,
		Established:     now,
		Handshake:       hs.Clone(),
	}
	h.state = Established

	return &Packet{
		Timestamp:    in.Timestamp + 1,
		DestSocketID: hs.SRTSocketID,
		Content:      hs.Clone(),
	}, nil
}

func (h *Handshaker) fail(format string, args ...any) error {
	h.state = HandshakeFailed
	h.session = nil
	return fmt.Errorf("%w: %s", ErrHandshakeFailure, fmt.Sprintf(format, args...))
}
