package srt

import (
	"fmt"

	"srtingest/pkg/bits"
)

// ACK 본문 길이 (바이트)
const (
	ackLightSize = 4
	ackSmallSize = 16
	ackFullSize  = 28
)

// KeepAlive 연결 유지 확인
type KeepAlive struct{}

// Shutdown 연결 종료 요청
type Shutdown struct{}

// CongestionWarning 혼잡 경고 (수신자 -> 송신자)
type CongestionWarning struct{}

// AckFull 전체 ACK
type AckFull struct {
	AckNumber             uint32
	LastAckedSequence     uint32
	RTT                   uint32 // 마이크로초
	RTTVariance           uint32 // 마이크로초
	AvailableBufferSize   uint32 // 패킷
	PacketsReceivingRate  uint32 // 패킷/초
	EstimatedLinkCapacity uint32 // 패킷/초
	ReceivingRate         uint32 // 바이트/초
}

// AckSmall 축약 ACK
type AckSmall struct {
	AckNumber           uint32
	LastAckedSequence   uint32
	RTT                 uint32
	RTTVariance         uint32
	AvailableBufferSize uint32
}

// AckLight 마지막 시퀀스만 담는 경량 ACK. ACKACK 대상이 아니므로 ACK 번호가 없다.
type AckLight struct {
	LastAckedSequence uint32
}

// AckAck ACK 수신 확인 (RTT 측정용)
type AckAck struct {
	AckNumber uint32
}

// Nak 손실 보고
type Nak struct {
	LostPacket uint32
}

// DropReq 메시지 폐기 요청
type DropReq struct {
	MessageNumber uint32
	FirstSequence uint32
	LastSequence  uint32
}

// PeerError 피어 오류 보고
type PeerError struct {
	ErrorCode uint32
}

func (KeepAlive) isContent()         {}
func (Shutdown) isContent()          {}
func (CongestionWarning) isContent() {}
func (AckFull) isContent()           {}
func (AckSmall) isContent()          {}
func (AckLight) isContent()          {}
func (AckAck) isContent()            {}
func (Nak) isContent()               {}
func (DropReq) isContent()           {}
func (PeerError) isContent()         {}

func (KeepAlive) ControlType() ControlType         { return ControlKeepAlive }
func (Shutdown) ControlType() ControlType          { return ControlShutdown }
func (CongestionWarning) ControlType() ControlType { return ControlCongestionWarning }
func (AckFull) ControlType() ControlType           { return ControlAck }
func (AckSmall) ControlType() ControlType          { return ControlAck }
func (AckLight) ControlType() ControlType          { return ControlAck }
func (AckAck) ControlType() ControlType            { return ControlAckAck }
func (Nak) ControlType() ControlType               { return ControlNak }
func (DropReq) ControlType() ControlType           { return ControlDropReq }
func (PeerError) ControlType() ControlType         { return ControlPeerError }

func (KeepAlive) controlHeader() (uint16, uint32)         { return 0, 0 }
func (Shutdown) controlHeader() (uint16, uint32)          { return 0, 0 }
func (CongestionWarning) controlHeader() (uint16, uint32) { return 0, 0 }
func (a AckFull) controlHeader() (uint16, uint32)         { return 0, a.AckNumber }
func (a AckSmall) controlHeader() (uint16, uint32)        { return 0, a.AckNumber }
func (AckLight) controlHeader() (uint16, uint32)          { return 0, 0 }
func (a AckAck) controlHeader() (uint16, uint32)          { return 0, a.AckNumber }
func (Nak) controlHeader() (uint16, uint32)               { return 0, 0 }
func (d DropReq) controlHeader() (uint16, uint32)         { return 0, d.MessageNumber }
func (e PeerError) controlHeader() (uint16, uint32)       { return 0, e.ErrorCode }

func (KeepAlive) marshalCIF(*bits.Writer) error         { return nil }
func (CongestionWarning) marshalCIF(*bits.Writer) error { return nil }
func (AckAck) marshalCIF(*bits.Writer) error            { return nil }
func (PeerError) marshalCIF(*bits.Writer) error         { return nil }

func (Shutdown) marshalCIF(w *bits.Writer) error {
	w.WriteUint32(0)
	return nil
}

func (a AckFull) marshalCIF(w *bits.Writer) error {
	if err := checkSequence(a.LastAckedSequence); err != nil {
		return err
	}
	w.WriteUint32(a.LastAckedSequence)
	w.WriteUint32(a.RTT)
	w.WriteUint32(a.RTTVariance)
	w.WriteUint32(a.AvailableBufferSize)
	w.WriteUint32(a.PacketsReceivingRate)
	w.WriteUint32(a.EstimatedLinkCapacity)
	w.WriteUint32(a.ReceivingRate)
	return nil
}

func (a AckSmall) marshalCIF(w *bits.Writer) error {
	if err := checkSequence(a.LastAckedSequence); err != nil {
		return err
	}
	w.WriteUint32(a.LastAckedSequence)
	w.WriteUint32(a.RTT)
	w.WriteUint32(a.RTTVariance)
	w.WriteUint32(a.AvailableBufferSize)
	return nil
}

func (a AckLight) marshalCIF(w *bits.Writer) error {
	if err := checkSequence(a.LastAckedSequence); err != nil {
		return err
	}
	w.WriteUint32(a.LastAckedSequence)
	return nil
}

func (n Nak) marshalCIF(w *bits.Writer) error {
	if err := checkSequence(n.LostPacket); err != nil {
		return err
	}
	// 단일 항목: 최상위 비트 0
	w.WriteUint32(n.LostPacket)
	return nil
}

func (d DropReq) marshalCIF(w *bits.Writer) error {
	w.WriteUint32(d.FirstSequence)
	w.WriteUint32(d.LastSequence)
	return nil
}

// parseControl 제어 타입에 맞는 변형으로 본문 디코딩. 알 수 없는 타입은 에러.
func parseControl(t ControlType, subtype uint16, typeSpecific uint32, body []byte) (Control, error) {
	r := bits.NewReader(body)

	switch t {
	case ControlHandshake:
		hs, err := parseHandshake(body)
		if err != nil {
			return nil, err
		}
		return hs, nil

	case ControlKeepAlive:
		return KeepAlive{}, nil

	case ControlShutdown:
		if len(body) != 0 && len(body) != 4 {
			return nil, fmt.Errorf("%w: shutdown body of %d bytes", ErrMalformedPacket, len(body))
		}
		return Shutdown{}, nil

	case ControlCongestionWarning:
		return CongestionWarning{}, nil

	case ControlAck:
		return parseAck(r, typeSpecific, len(body))

	case ControlAckAck:
		return AckAck{AckNumber: typeSpecific}, nil

	case ControlNak:
		if len(body) < 4 || len(body)%4 != 0 {
			return nil, fmt.Errorf("%w: nak body of %d bytes", ErrMalformedPacket, len(body))
		}
		// 범위 항목이면 최상위 비트를 떼고 시작 시퀀스를 사용
		if _, err := r.ReadBits(1); err != nil {
			return nil, malformed(err)
		}
		lost, err := r.ReadBits(31)
		if err != nil {
			return nil, malformed(err)
		}
		return Nak{LostPacket: lost}, nil

	case ControlDropReq:
		first, err := r.ReadUint32()
		if err != nil {
			return nil, malformed(err)
		}
		last, err := r.ReadUint32()
		if err != nil {
			return nil, malformed(err)
		}
		return DropReq{MessageNumber: typeSpecific, FirstSequence: first, LastSequence: last}, nil

	case ControlPeerError:
		return PeerError{ErrorCode: typeSpecific}, nil

	default:
		return nil, fmt.Errorf("%w: 0x%04x (subtype 0x%04x)", ErrUnknownControlType, uint16(t), subtype)
	}
}

// parseAck 본문 길이로 ACK 변형을 결정한다 (4: light, 16: small, 28 이상: full).
func parseAck(r *bits.Reader, ackNumber uint32, size int) (Control, error) {
	var fields [7]uint32

	n := 0
	switch {
	case size == ackLightSize:
		n = 1
	case size == ackSmallSize:
		n = 4
	case size >= ackFullSize:
		n = 7
	default:
		return nil, fmt.Errorf("%w: ack body of %d bytes", ErrMalformedPacket, size)
	}

	for i := 0; i < n; i++ {
		v, err := r.ReadUint32()
		if err != nil {
			return nil, malformed(err)
		}
		fields[i] = v
	}
	lastAcked := fields[0] & MaxSequenceNumber

	switch n {
	case 1:
		return AckLight{LastAckedSequence: lastAcked}, nil
	case 4:
		return AckSmall{
			AckNumber:           ackNumber,
			LastAckedSequence:   lastAcked,
			RTT:                 fields[1],
			RTTVariance:         fields[2],
			AvailableBufferSize: fields[3],
		}, nil
	default:
		return AckFull{
			AckNumber:             ackNumber,
			LastAckedSequence:     lastAcked,
			RTT:                   fields[1],
			RTTVariance:           fields[2],
			AvailableBufferSize:   fields[3],
			PacketsReceivingRate:  fields[4],
			EstimatedLinkCapacity: fields[5],
			ReceivingRate:         fields[6],
		}, nil
	}
}

func checkSequence(seq uint32) error {
	if seq > MaxSequenceNumber {
		return fmt.Errorf("%w: sequence number %d exceeds 31 bits", ErrMalformedPacket, seq)
	}
	return nil
}
