package srt

import (
	"fmt"

	"srtingest/pkg/bits"
)

// Packet SRT 패킷 (16바이트 공통 헤더 + 타입별 내용)
type Packet struct {
	Timestamp    uint32 // 세션 수립 이후 경과 시간 (마이크로초)
	DestSocketID uint32
	Content      Content
}

// Content 패킷 내용. 제어 패킷 변형들과 *DataPacket 만 구현한다.
type Content interface {
	isContent()
}

// Control 제어 패킷 변형
type Control interface {
	Content

	// ControlType 헤더에 기록되는 제어 타입
	ControlType() ControlType

	// controlHeader 헤더의 subtype과 type-specific 필드
	controlHeader() (subtype uint16, typeSpecific uint32)

	// marshalCIF 제어 정보 필드(본문) 기록
	marshalCIF(w *bits.Writer) error
}

// Position 메시지 내 패킷 위치
type Position uint8

const (
	PositionMiddle Position = 0 // 00b
	PositionLast   Position = 1 // 01b
	PositionFirst  Position = 2 // 10b
	PositionOnly   Position = 3 // 11b
)

func (p Position) String() string {
	switch p {
	case PositionMiddle:
		return "middle"
	case PositionLast:
		return "last"
	case PositionFirst:
		return "first"
	case PositionOnly:
		return "only"
	default:
		return "invalid"
	}
}

// Encryption 데이터 패킷 암호화 키 플래그
type Encryption uint8

const (
	EncryptionFlagNone Encryption = 0
	EncryptionFlagEven Encryption = 1
	EncryptionFlagOdd  Encryption = 2
)

func (e Encryption) String() string {
	switch e {
	case EncryptionFlagNone:
		return "none"
	case EncryptionFlagEven:
		return "even"
	case EncryptionFlagOdd:
		return "odd"
	default:
		return "invalid"
	}
}

// DataPacket 데이터 패킷 내용. Payload는 해석하지 않는 바이트열이다.
type DataPacket struct {
	SequenceNumber uint32 // 31비트
	Position       Position
	Order          bool
	Encryption     Encryption
	Retransmitted  bool
	MessageNumber  uint32 // 26비트
	Payload        []byte
}

func (*DataPacket) isContent() {}

// IsControl 제어 패킷 여부
func (p *Packet) IsControl() bool {
	_, ok := p.Content.(Control)
	return ok
}

// Control 제어 패킷 내용 반환
func (p *Packet) Control() (Control, bool) {
	c, ok := p.Content.(Control)
	return c, ok
}

// Data 데이터 패킷 내용 반환
func (p *Packet) Data() (*DataPacket, bool) {
	d, ok := p.Content.(*DataPacket)
	return d, ok
}

// ParsePacket 원시 데이터그램을 패킷으로 디코딩
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, expected at least %d", ErrMalformedPacket, len(data), HeaderSize)
	}

	r := bits.NewReader(data)

	isControl, err := r.ReadBool()
	if err != nil {
		return nil, malformed(err)
	}

	if isControl {
		return parseControlPacket(r)
	}
	return parseDataPacket(r)
}

func parseDataPacket(r *bits.Reader) (*Packet, error) {
	var (
		d   DataPacket
		err error
		v   uint32
	)

	// word 0: F(1)=0 | sequence(31)
	if d.SequenceNumber, err = r.ReadBits(31); err != nil {
		return nil, malformed(err)
	}

	// word 1: PP(2) | O(1) | KK(2) | R(1) | message number(26)
	if v, err = r.ReadBits(2); err != nil {
		return nil, malformed(err)
	}
	d.Position = Position(v)

	if d.Order, err = r.ReadBool(); err != nil {
		return nil, malformed(err)
	}

	if v, err = r.ReadBits(2); err != nil {
		return nil, malformed(err)
	}
	d.Encryption = Encryption(v)
	if d.Encryption > EncryptionFlagOdd {
		return nil, fmt.Errorf("%w: invalid encryption flag %d on data packet", ErrMalformedPacket, v)
	}

	if d.Retransmitted, err = r.ReadBool(); err != nil {
		return nil, malformed(err)
	}

	if d.MessageNumber, err = r.ReadBits(26); err != nil {
		return nil, malformed(err)
	}

	p := &Packet{Content: &d}
	if err := readTimestampAndDest(r, p); err != nil {
		return nil, err
	}

	if r.Remaining() > 0 {
		if d.Payload, err = r.Rest(); err != nil {
			return nil, malformed(err)
		}
	}

	return p, nil
}

func parseControlPacket(r *bits.Reader) (*Packet, error) {
	rawType, err := r.ReadBits(15)
	if err != nil {
		return nil, malformed(err)
	}
	subtype, err := r.ReadUint16()
	if err != nil {
		return nil, malformed(err)
	}
	typeSpecific, err := r.ReadUint32()
	if err != nil {
		return nil, malformed(err)
	}

	p := &Packet{}
	if err := readTimestampAndDest(r, p); err != nil {
		return nil, err
	}

	var body []byte
	if r.Remaining() > 0 {
		if body, err = r.Rest(); err != nil {
			return nil, malformed(err)
		}
	}

	ctrl, err := parseControl(ControlType(rawType), subtype, typeSpecific, body)
	if err != nil {
		return nil, err
	}
	p.Content = ctrl

	return p, nil
}

func readTimestampAndDest(r *bits.Reader, p *Packet) error {
	var err error
	if p.Timestamp, err = r.ReadUint32(); err != nil {
		return malformed(err)
	}
	if p.DestSocketID, err = r.ReadUint32(); err != nil {
		return malformed(err)
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
// 모든 숫자 필드는 고정 폭 big-endian으로 기록된다.
func (p *Packet) MarshalBinary() ([]byte, error) {
	switch c := p.Content.(type) {
	case *DataPacket:
		return p.marshalData(c)
	case Control:
		return p.marshalControl(c)
	case nil:
		return nil, fmt.Errorf("%w: packet without content", ErrMalformedPacket)
	default:
		return nil, fmt.Errorf("%w: unsupported content %T", ErrMalformedPacket, c)
	}
}

func (p *Packet) marshalData(d *DataPacket) ([]byte, error) {
	if d.SequenceNumber > MaxSequenceNumber {
		return nil, fmt.Errorf("%w: sequence number %d exceeds 31 bits", ErrMalformedPacket, d.SequenceNumber)
	}
	if d.MessageNumber > MaxMessageNumber {
		return nil, fmt.Errorf("%w: message number %d exceeds 26 bits", ErrMalformedPacket, d.MessageNumber)
	}
	if d.Position > PositionOnly {
		return nil, fmt.Errorf("%w: invalid position %d", ErrMalformedPacket, d.Position)
	}
	if d.Encryption > EncryptionFlagOdd {
		return nil, fmt.Errorf("%w: invalid encryption flag %d", ErrMalformedPacket, d.Encryption)
	}

	w := bits.NewWriter(HeaderSize + len(d.Payload))
	w.WriteBool(false)
	w.WriteBits(d.SequenceNumber, 31)
	w.WriteBits(uint32(d.Position), 2)
	w.WriteBool(d.Order)
	w.WriteBits(uint32(d.Encryption), 2)
	w.WriteBool(d.Retransmitted)
	w.WriteBits(d.MessageNumber, 26)
	w.WriteUint32(p.Timestamp)
	w.WriteUint32(p.DestSocketID)
	w.WriteBytes(d.Payload)

	return w.Bytes(), nil
}

func (p *Packet) marshalControl(c Control) ([]byte, error) {
	subtype, typeSpecific := c.controlHeader()

	w := bits.NewWriter(HeaderSize + HandshakeCIFSize)
	w.WriteBool(true)
	w.WriteBits(uint32(c.ControlType()), 15)
	w.WriteUint16(subtype)
	w.WriteUint32(typeSpecific)
	w.WriteUint32(p.Timestamp)
	w.WriteUint32(p.DestSocketID)

	if err := c.marshalCIF(w); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedPacket, err)
}
