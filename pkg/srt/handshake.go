package srt

import (
	"fmt"
	"strings"

	"srtingest/pkg/bits"
)

// MaxStreamIDLength 스트림 ID 확장 최대 길이 (바이트)
const MaxStreamIDLength = 512

// Handshake 핸드셰이크 제어 정보
type Handshake struct {
	Version               uint32 // 4 또는 5
	EncryptionField       uint16
	ExtensionField        uint16 // v5 induction 응답에서는 매직 코드
	InitialSequenceNumber uint32
	MTU                   uint32
	MaxFlowWindowSize     uint32
	Type                  HandshakeType
	SRTSocketID           uint32
	SynCookie             uint32
	PeerIP                [16]byte

	// StreamID 스트림 ID 확장 (선택)
	StreamID *StreamIDExtension

	// Extensions 스트림 ID 이외의 확장 블록. 해석하지 않고 그대로 보존한다.
	Extensions []RawExtension
}

// StreamIDExtension 스트림 ID 확장 블록
type StreamIDExtension struct {
	StreamID string
}

// RawExtension 해석하지 않는 TLV 확장 블록 (Data는 4바이트 단위)
type RawExtension struct {
	Type ExtensionType
	Data []byte
}

func (*Handshake) isContent()               {}
func (*Handshake) ControlType() ControlType { return ControlHandshake }

func (*Handshake) controlHeader() (uint16, uint32) { return 0, 0 }

// Clone 확장 블록까지 복사한 사본 반환
func (h *Handshake) Clone() *Handshake {
	c := *h
	if h.StreamID != nil {
		sid := *h.StreamID
		c.StreamID = &sid
	}
	if h.Extensions != nil {
		c.Extensions = make([]RawExtension, len(h.Extensions))
		for i, ext := range h.Extensions {
			c.Extensions[i] = RawExtension{Type: ext.Type, Data: append([]byte(nil), ext.Data...)}
		}
	}
	return &c
}

// StreamIDValue 스트림 ID 문자열 (없으면 nil)
func (h *Handshake) StreamIDValue() *string {
	if h.StreamID == nil {
		return nil
	}
	s := h.StreamID.StreamID
	return &s
}

func (h *Handshake) marshalCIF(w *bits.Writer) error {
	w.WriteUint32(h.Version)
	w.WriteUint16(h.EncryptionField)
	w.WriteUint16(h.ExtensionField)
	w.WriteUint32(h.InitialSequenceNumber)
	w.WriteUint32(h.MTU)
	w.WriteUint32(h.MaxFlowWindowSize)
	w.WriteUint32(uint32(h.Type))
	w.WriteUint32(h.SRTSocketID)
	w.WriteUint32(h.SynCookie)
	w.WriteBytes(h.PeerIP[:])

	for _, ext := range h.Extensions {
		if len(ext.Data)%4 != 0 || len(ext.Data)/4 > 0xFFFF {
			return fmt.Errorf("%w: extension %d has invalid length %d", ErrMalformedPacket, ext.Type, len(ext.Data))
		}
		w.WriteUint16(uint16(ext.Type))
		w.WriteUint16(uint16(len(ext.Data) / 4))
		w.WriteBytes(ext.Data)
	}

	if h.StreamID != nil {
		data, err := encodeStreamID(h.StreamID.StreamID)
		if err != nil {
			return err
		}
		w.WriteUint16(uint16(ExtensionStreamID))
		w.WriteUint16(uint16(len(data) / 4))
		w.WriteBytes(data)
	}

	return nil
}

// parseHandshake 핸드셰이크 CIF와 뒤따르는 확장 블록 파싱
func parseHandshake(body []byte) (*Handshake, error) {
	if len(body) < HandshakeCIFSize {
		return nil, fmt.Errorf("%w: handshake body of %d bytes, expected at least %d", ErrMalformedPacket, len(body), HandshakeCIFSize)
	}

	r := bits.NewReader(body)
	h := &Handshake{}

	var err error
	read32 := func(dst *uint32) {
		if err == nil {
			*dst, err = r.ReadUint32()
		}
	}
	read16 := func(dst *uint16) {
		if err == nil {
			*dst, err = r.ReadUint16()
		}
	}

	var hsType uint32
	read32(&h.Version)
	read16(&h.EncryptionField)
	read16(&h.ExtensionField)
	read32(&h.InitialSequenceNumber)
	read32(&h.MTU)
	read32(&h.MaxFlowWindowSize)
	read32(&hsType)
	read32(&h.SRTSocketID)
	read32(&h.SynCookie)
	if err != nil {
		return nil, malformed(err)
	}
	h.Type = HandshakeType(hsType)

	ip, err := r.ReadBytes(16)
	if err != nil {
		return nil, malformed(err)
	}
	copy(h.PeerIP[:], ip)

	for r.Remaining() > 0 {
		if r.Remaining() < 32 {
			return nil, fmt.Errorf("%w: %d trailing bits after handshake extensions", ErrMalformedPacket, r.Remaining())
		}

		extType, _ := r.ReadUint16()
		words, _ := r.ReadUint16()

		data, err := r.ReadBytes(int(words) * 4)
		if err != nil {
			return nil, fmt.Errorf("%w: extension %d overruns handshake: %w", ErrMalformedPacket, extType, err)
		}

		if ExtensionType(extType) == ExtensionStreamID {
			if h.StreamID != nil {
				return nil, fmt.Errorf("%w: duplicate stream id extension", ErrMalformedPacket)
			}
			sid, err := decodeStreamID(data)
			if err != nil {
				return nil, err
			}
			h.StreamID = &StreamIDExtension{StreamID: sid}
			continue
		}

		h.Extensions = append(h.Extensions, RawExtension{Type: ExtensionType(extType), Data: data})
	}

	return h, nil
}

// encodeStreamID NUL 패딩 후 4바이트 워드마다 바이트 순서를 뒤집는다.
func encodeStreamID(sid string) ([]byte, error) {
	if len(sid) > MaxStreamIDLength {
		return nil, fmt.Errorf("%w: stream id of %d bytes exceeds %d", ErrMalformedPacket, len(sid), MaxStreamIDLength)
	}

	padded := make([]byte, (len(sid)+3)/4*4)
	copy(padded, sid)

	for i := 0; i < len(padded); i += 4 {
		padded[i], padded[i+1], padded[i+2], padded[i+3] = padded[i+3], padded[i+2], padded[i+1], padded[i]
	}
	return padded, nil
}

func decodeStreamID(data []byte) (string, error) {
	if len(data) > MaxStreamIDLength {
		return "", fmt.Errorf("%w: stream id of %d bytes exceeds %d", ErrMalformedPacket, len(data), MaxStreamIDLength)
	}

	var b strings.Builder
	for i := 0; i+3 < len(data); i += 4 {
		b.WriteByte(data[i+3])
		b.WriteByte(data[i+2])
		b.WriteByte(data[i+1])
		b.WriteByte(data[i])
	}
	return strings.TrimRight(b.String(), "\x00"), nil
}
