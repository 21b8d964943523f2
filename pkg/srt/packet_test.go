package srt

import (
	"bytes"
	"errors"
	"net"
	"reflect"
	"testing"

	"github.com/datarhei/gosrt/circular"
	"github.com/datarhei/gosrt/packet"
)

func TestPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet *Packet
	}{
		{"keepalive", &Packet{Timestamp: 10, DestSocketID: 7, Content: KeepAlive{}}},
		{"shutdown", &Packet{Timestamp: 11, DestSocketID: 7, Content: Shutdown{}}},
		{"congestion warning", &Packet{Content: CongestionWarning{}}},
		{"ack full", &Packet{Timestamp: 12, DestSocketID: 9, Content: AckFull{
			AckNumber: 3, LastAckedSequence: 100, RTT: 20000, RTTVariance: 5000,
			AvailableBufferSize: 8192, PacketsReceivingRate: 1000, EstimatedLinkCapacity: 5000, ReceivingRate: 1316000,
		}}},
		{"ack small", &Packet{Timestamp: 13, DestSocketID: 9, Content: AckSmall{
			AckNumber: 4, LastAckedSequence: MaxSequenceNumber, RTT: 1000000, RTTVariance: 0, AvailableBufferSize: 8192,
		}}},
		{"ack light", &Packet{Content: AckLight{LastAckedSequence: 5}}},
		{"ackack", &Packet{Timestamp: 14, Content: AckAck{AckNumber: 99}}},
		{"nak", &Packet{Timestamp: 15, DestSocketID: 1, Content: Nak{LostPacket: 30}}},
		{"drop request", &Packet{Content: DropReq{MessageNumber: 8, FirstSequence: 10, LastSequence: 20}}},
		{"peer error", &Packet{Content: PeerError{ErrorCode: 4000}}},
		{"handshake induction", &Packet{Timestamp: 100, Content: &Handshake{
			Version: 4, ExtensionField: 2, InitialSequenceNumber: 12345, MTU: 1500, MaxFlowWindowSize: 8192,
			Type: HandshakeInduction, SRTSocketID: 0x1234, PeerIP: [16]byte{127, 0, 0, 1},
		}}},
		{"handshake conclusion with stream id", &Packet{Timestamp: 200, DestSocketID: 42, Content: &Handshake{
			Version: 5, ExtensionField: 5, InitialSequenceNumber: 1, MTU: 1500, MaxFlowWindowSize: 8192,
			Type: HandshakeConclusion, SRTSocketID: 0x1234, SynCookie: 42,
			StreamID: &StreamIDExtension{StreamID: "#!::r=live/cam1,m=publish"},
			Extensions: []RawExtension{
				{Type: ExtensionHSReq, Data: []byte{0, 1, 5, 0, 0, 0, 0, 0xbf, 0, 0x78, 0, 0x78}},
			},
		}}},
		{"data with payload", &Packet{Timestamp: 300, DestSocketID: 42, Content: &DataPacket{
			SequenceNumber: MaxSequenceNumber, Position: PositionOnly, Order: true, Encryption: EncryptionFlagOdd,
			Retransmitted: true, MessageNumber: MaxMessageNumber, Payload: []byte{0x47, 0x40, 0x00, 0x10},
		}}},
		{"data without payload", &Packet{Content: &DataPacket{SequenceNumber: 1, Position: PositionFirst, MessageNumber: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.packet.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary failed: %v", err)
			}

			got, err := ParsePacket(data)
			if err != nil {
				t.Fatalf("ParsePacket failed: %v", err)
			}

			if !reflect.DeepEqual(got, tt.packet) {
				t.Errorf("Round trip mismatch:\n got  %#v\n want %#v", got, tt.packet)
			}

			if got.IsControl() != (tt.packet.Content != nil && isControlContent(tt.packet.Content)) {
				t.Errorf("IsControl mismatch for %T", tt.packet.Content)
			}
		})
	}
}

func isControlContent(c Content) bool {
	_, ok := c.(Control)
	return ok
}

func TestParsePacketMalformed(t *testing.T) {
	validData, _ := (&Packet{Content: &DataPacket{SequenceNumber: 1}}).MarshalBinary()

	badEncryption := append([]byte(nil), validData...)
	badEncryption[4] |= 0b00011000

	unknownControl := make([]byte, HeaderSize)
	unknownControl[0] = 0x80
	unknownControl[1] = 0x20

	shortAck := make([]byte, HeaderSize+8)
	shortAck[0] = 0x80
	shortAck[1] = byte(ControlAck)

	shortHandshake := make([]byte, HeaderSize+20)
	shortHandshake[0] = 0x80

	tests := []struct {
		name    string
		data    []byte
		unknown bool
	}{
		{"empty", nil, false},
		{"short header", validData[:HeaderSize-1], false},
		{"encryption flag 11 on data", badEncryption, false},
		{"unknown control type", unknownControl, true},
		{"ack with invalid length", shortAck, false},
		{"truncated handshake", shortHandshake, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket(tt.data)
			if !errors.Is(err, ErrMalformedPacket) {
				t.Fatalf("Expected ErrMalformedPacket, got %v", err)
			}
			if errors.Is(err, ErrUnknownControlType) != tt.unknown {
				t.Errorf("Expected unknown control type = %v, got %v", tt.unknown, err)
			}
		})
	}
}

func TestHandshakeExtensionErrors(t *testing.T) {
	base, err := (&Packet{Content: &Handshake{Version: 5, Type: HandshakeConclusion}}).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	tests := []struct {
		name string
		tail []byte
	}{
		{"trailing bytes", []byte{0, 5}},
		{"extension overrun", []byte{0, 5, 0, 4, 'a', 'b', 'c', 'd'}},
		{"duplicate stream id", []byte{0, 5, 0, 1, 'a', 'b', 'c', 'd', 0, 5, 0, 1, 'e', 'f', 'g', 'h'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append(append([]byte(nil), base...), tt.tail...)
			if _, err := ParsePacket(data); !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("Expected ErrMalformedPacket, got %v", err)
			}
		})
	}
}

func TestMarshalRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		packet *Packet
	}{
		{"no content", &Packet{}},
		{"sequence over 31 bits", &Packet{Content: &DataPacket{SequenceNumber: MaxSequenceNumber + 1}}},
		{"message number over 26 bits", &Packet{Content: &DataPacket{MessageNumber: MaxMessageNumber + 1}}},
		{"invalid encryption", &Packet{Content: &DataPacket{Encryption: 3}}},
		{"nak over 31 bits", &Packet{Content: Nak{LostPacket: MaxSequenceNumber + 1}}},
		{"stream id too long", &Packet{Content: &Handshake{StreamID: &StreamIDExtension{StreamID: string(make([]byte, MaxStreamIDLength+1))}}}},
		{"unaligned extension", &Packet{Content: &Handshake{Extensions: []RawExtension{{Type: ExtensionFilter, Data: []byte{1, 2, 3}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.packet.MarshalBinary(); !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("Expected ErrMalformedPacket, got %v", err)
			}
		})
	}
}

func TestStreamIDWordReversal(t *testing.T) {
	data, err := encodeStreamID("abcde")
	if err != nil {
		t.Fatalf("encodeStreamID failed: %v", err)
	}

	expected := []byte{'d', 'c', 'b', 'a', 0, 0, 0, 'e'}
	if !bytes.Equal(data, expected) {
		t.Errorf("Expected %q, got %q", expected, data)
	}

	sid, err := decodeStreamID(data)
	if err != nil {
		t.Fatalf("decodeStreamID failed: %v", err)
	}
	if sid != "abcde" {
		t.Errorf("Expected abcde, got %q", sid)
	}
}

// 다른 SRT 구현(gosrt)과 비트 배치가 일치하는지 교차 확인
func TestDataPacketMatchesGosrt(t *testing.T) {
	p := &Packet{Timestamp: 123456, DestSocketID: 0xCAFE, Content: &DataPacket{
		SequenceNumber: 0x12345678 & MaxSequenceNumber, Position: PositionFirst, Order: true,
		Encryption: EncryptionFlagEven, Retransmitted: true, MessageNumber: 0x0123456, Payload: []byte("payload"),
	}}

	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	gp, err := packet.NewPacketFromData(&net.UDPAddr{}, data)
	if err != nil {
		t.Fatalf("gosrt failed to parse: %v", err)
	}
	h := gp.Header()

	if h.IsControlPacket {
		t.Fatal("Expected data packet")
	}
	if h.PacketSequenceNumber.Val() != 0x12345678&MaxSequenceNumber {
		t.Errorf("Expected sequence 0x%x, got 0x%x", 0x12345678&MaxSequenceNumber, h.PacketSequenceNumber.Val())
	}
	if h.PacketPositionFlag != packet.FirstPacket {
		t.Errorf("Expected first packet position, got %s", h.PacketPositionFlag)
	}
	if !h.OrderFlag || !h.RetransmittedPacketFlag {
		t.Errorf("Expected order and retransmitted flags, got %v %v", h.OrderFlag, h.RetransmittedPacketFlag)
	}
	if uint32(h.KeyBaseEncryptionFlag) != uint32(EncryptionFlagEven) {
		t.Errorf("Expected even key flag, got %d", h.KeyBaseEncryptionFlag)
	}
	if h.MessageNumber != 0x0123456 {
		t.Errorf("Expected message number 0x123456, got 0x%x", h.MessageNumber)
	}
	if h.Timestamp != 123456 || h.DestinationSocketId != 0xCAFE {
		t.Errorf("Expected timestamp 123456 / dest 0xCAFE, got %d / 0x%x", h.Timestamp, h.DestinationSocketId)
	}
	if !bytes.Equal(gp.Data(), []byte("payload")) {
		t.Errorf("Expected payload %q, got %q", "payload", gp.Data())
	}
}

func TestParseGosrtDataPacket(t *testing.T) {
	gp := packet.NewPacket(&net.UDPAddr{})
	h := gp.Header()
	h.IsControlPacket = false
	h.PacketSequenceNumber = circular.New(777, packet.MAX_SEQUENCENUMBER)
	h.PacketPositionFlag = packet.LastPacket
	h.MessageNumber = 5
	h.Timestamp = 99
	h.DestinationSocketId = 42
	gp.SetData([]byte{1, 2, 3})

	var buf bytes.Buffer
	if err := gp.Marshal(&buf); err != nil {
		t.Fatalf("gosrt marshal failed: %v", err)
	}

	p, err := ParsePacket(buf.Bytes())
	if err != nil {
		t.Fatalf("ParsePacket failed: %v", err)
	}

	expected := &Packet{Timestamp: 99, DestSocketID: 42, Content: &DataPacket{
		SequenceNumber: 777, Position: PositionLast, MessageNumber: 5, Payload: []byte{1, 2, 3},
	}}
	if !reflect.DeepEqual(p, expected) {
		t.Errorf("Expected %#v, got %#v", expected, p)
	}
}

func TestAckSmallMatchesGosrt(t *testing.T) {
	data, err := (&Packet{Content: AckSmall{
		AckNumber: 7, LastAckedSequence: 61, RTT: 1000000, RTTVariance: 250, AvailableBufferSize: 8192,
	}}).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	gp, err := packet.NewPacketFromData(&net.UDPAddr{}, data)
	if err != nil {
		t.Fatalf("gosrt failed to parse: %v", err)
	}
	if gp.Header().ControlType != packet.CTRLTYPE_ACK {
		t.Fatalf("Expected ACK, got %s", gp.Header().ControlType)
	}
	if gp.Header().TypeSpecific != 7 {
		t.Errorf("Expected ack number 7, got %d", gp.Header().TypeSpecific)
	}

	var cif packet.CIFACK
	if err := gp.UnmarshalCIF(&cif); err != nil {
		t.Fatalf("gosrt CIF parse failed: %v", err)
	}
	if !cif.IsSmall {
		t.Error("Expected small ACK")
	}
	if cif.LastACKPacketSequenceNumber.Val() != 61 || cif.RTT != 1000000 || cif.RTTVar != 250 || cif.AvailableBufferSize != 8192 {
		t.Errorf("Unexpected ACK fields: %+v", cif)
	}
}

func TestConclusionStreamIDMatchesGosrt(t *testing.T) {
	data, err := (&Packet{Content: &Handshake{
		Version: 5, ExtensionField: 4, MTU: 1500, MaxFlowWindowSize: 8192,
		Type: HandshakeConclusion, SRTSocketID: 0x1234, SynCookie: 42,
		StreamID: &StreamIDExtension{StreamID: "live/cam1"},
	}}).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	gp, err := packet.NewPacketFromData(&net.UDPAddr{}, data)
	if err != nil {
		t.Fatalf("gosrt failed to parse: %v", err)
	}

	var cif packet.CIFHandshake
	if err := gp.UnmarshalCIF(&cif); err != nil {
		t.Fatalf("gosrt CIF parse failed: %v", err)
	}
	if cif.HandshakeType != packet.HSTYPE_CONCLUSION {
		t.Errorf("Expected conclusion, got %s", cif.HandshakeType)
	}
	if !cif.HasSID || cif.StreamId != "live/cam1" {
		t.Errorf("Expected stream id live/cam1, got %q (present=%v)", cif.StreamId, cif.HasSID)
	}
	if cif.SRTSocketId != 0x1234 || cif.SynCookie != 42 {
		t.Errorf("Expected socket 0x1234 cookie 42, got 0x%x %d", cif.SRTSocketId, cif.SynCookie)
	}
}
