package srt

import "time"

// SRT 프로토콜 상수 정의
const (
	// SRT 기본 포트
	DefaultPort = 9999

	// 패킷 크기
	MTU            = 1500
	HeaderSize     = 16
	MaxPayloadSize = 1456

	// 핸드셰이크 CIF 고정 길이 (확장 블록 제외)
	HandshakeCIFSize = 48

	// 핸드셰이크 v5 매직 코드 (induction 응답의 extension field)
	HandshakeMagicCode uint16 = 0x4A17

	// 시퀀스/메시지 번호 범위
	MaxSequenceNumber uint32 = 0x7FFFFFFF
	MaxMessageNumber  uint32 = 0x03FFFFFF

	// 신뢰성 기본값
	DefaultAckInterval         = 60              // ACK 전송 주기 (데이터 패킷 수)
	DefaultRTTBias             = time.Second     // ACK에 실어 보내는 RTT 보정값
	DefaultAvailableBufferSize = 8192            // 수신 버퍼 크기 (패킷)
	DefaultIdleTimeout         = 5 * time.Second // 유휴 연결 정리 시간
	DefaultHandshakeTimeout    = 3 * time.Second // 미완료 핸드셰이크 정리 시간
	DefaultMaxConnections      = 256
	DefaultReadBufferSize      = 2048
)

// ControlType 제어 패킷 타입 (15비트)
type ControlType uint16

const (
	ControlHandshake         ControlType = 0x0000
	ControlKeepAlive         ControlType = 0x0001
	ControlAck               ControlType = 0x0002
	ControlNak               ControlType = 0x0003
	ControlCongestionWarning ControlType = 0x0004
	ControlShutdown          ControlType = 0x0005
	ControlAckAck            ControlType = 0x0006
	ControlDropReq           ControlType = 0x0007
	ControlPeerError         ControlType = 0x0008
)

func (t ControlType) String() string {
	switch t {
	case ControlHandshake:
		return "handshake"
	case ControlKeepAlive:
		return "keepalive"
	case ControlAck:
		return "ack"
	case ControlNak:
		return "nak"
	case ControlCongestionWarning:
		return "congestion_warning"
	case ControlShutdown:
		return "shutdown"
	case ControlAckAck:
		return "ackack"
	case ControlDropReq:
		return "dropreq"
	case ControlPeerError:
		return "peererror"
	default:
		return "unknown"
	}
}

// HandshakeType 핸드셰이크 타입
type HandshakeType uint32

const (
	HandshakeWaveAHand  HandshakeType = 0x00000000
	HandshakeInduction  HandshakeType = 0x00000001
	HandshakeDone       HandshakeType = 0xFFFFFFFD
	HandshakeAgreement  HandshakeType = 0xFFFFFFFE
	HandshakeConclusion HandshakeType = 0xFFFFFFFF // 두 번째 단계 (conversion)
)

func (t HandshakeType) String() string {
	switch t {
	case HandshakeWaveAHand:
		return "wavehand"
	case HandshakeInduction:
		return "induction"
	case HandshakeDone:
		return "done"
	case HandshakeAgreement:
		return "agreement"
	case HandshakeConclusion:
		return "conclusion"
	default:
		return "rejection"
	}
}

// ExtensionType 핸드셰이크 확장 블록 타입
type ExtensionType uint16

const (
	ExtensionHSReq      ExtensionType = 1
	ExtensionHSRsp      ExtensionType = 2
	ExtensionKMReq      ExtensionType = 3
	ExtensionKMRsp      ExtensionType = 4
	ExtensionStreamID   ExtensionType = 5
	ExtensionCongestion ExtensionType = 6
	ExtensionFilter     ExtensionType = 7
	ExtensionGroup      ExtensionType = 8
)

// 핸드셰이크 암호화 필드 값 (협상 결과만 전달, 암호화 자체는 수행하지 않음)
const (
	EncryptionNone   uint16 = 0
	EncryptionAES128 uint16 = 2
	EncryptionAES192 uint16 = 3
	EncryptionAES256 uint16 = 4
)
