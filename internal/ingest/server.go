package ingest

import (
	"fmt"
	"log/slog"
	"sync"

	"srtingest/pkg/srt"
	"srtingest/pkg/utils"
)

// 이벤트 루프로 전달되는 이벤트
type streamStarted struct {
	desc *srt.Descriptor
}

type streamData struct {
	socketID uint32
	payload  []byte
}

type streamEnded struct {
	desc   *srt.Descriptor
	reason string
}

// Server SRT 수집 서비스. srt.Handler 를 구현하고 수신 이벤트를 이벤트 루프에서 처리한다.
type Server struct {
	config   *Config
	srt      *srt.Server
	registry *Registry
	sink     Sink
	channel  chan any
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewServer 수집 서비스 생성. metrics 는 nil 이어도 된다.
func NewServer(config *Config, sink Sink, metrics *srt.Metrics) (*Server, error) {
	if sink == nil {
		sink = discardSink{}
	}

	s := &Server{
		config:   config,
		registry: NewRegistry(),
		sink:     sink,
		channel:  make(chan any, config.Ingest.EventBuffer),
	}

	srtServer, err := srt.NewServer(config.ToSRTConfig(), s, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create srt server: %w", err)
	}
	s.srt = srtServer

	return s, nil
}

// Start 이벤트 루프와 SRT 서버 시작
func (s *Server) Start() error {
	slog.Info("Ingest server starting...")

	s.wg.Add(1)
	go s.eventLoop()

	if err := s.srt.Start(); err != nil {
		s.Stop()
		return err
	}

	slog.Info("SRT Server started", "addr", s.srt.Addr())
	return nil
}

// Stop SRT 서버를 멈춘 뒤 남은 이벤트를 모두 처리하고 싱크를 닫는다.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Stopping Ingest Server...")

		// 콜백은 srt 서버가 멈춘 뒤 더 이상 호출되지 않는다
		s.srt.Stop()
		close(s.channel)
		s.wg.Wait()

		utils.CloseWithLog("sink", s.sink)
		slog.Info("Ingest Server stopped successfully")
	})
}

// OnConnect srt.Handler 구현
func (s *Server) OnConnect(desc *srt.Descriptor) {
	s.channel <- streamStarted{desc: desc}
}

// OnDisconnect srt.Handler 구현
func (s *Server) OnDisconnect(desc *srt.Descriptor, reason string) {
	s.channel <- streamEnded{desc: desc, reason: reason}
}

// OnData srt.Handler 구현. 페이로드는 패킷마다 새로 할당된 슬라이스다.
func (s *Server) OnData(desc *srt.Descriptor, payload []byte) {
	s.channel <- streamData{socketID: desc.LocalSocketID, payload: payload}
}

func (s *Server) eventLoop() {
	defer s.wg.Done()

	for data := range s.channel {
		s.channelHandler(data)
	}
	slog.Debug("Ingest event loop stopped")
}

func (s *Server) channelHandler(data any) {
	switch v := data.(type) {
	case streamStarted:
		s.handleStarted(v.desc)
	case streamData:
		s.handleData(v.socketID, v.payload)
	case streamEnded:
		s.handleEnded(v.desc, v.reason)
	default:
		slog.Warn("Unknown event type", "eventType", fmt.Sprintf("%T", v))
	}
}

func (s *Server) handleStarted(desc *srt.Descriptor) {
	accepted := true
	if err := s.admit(desc); err != nil {
		accepted = false
		slog.Warn("Ignoring SRT publisher", "socketID", desc.LocalSocketID, "remoteAddr", desc.PeerAddr, "err", err)
	}

	st := s.registry.Add(desc, accepted)
	if accepted {
		slog.Info("Stream started", "streamKey", st.Key, "socketID", st.SocketID, "remoteAddr", st.PeerAddr)
	}
}

// admit 스트림 ID 정책 확인
func (s *Server) admit(desc *srt.Descriptor) error {
	if desc.StreamID == nil {
		if s.config.Ingest.RequireStreamID {
			return fmt.Errorf("missing stream id")
		}
		return nil
	}
	if desc.StreamInfo == nil {
		return fmt.Errorf("unparsable stream id %q", *desc.StreamID)
	}
	return srt.ValidateStreamID(desc.StreamInfo)
}

func (s *Server) handleData(socketID uint32, payload []byte) {
	st, accepted := s.registry.Record(socketID, len(payload))
	if !accepted {
		return
	}
	if err := s.sink.Write(st, payload); err != nil {
		slog.Warn("Sink write failed", "streamKey", st.Key, "err", err)
	}
}

func (s *Server) handleEnded(desc *srt.Descriptor, reason string) {
	st, ok := s.registry.Remove(desc.LocalSocketID)
	if !ok {
		return
	}
	slog.Info("Stream ended", "streamKey", st.Key, "socketID", st.SocketID, "reason", reason,
		"packets", st.Packets, "bytes", st.Bytes)
}

// Connections SRT 연결 통계
func (s *Server) Connections() []srt.ConnectionStats {
	return s.srt.Connections()
}

// Connection 로컬 소켓 ID로 연결 통계 조회
func (s *Server) Connection(socketID uint32) (srt.ConnectionStats, bool) {
	return s.srt.Connection(socketID)
}

// Streams 수집 중인 스트림 목록
func (s *Server) Streams() []Stream {
	return s.registry.List()
}

// Stream 스트림 키로 조회
func (s *Server) Stream(key string) (Stream, bool) {
	return s.registry.Get(key)
}

// Addr SRT 소켓 주소
func (s *Server) Addr() string {
	if addr := s.srt.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}
