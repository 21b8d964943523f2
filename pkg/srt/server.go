package srt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"srtingest/pkg/utils"
)

// 핸드셰이크 결과 라벨
const (
	handshakeInduction   = "induction"
	handshakeEstablished = "established"
	handshakeFailed      = "failed"
	handshakeRejected    = "rejected"
)

type pendingHandshake struct {
	handshaker *Handshaker
	started    time.Time
}

// Server SRT 디스패처. UDP 소켓 하나를 소스 주소별로 핸드셰이크/연결에 분배한다.
type Server struct {
	// 서버 설정
	config  SRTConfig
	handler Handler
	metrics *Metrics
	now     func() time.Time

	conn    net.PacketConn
	limiter *ConnectionLimiter

	// 소스 주소(addr.String()) 기준 테이블
	mu          sync.Mutex
	pending     map[string]*pendingHandshake
	connections map[string]*Connection

	// 동기화
	ctx    context.Context    // 컨텍스트
	cancel context.CancelFunc // 컨텍스트 취소 함수
	wg     sync.WaitGroup
}

// NewServer 새로운 SRT 서버 생성. metrics 는 nil 이어도 된다.
func NewServer(config SRTConfig, handler Handler, metrics *Metrics) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("srt server requires a handler")
	}
	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:      config,
		handler:     handler,
		metrics:     metrics,
		now:         time.Now,
		limiter:     NewConnectionLimiter(config.MaxConnections),
		pending:     make(map[string]*pendingHandshake),
		connections: make(map[string]*Connection),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// ID 서버 ID 반환
func (s *Server) ID() string {
	return "srt"
}

// Start 소켓을 열고 수신 루프 시작
func (s *Server) Start() error {
	if err := s.setupListener(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.readLoop()

	slog.Info("SRT server started", "addr", s.conn.LocalAddr())
	return nil
}

// Stop 서버 중지. 모든 연결에 Shutdown을 보내고 수신 루프 종료를 기다린다.
func (s *Server) Stop() {
	slog.Info("SRT Server stopping...")
	s.cancel()
	if s.conn != nil {
		// 블로킹된 ReadFrom 해제
		_ = s.conn.SetReadDeadline(time.Now())
	}
	s.wg.Wait()
}

// Addr 실제 바인드된 주소 (Start 이전에는 nil)
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// setupListener UDP 소켓 설정
func (s *Server) setupListener() error {
	if s.conn != nil {
		return fmt.Errorf("server already started")
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(s.ctx, "udp", s.config.Address())
	if err != nil {
		slog.Error("Error starting SRT server", "err", err)
		return fmt.Errorf("%w: listen %s: %w", ErrIO, s.config.Address(), err)
	}

	s.conn = conn
	return nil
}

// readLoop 데이터그램을 도착 순서대로 처리. 콜백은 모두 이 고루틴에서 호출된다.
func (s *Server) readLoop() {
	defer s.wg.Done()
	defer s.shutdown()

	buf := make([]byte, s.config.ReadBufferSize)
	sweepEvery := s.sweepInterval()
	lastSweep := s.now()

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(sweepEvery)); err != nil {
			slog.Error("SRT set read deadline failed", "err", err)
			return
		}

		n, addr, err := s.conn.ReadFrom(buf)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			slog.Error("SRT read failed", "err", fmt.Errorf("%w: %w", ErrIO, err))
			return
		}
		if err == nil {
			s.handleDatagram(addr, buf[:n])
		}

		if now := s.now(); now.Sub(lastSweep) >= sweepEvery {
			s.sweep(now)
			lastSweep = now
		}
	}
}

func (s *Server) sweepInterval() time.Duration {
	interval := min(s.config.IdleTimeout, s.config.HandshakeTimeout) / 2
	return max(interval, 10*time.Millisecond)
}

// handleDatagram 디코딩 후 연결 또는 핸드셰이크 테이블로 분배
func (s *Server) handleDatagram(addr net.Addr, data []byte) {
	p, err := ParsePacket(data)
	if err != nil {
		s.metrics.decodeError()
		slog.Debug("Dropping undecodable SRT datagram", "remoteAddr", addr, "size", len(data), "err", err)
		return
	}
	s.metrics.datagram(p.IsControl())

	key := addr.String()

	s.mu.Lock()
	conn := s.connections[key]
	s.mu.Unlock()

	if conn == nil {
		s.handleHandshake(key, addr, p)
		return
	}

	if err := conn.Handle(p); err != nil && !errors.Is(err, ErrConnectionClosed) {
		slog.Warn("SRT packet handling failed", "socketID", conn.Descriptor().LocalSocketID, "remoteAddr", addr, "err", err)
	}
	if conn.Closed() {
		s.removeConnection(key, conn, ReasonShutdown)
	}
}

// handleHandshake 미수립 피어의 패킷 처리
func (s *Server) handleHandshake(key string, addr net.Addr, p *Packet) {
	hs, ok := p.Content.(*Handshake)
	if !ok {
		slog.Debug("Dropping SRT packet from unknown peer", "remoteAddr", addr)
		return
	}

	s.mu.Lock()
	pending, exists := s.pending[key]
	if hs.Type == HandshakeInduction {
		// 새 시도 또는 induction 재전송: 상태 머신을 새로 시작
		if !exists && !s.limiter.Acquire() {
			s.mu.Unlock()
			s.metrics.handshake(handshakeRejected)
			slog.Warn("Rejecting SRT handshake", "remoteAddr", addr, "err", ErrTooManyPeers)
			return
		}
		pending = &pendingHandshake{handshaker: NewHandshaker(s.config.IDs), started: s.now()}
		s.pending[key] = pending
		exists = true
	}
	s.mu.Unlock()

	if !exists {
		slog.Debug("Dropping SRT handshake without induction", "remoteAddr", addr, "type", hs.Type)
		return
	}

	reply, err := pending.handshaker.Handle(p, s.now())
	if err != nil {
		s.dropPending(key)
		s.metrics.handshake(handshakeFailed)
		slog.Warn("SRT handshake failed", "remoteAddr", addr, "err", err)
		return
	}

	if err := s.writePacket(reply, addr); err != nil {
		s.dropPending(key)
		s.metrics.handshake(handshakeFailed)
		slog.Error("SRT handshake reply failed", "remoteAddr", addr, "err", err)
		return
	}

	if pending.handshaker.State() != Established {
		s.metrics.handshake(handshakeInduction)
		return
	}

	conn := newConnection(pending.handshaker.Session(), addr, s.conn, s.handler,
		s.config.connectionConfig(), s.metrics, s.now)

	s.mu.Lock()
	delete(s.pending, key)
	s.connections[key] = conn
	s.mu.Unlock()

	s.metrics.handshake(handshakeEstablished)
	s.metrics.connected()

	desc := conn.Descriptor()
	slog.Info("SRT connection established", "socketID", desc.LocalSocketID, "peerSocketID", desc.PeerSocketID,
		"remoteAddr", addr, "streamKey", desc.StreamKey())
	s.handler.OnConnect(desc)
}

func (s *Server) writePacket(p *Packet, addr net.Addr) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := s.conn.WriteTo(data, addr); err != nil {
		return fmt.Errorf("%w: send to %s: %w", ErrIO, addr, err)
	}
	return nil
}

func (s *Server) dropPending(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[key]; ok {
		delete(s.pending, key)
		s.limiter.Release()
	}
}

// removeConnection 테이블에서 제거하고 OnDisconnect 호출
func (s *Server) removeConnection(key string, conn *Connection, reason string) {
	s.mu.Lock()
	current, ok := s.connections[key]
	if !ok || current != conn {
		s.mu.Unlock()
		return
	}
	delete(s.connections, key)
	s.limiter.Release()
	s.mu.Unlock()

	conn.close()
	s.metrics.disconnected(reason)

	desc := conn.Descriptor()
	slog.Info("SRT connection closed", "socketID", desc.LocalSocketID, "remoteAddr", desc.PeerAddr, "reason", reason)
	s.handler.OnDisconnect(desc, reason)
}

// sweep 오래된 핸드셰이크와 무응답 연결 정리
func (s *Server) sweep(now time.Time) {
	var idle []string

	s.mu.Lock()
	for key, p := range s.pending {
		if now.Sub(p.started) >= s.config.HandshakeTimeout {
			delete(s.pending, key)
			s.limiter.Release()
			slog.Debug("SRT handshake timed out", "remoteAddr", key)
		}
	}
	for key, c := range s.connections {
		if now.Sub(c.LastActivity()) >= s.config.IdleTimeout {
			idle = append(idle, key)
		}
	}
	s.mu.Unlock()

	for _, key := range idle {
		s.mu.Lock()
		c := s.connections[key]
		s.mu.Unlock()
		if c != nil {
			s.removeConnection(key, c, ReasonIdleTimeout)
		}
	}
}

// shutdown 종료 처리
func (s *Server) shutdown() {
	s.mu.Lock()
	conns := make(map[string]*Connection, len(s.connections))
	for key, c := range s.connections {
		conns[key] = c
	}
	s.mu.Unlock()

	for key, c := range conns {
		if err := c.sendShutdown(); err != nil {
			slog.Debug("SRT shutdown notice failed", "remoteAddr", key, "err", err)
		}
		s.removeConnection(key, c, ReasonServerClosed)
	}

	utils.CloseWithLog("srt socket", s.conn)
	slog.Info("SRT server shutdown completed")
}

// Connections 현재 연결 통계 (로컬 소켓 ID 순)
func (s *Server) Connections() []ConnectionStats {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	stats := make([]ConnectionStats, 0, len(conns))
	for _, c := range conns {
		stats = append(stats, c.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].LocalSocketID < stats[j].LocalSocketID })

	return stats
}

// Connection 로컬 소켓 ID로 연결 통계 조회
func (s *Server) Connection(socketID uint32) (ConnectionStats, bool) {
	s.mu.Lock()
	var found *Connection
	for _, c := range s.connections {
		if c.Descriptor().LocalSocketID == socketID {
			found = c
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return ConnectionStats{}, false
	}
	return found.Stats(), true
}

// PendingHandshakes 진행 중인 핸드셰이크 수
func (s *Server) PendingHandshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
