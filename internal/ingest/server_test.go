package ingest

import (
	"bytes"
	"net"
	"testing"
	"time"

	"srtingest/pkg/srt"
)

type testClient struct {
	t    *testing.T
	conn net.PacketConn
	to   net.Addr
}

func newTestClient(t *testing.T, to string) *testClient {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	addr, err := net.ResolveUDPAddr("udp", to)
	if err != nil {
		t.Fatalf("ResolveUDPAddr failed: %v", err)
	}
	return &testClient{t: t, conn: conn, to: addr}
}

func (c *testClient) send(p *srt.Packet) {
	c.t.Helper()
	data, err := p.MarshalBinary()
	if err != nil {
		c.t.Fatalf("MarshalBinary failed: %v", err)
	}
	if _, err := c.conn.WriteTo(data, c.to); err != nil {
		c.t.Fatalf("WriteTo failed: %v", err)
	}
}

func (c *testClient) receive() *srt.Packet {
	c.t.Helper()
	buf := make([]byte, 2048)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := c.conn.ReadFrom(buf)
	if err != nil {
		c.t.Fatalf("ReadFrom failed: %v", err)
	}
	p, err := srt.ParsePacket(buf[:n])
	if err != nil {
		c.t.Fatalf("ParsePacket failed: %v", err)
	}
	return p
}

func (c *testClient) handshake(streamID string) uint32 {
	c.t.Helper()

	c.send(&srt.Packet{Content: &srt.Handshake{
		Version: 4, ExtensionField: 2, InitialSequenceNumber: 1, MTU: 1500, MaxFlowWindowSize: 8192,
		Type: srt.HandshakeInduction, SRTSocketID: 0x55,
	}})
	induction, ok := c.receive().Content.(*srt.Handshake)
	if !ok {
		c.t.Fatal("Expected induction reply")
	}

	conclusion := &srt.Handshake{
		Version: 5, ExtensionField: 5, InitialSequenceNumber: 1, MTU: 1500, MaxFlowWindowSize: 8192,
		Type: srt.HandshakeConclusion, SRTSocketID: 0x55, SynCookie: induction.SynCookie,
	}
	if streamID != "" {
		conclusion.StreamID = &srt.StreamIDExtension{StreamID: streamID}
	}
	c.send(&srt.Packet{Content: conclusion})
	if _, ok := c.receive().Content.(*srt.Handshake); !ok {
		c.t.Fatal("Expected conversion reply")
	}
	return induction.SRTSocketID
}

func testConfig() *Config {
	config := GetConfigWithDefaults()
	config.SRT.Host = "127.0.0.1"
	config.SRT.Port = 0
	return config
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestServerRelaysAcceptedStream(t *testing.T) {
	relay, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket failed: %v", err)
	}
	defer relay.Close()

	sink, err := NewSink(relay.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}

	s, err := NewServer(testConfig(), sink, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	client := newTestClient(t, s.Addr())
	socketID := client.handshake("#!::r=live/cam1,m=publish")

	waitFor(t, "stream registration", func() bool { return len(s.Streams()) == 1 })

	payload := bytes.Repeat([]byte{0x47}, 188)
	client.send(&srt.Packet{DestSocketID: socketID, Content: &srt.DataPacket{
		SequenceNumber: 1, Position: srt.PositionOnly, MessageNumber: 2, Payload: payload,
	}})

	buf := make([]byte, 2048)
	_ = relay.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := relay.ReadFrom(buf)
	if err != nil {
		t.Fatalf("Relay did not receive payload: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("Relayed payload changed")
	}

	st, ok := s.Stream("live/cam1")
	if !ok || !st.Accepted || st.Packets != 1 || st.Bytes != 188 {
		t.Errorf("Unexpected stream state: %+v %v", st, ok)
	}
	if conns := s.Connections(); len(conns) != 1 || conns[0].LocalSocketID != socketID {
		t.Errorf("Unexpected connections: %+v", conns)
	}
	if _, ok := s.Connection(socketID); !ok {
		t.Error("Expected connection lookup to succeed")
	}

	client.send(&srt.Packet{DestSocketID: socketID, Content: srt.Shutdown{}})
	waitFor(t, "stream removal", func() bool { return len(s.Streams()) == 0 })
}

func TestServerIgnoresPlayRequests(t *testing.T) {
	s, err := NewServer(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	client := newTestClient(t, s.Addr())
	client.handshake("play:cam1")

	waitFor(t, "stream registration", func() bool { return len(s.Streams()) == 1 })
	if s.Streams()[0].Accepted {
		t.Error("Expected play request not to be accepted")
	}
}

func TestServerStopIsIdempotent(t *testing.T) {
	s, err := NewServer(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()
	s.Stop()
}
