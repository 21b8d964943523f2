package ingest

import (
	"net"
	"testing"
	"time"
)

func TestNewSinkDiscard(t *testing.T) {
	sink, err := NewSink("")
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	if _, ok := sink.(discardSink); !ok {
		t.Errorf("Expected discardSink, got %T", sink)
	}
	if err := sink.Write(Stream{Key: "live"}, []byte{1, 2, 3}); err != nil {
		t.Errorf("Expected discard write to succeed, got %v", err)
	}
}

func TestUDPRelaySink(t *testing.T) {
	relay, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer relay.Close()

	sink, err := NewSink(relay.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	defer sink.Close()

	payload := []byte("payload")
	if err := sink.Write(Stream{Key: "live"}, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 64)
	relay.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := relay.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if string(buf[:n]) != "payload" {
		t.Errorf("Expected %q, got %q", "payload", buf[:n])
	}
}

func TestNewSinkBadAddress(t *testing.T) {
	if _, err := NewSink("not-an-address"); err == nil {
		t.Error("Expected error for address without port")
	}
}
