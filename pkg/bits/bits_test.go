package bits

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadBits(t *testing.T) {
	buf := []byte{0b0000_0001, 0b1000_0000}
	r := NewReader(buf)

	if err := r.Skip(6); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}

	tests := []struct {
		name string
		want uint32
	}{
		{"bit 6", 0},
		{"bit 7", 1},
		{"bit 8", 1},
		{"bit 9", 0},
	}
	for _, tt := range tests {
		got, err := r.ReadBits(1)
		if err != nil {
			t.Fatalf("%s: ReadBits failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestReadBitsAcrossBytes(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		offset int
		size   int
		want   uint32
	}{
		{
			name:   "full 32 bits at offset 4",
			buf:    []byte{0b0000_1111, 0xFF, 0xFF, 0xFF, 0b1111_0000},
			offset: 4,
			size:   32,
			want:   0xFFFFFFFF,
		},
		{
			name:   "24 bits at offset 12",
			buf:    []byte{0x00, 0b0000_1111, 0xFF, 0xFF, 0b1111_0000},
			offset: 12,
			size:   24,
			want:   0x00FFFFFF,
		},
		{
			name:   "15 bit control type",
			buf:    []byte{0x80, 0x02, 0x00, 0x00},
			offset: 1,
			size:   15,
			want:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.buf)
			if err := r.Skip(tt.offset); err != nil {
				t.Fatalf("Skip failed: %v", err)
			}
			got, err := r.ReadBits(tt.size)
			if err != nil {
				t.Fatalf("ReadBits failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected 0x%X, got 0x%X", tt.want, got)
			}
		})
	}
}

func TestReaderShortBuffer(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})

	if _, err := r.ReadUint32(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer, got %v", err)
	}

	// 실패한 읽기는 커서를 움직이지 않아야 함
	if r.Pos() != 0 {
		t.Errorf("Expected position 0 after failed read, got %d", r.Pos())
	}

	if _, err := r.ReadBytes(3); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer for ReadBytes, got %v", err)
	}
}

func TestReadBytesUnaligned(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF})
	if _, err := r.ReadBits(3); err != nil {
		t.Fatalf("ReadBits failed: %v", err)
	}
	if _, err := r.ReadBytes(1); err == nil {
		t.Error("Expected error for unaligned byte read")
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(8)
	w.WriteBool(true)
	w.WriteBits(0x1234, 15)
	w.WriteUint16(0xBEEF)
	w.WriteBits(0b10, 2)
	w.WriteBool(false)
	w.WriteBits(0b01, 2)
	w.WriteBool(true)
	w.WriteBits(0x2ABCDEF, 26)
	w.WriteBytes([]byte("payload"))

	r := NewReader(w.Bytes())

	check := func(name string, n int, want uint32) {
		t.Helper()
		got, err := r.ReadBits(n)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != want {
			t.Errorf("%s: expected 0x%X, got 0x%X", name, want, got)
		}
	}

	check("flag", 1, 1)
	check("type", 15, 0x1234)
	check("subtype", 16, 0xBEEF)
	check("position", 2, 0b10)
	check("order", 1, 0)
	check("encryption", 2, 0b01)
	check("retransmitted", 1, 1)
	check("message number", 26, 0x2ABCDEF)

	rest, err := r.Rest()
	if err != nil {
		t.Fatalf("Rest failed: %v", err)
	}
	if !bytes.Equal(rest, []byte("payload")) {
		t.Errorf("Expected payload, got %q", rest)
	}
	if r.Remaining() != 0 {
		t.Errorf("Expected no remaining bits, got %d", r.Remaining())
	}
}
