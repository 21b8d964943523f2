// Package bits 바이트 버퍼 위에서 비트 단위로 위치를 추적하며 읽고 쓰는 커서
package bits

import (
	"errors"
	"fmt"
)

// ErrShortBuffer 요청한 비트 수만큼 버퍼가 남아있지 않음
var ErrShortBuffer = errors.New("short buffer")

// Reader MSB 우선(big-endian) 비트 리더
type Reader struct {
	buf []byte
	pos int // 비트 오프셋
}

// NewReader 새 비트 리더 생성
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos 현재 비트 위치
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining 남은 비트 수
func (r *Reader) Remaining() int {
	return len(r.buf)*8 - r.pos
}

// ReadBits n비트(최대 32)를 읽어 하위 비트에 정렬하여 반환
func (r *Reader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, fmt.Errorf("invalid bit count %d", n)
	}
	if r.Remaining() < n {
		return 0, fmt.Errorf("read %d bits at offset %d: %w", n, r.pos, ErrShortBuffer)
	}

	var v uint32
	for i := 0; i < n; i++ {
		byteOffset := r.pos / 8
		bitOffset := r.pos % 8
		bit := (r.buf[byteOffset] >> (7 - bitOffset)) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}
	return v, nil
}

// ReadBool 1비트를 읽어 bool로 반환
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadBits(16)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	return r.ReadBits(32)
}

// ReadBytes 바이트 정렬 위치에서 n바이트를 복사하여 반환
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.pos%8 != 0 {
		return nil, fmt.Errorf("unaligned byte read at bit offset %d", r.pos)
	}
	if n < 0 || r.Remaining() < n*8 {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", n, r.pos/8, ErrShortBuffer)
	}

	start := r.pos / 8
	out := make([]byte, n)
	copy(out, r.buf[start:start+n])
	r.pos += n * 8
	return out, nil
}

// Skip n비트 건너뛰기
func (r *Reader) Skip(n int) error {
	if n < 0 || r.Remaining() < n {
		return fmt.Errorf("skip %d bits at offset %d: %w", n, r.pos, ErrShortBuffer)
	}
	r.pos += n
	return nil
}

// Rest 남은 바이트를 복사하여 반환하고 커서를 끝으로 이동
func (r *Reader) Rest() ([]byte, error) {
	return r.ReadBytes(r.Remaining() / 8)
}

// Writer MSB 우선 비트 라이터. 필요한 만큼 버퍼를 늘린다.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter 용량 힌트를 받아 새 비트 라이터 생성
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// WriteBits v의 하위 n비트(최대 32)를 기록
func (w *Writer) WriteBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.pos%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if (v>>i)&1 == 1 {
			w.buf[w.pos/8] |= 1 << (7 - w.pos%8)
		}
		w.pos++
	}
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteBits(1, 1)
		return
	}
	w.WriteBits(0, 1)
}

func (w *Writer) WriteUint16(v uint16) {
	w.WriteBits(uint32(v), 16)
}

func (w *Writer) WriteUint32(v uint32) {
	w.WriteBits(v, 32)
}

// WriteBytes 바이트 정렬 위치에 그대로 기록. 정렬되지 않은 경우 비트 단위로 기록한다.
func (w *Writer) WriteBytes(b []byte) {
	if w.pos%8 == 0 {
		w.buf = append(w.buf, b...)
		w.pos += len(b) * 8
		return
	}
	for _, c := range b {
		w.WriteBits(uint32(c), 8)
	}
}

// Bytes 기록된 바이트 반환 (마지막 바이트는 0으로 패딩)
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len 기록된 바이트 수
func (w *Writer) Len() int {
	return len(w.buf)
}
