package ingest

import (
	"sort"
	"sync"
	"time"

	"srtingest/pkg/srt"
)

// Stream 수집 중인 스트림 정보
type Stream struct {
	Key       string    `json:"key"`
	SocketID  uint32    `json:"socketId"`
	PeerAddr  string    `json:"peerAddr"`
	StreamID  string    `json:"streamId,omitempty"`
	User      string    `json:"user,omitempty"`
	Accepted  bool      `json:"accepted"`
	StartedAt time.Time `json:"startedAt"`
	Packets   uint64    `json:"packets"`
	Bytes     uint64    `json:"bytes"`
}

// Registry 소켓 ID 기준 스트림 목록
type Registry struct {
	mu      sync.RWMutex
	streams map[uint32]*Stream
}

func NewRegistry() *Registry {
	return &Registry{streams: make(map[uint32]*Stream)}
}

// Add 연결 정보로 스트림 등록
func (r *Registry) Add(desc *srt.Descriptor, accepted bool) *Stream {
	st := &Stream{
		Key:       desc.StreamKey(),
		SocketID:  desc.LocalSocketID,
		Accepted:  accepted,
		StartedAt: desc.Established,
	}
	if desc.PeerAddr != nil {
		st.PeerAddr = desc.PeerAddr.String()
	}
	if desc.StreamID != nil {
		st.StreamID = *desc.StreamID
	}
	if desc.StreamInfo != nil {
		st.User = desc.StreamInfo.User
	}

	r.mu.Lock()
	r.streams[st.SocketID] = st
	r.mu.Unlock()

	return st
}

// Record 수신 페이로드 집계. 수락된 스트림이면 스트림 스냅샷을 반환한다.
func (r *Registry) Record(socketID uint32, size int) (Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.streams[socketID]
	if !ok {
		return Stream{}, false
	}
	st.Packets++
	st.Bytes += uint64(size)

	return *st, st.Accepted
}

// Remove 스트림 제거
func (r *Registry) Remove(socketID uint32) (Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.streams[socketID]
	if !ok {
		return Stream{}, false
	}
	delete(r.streams, socketID)
	return *st, true
}

// List 시작 시각 순 스냅샷
func (r *Registry) List() []Stream {
	r.mu.RLock()
	out := make([]Stream, 0, len(r.streams))
	for _, st := range r.streams {
		out = append(out, *st)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SocketID < out[j].SocketID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Get 스트림 키로 조회
func (r *Registry) Get(key string) (Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, st := range r.streams {
		if st.Key == key {
			return *st, true
		}
	}
	return Stream{}, false
}
