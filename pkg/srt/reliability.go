package srt

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/datarhei/gosrt/circular"
)

// ackScheduler 수신 데이터 패킷 수를 interval 주기로 순환시키며 ACK 시점을 결정
type ackScheduler struct {
	interval         uint32
	receivedSinceAck atomic.Uint32
}

func newAckScheduler(interval uint32) *ackScheduler {
	if interval == 0 {
		interval = DefaultAckInterval
	}
	return &ackScheduler{interval: interval}
}

// tick 카운터를 1 증가(모듈로 interval)시키고 0으로 돌아왔으면 true
func (s *ackScheduler) tick() bool {
	for {
		old := s.receivedSinceAck.Load()
		next := (old + 1) % s.interval
		if s.receivedSinceAck.CompareAndSwap(old, next) {
			return next == 0
		}
	}
}

func (s *ackScheduler) pending() uint32 {
	return s.receivedSinceAck.Load()
}

// lossDetector 직전 수신 시퀀스 기준 갭 감지. 호출자가 연결 단위로 직렬화한다.
type lossDetector struct {
	lastReceived circular.Number
}

func newLossDetector(initialSequence uint32) lossDetector {
	// 첫 패킷(initialSequence)이 손실로 보이지 않도록 기준을 하나 앞에 둔다
	return lossDetector{
		lastReceived: circular.New(initialSequence&MaxSequenceNumber, MaxSequenceNumber).Dec(),
	}
}

// observe 수신 시퀀스를 기록하고, 갭이면 보고할 손실 시퀀스를 반환한다.
// 메시지 번호 1은 의도적인 재동기화(스트림 재시작)로 보고 손실로 취급하지 않는다.
func (d *lossDetector) observe(seq, messageNumber uint32) (lost uint32, isLoss bool) {
	prev := d.lastReceived
	current := circular.New(seq&MaxSequenceNumber, MaxSequenceNumber)
	d.lastReceived = current

	if prev.Inc().Equals(current) || messageNumber == 1 {
		return 0, false
	}
	return current.Dec().Val(), true
}

func (d *lossDetector) last() uint32 {
	return d.lastReceived.Val()
}

// rttTracker ACK 송신 시각과 ACKACK 수신 시각의 차이로 RTT 측정.
// ACK 송신 경로(쓰기)와 ACKACK 경로(읽기)가 같은 mu를 공유한다.
type rttTracker struct {
	mu            sync.Mutex
	lastAckNumber uint32
	lastAckAt     time.Time
	recorded      bool

	rtt    atomic.Uint32 // 마이크로초
	rttVar atomic.Uint32 // 마이크로초
}

// recordLocked mu를 잡은 상태에서 호출
func (t *rttTracker) recordLocked(ackNumber uint32, at time.Time) {
	t.lastAckNumber = ackNumber
	t.lastAckAt = at
	t.recorded = true
}

// observeAckAck 기록된 ACK에 대응하는 ACKACK이면 RTT를 갱신하고 측정값을 반환
func (t *rttTracker) observeAckAck(ackNumber uint32, now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.recorded || ackNumber != t.lastAckNumber {
		return 0, false
	}

	sample := now.Sub(t.lastAckAt)
	if sample < 0 {
		sample = 0
	}
	t.recorded = false

	us := uint32(min(sample.Microseconds(), int64(^uint32(0))))
	prev := t.rtt.Swap(us)

	diff := int64(us) - int64(prev)
	if diff < 0 {
		diff = -diff
	}
	t.rttVar.Store(uint32((3*int64(t.rttVar.Load()) + diff) / 4))

	return sample, true
}

func (t *rttTracker) estimate() uint32 {
	return t.rtt.Load()
}

func (t *rttTracker) variance() uint32 {
	return t.rttVar.Load()
}
