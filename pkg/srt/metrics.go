package srt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics SRT 엔진 프로메테우스 수집기. nil이면 모든 기록이 무시된다.
type Metrics struct {
	datagrams    *prometheus.CounterVec
	decodeErrors prometheus.Counter
	handshakes   *prometheus.CounterVec
	activeConns  prometheus.Gauge
	dataPackets  prometheus.Counter
	dataBytes    prometheus.Counter
	controlSent  *prometheus.CounterVec
	lostPackets  prometheus.Counter
	disconnects  *prometheus.CounterVec
	rttSeconds   prometheus.Histogram
}

// NewMetrics reg에 수집기를 등록한다. reg가 nil이면 등록하지 않는 수집기를 만든다.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		datagrams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "datagrams_received_total",
			Help:      "Datagrams read from the UDP socket, by packet kind.",
		}, []string{"kind"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "decode_errors_total",
			Help:      "Datagrams dropped because they could not be decoded.",
		}),
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "handshakes_total",
			Help:      "Handshake attempts, by result.",
		}, []string{"result"}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "srt",
			Name:      "connections_active",
			Help:      "Established connections.",
		}),
		dataPackets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "data_packets_total",
			Help:      "Data packets delivered to the handler.",
		}),
		dataBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "data_bytes_total",
			Help:      "Payload bytes delivered to the handler.",
		}),
		controlSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "control_packets_sent_total",
			Help:      "Control packets sent, by control type.",
		}, []string{"type"}),
		lostPackets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "lost_packets_total",
			Help:      "Sequence gaps reported with a NAK.",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "srt",
			Name:      "disconnects_total",
			Help:      "Closed connections, by reason.",
		}, []string{"reason"}),
		rttSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "srt",
			Name:      "rtt_seconds",
			Help:      "Round trip time measured from ACK/ACKACK pairs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

func (m *Metrics) datagram(isControl bool) {
	if m == nil {
		return
	}
	kind := "data"
	if isControl {
		kind = "control"
	}
	m.datagrams.WithLabelValues(kind).Inc()
}

func (m *Metrics) decodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) handshake(result string) {
	if m != nil {
		m.handshakes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) connected() {
	if m != nil {
		m.activeConns.Inc()
	}
}

func (m *Metrics) disconnected(reason string) {
	if m == nil {
		return
	}
	m.activeConns.Dec()
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) data(size int) {
	if m == nil {
		return
	}
	m.dataPackets.Inc()
	m.dataBytes.Add(float64(size))
}

func (m *Metrics) controlPacketSent(t ControlType) {
	if m != nil {
		m.controlSent.WithLabelValues(t.String()).Inc()
	}
}

func (m *Metrics) lost() {
	if m != nil {
		m.lostPackets.Inc()
	}
}

func (m *Metrics) rtt(seconds float64) {
	if m != nil {
		m.rttSeconds.Observe(seconds)
	}
}
