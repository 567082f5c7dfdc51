package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// EOSE 结果标签
const (
	OutcomeAllRelays = "all_relays"
	OutcomeTimeout   = "timeout"
)

// Metrics 中继池指标集合
type Metrics struct {
	registry prometheus.Registerer

	connState     *prometheus.GaugeVec
	bytes         *prometheus.CounterVec
	eventsRecv    *prometheus.CounterVec
	eventsDup     *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	eose          *prometheus.CounterVec
	subscriptions prometheus.Gauge
	pending       prometheus.Gauge
	retries       prometheus.Counter
	ackFailures   *prometheus.CounterVec
}

// New 创建并注册指标
//
// 同名指标已在 reg 上注册时复用已有的收集器。
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "relaypool"
	}

	m := &Metrics{registry: reg}

	var err error
	if m.connState, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "connection_state",
		Help:      "Current connection state per relay (0 disconnected, 1 connecting, 2 connected, 3 failed).",
	}, []string{"relay"})); err != nil {
		return nil, err
	}
	if m.bytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "bytes_total",
		Help:      "Bytes exchanged with each relay.",
	}, []string{"relay", "direction"})); err != nil {
		return nil, err
	}
	if m.eventsRecv, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_received_total",
		Help:      "EVENT frames received per relay.",
	}, []string{"relay"})); err != nil {
		return nil, err
	}
	if m.eventsDup, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_duplicate_total",
		Help:      "EVENT frames dropped as duplicates per relay.",
	}, []string{"relay"})); err != nil {
		return nil, err
	}
	if m.malformed, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_malformed_total",
		Help:      "Frames that could not be decoded per relay.",
	}, []string{"relay"})); err != nil {
		return nil, err
	}
	if m.eose, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eose_total",
		Help:      "End-of-stored-events signals delivered to subscribers, by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.subscriptions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscriptions_active",
		Help:      "Currently active one-shot subscriptions.",
	})); err != nil {
		return nil, err
	}
	if m.pending, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postbox",
		Name:      "pending",
		Help:      "Posts waiting for relay acknowledgement.",
	})); err != nil {
		return nil, err
	}
	if m.retries, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "postbox",
		Name:      "retries_total",
		Help:      "Post resend attempts.",
	})); err != nil {
		return nil, err
	}
	if m.ackFailures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "postbox",
		Name:      "ack_failures_total",
		Help:      "Negative OK responses per relay.",
	}, []string{"relay"})); err != nil {
		return nil, err
	}

	return m, nil
}

// register 注册收集器，已存在时返回已注册的实例
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// Gatherer 返回可采集的注册表；注册表不支持采集或 m 为 nil 时返回 nil
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	g, _ := m.registry.(prometheus.Gatherer)
	return g
}

// ============================================================================
//                              连接
// ============================================================================

// ConnectionState 记录中继连接状态
func (m *Metrics) ConnectionState(relay types.RelayURL, state types.ConnectionState) {
	if m == nil {
		return
	}
	m.connState.WithLabelValues(relay.String()).Set(float64(state))
}

// RemoveRelay 删除中继相关的标签序列
func (m *Metrics) RemoveRelay(relay types.RelayURL) {
	if m == nil {
		return
	}
	r := relay.String()
	m.connState.DeleteLabelValues(r)
	m.bytes.DeleteLabelValues(r, "in")
	m.bytes.DeleteLabelValues(r, "out")
	m.eventsRecv.DeleteLabelValues(r)
	m.eventsDup.DeleteLabelValues(r)
	m.malformed.DeleteLabelValues(r)
	m.ackFailures.DeleteLabelValues(r)
}

// BytesSent 记录发往中继的字节数
func (m *Metrics) BytesSent(relay types.RelayURL, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(relay.String(), "out").Add(float64(n))
}

// BytesReceived 记录从中继收到的字节数
func (m *Metrics) BytesReceived(relay types.RelayURL, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(relay.String(), "in").Add(float64(n))
}

// MalformedFrame 记录无法解析的帧
func (m *Metrics) MalformedFrame(relay types.RelayURL) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(relay.String()).Inc()
}

// ============================================================================
//                              订阅
// ============================================================================

// EventReceived 记录收到的 EVENT
func (m *Metrics) EventReceived(relay types.RelayURL) {
	if m == nil {
		return
	}
	m.eventsRecv.WithLabelValues(relay.String()).Inc()
}

// EventDuplicate 记录去重丢弃的 EVENT
func (m *Metrics) EventDuplicate(relay types.RelayURL) {
	if m == nil {
		return
	}
	m.eventsDup.WithLabelValues(relay.String()).Inc()
}

// EOSE 记录一次 EOSE 投递
func (m *Metrics) EOSE(timedOut bool) {
	if m == nil {
		return
	}
	outcome := OutcomeAllRelays
	if timedOut {
		outcome = OutcomeTimeout
	}
	m.eose.WithLabelValues(outcome).Inc()
}

// SubscriptionStarted 活跃订阅数加一
func (m *Metrics) SubscriptionStarted() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

// SubscriptionEnded 活跃订阅数减一
func (m *Metrics) SubscriptionEnded() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}

// ============================================================================
//                              发件箱
// ============================================================================

// PendingPosts 设置待确认消息数
func (m *Metrics) PendingPosts(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// PostRetry 记录一次重发
func (m *Metrics) PostRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// AckFailure 记录一次中继拒绝
func (m *Metrics) AckFailure(relay types.RelayURL) {
	if m == nil {
		return
	}
	m.ackFailures.WithLabelValues(relay.String()).Inc()
}
