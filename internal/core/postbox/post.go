package postbox

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// maxRetryInterval 单个中继重发间隔上限
const maxRetryInterval = time.Hour

// FlushMode OnFlush 回调的触发方式
type FlushMode int

const (
	// FlushOnce 只在第一次确认时回调
	FlushOnce FlushMode = iota
	// FlushAll 每次确认都回调
	FlushAll
)

// SendOptions 发送选项
type SendOptions struct {
	// TrackPending 为 true 时保留在发件箱中直到确认，否则只发送一次
	TrackPending bool

	// SkipEphemeral 跳过临时中继
	SkipEphemeral bool

	// Delay 延迟发送，延迟期间可以 CancelSend；大于 0 时总是跟踪
	Delay time.Duration

	// OnFlush 中继确认后回调，在锁外执行
	OnFlush func(PendingPost)

	// FlushMode OnFlush 触发方式
	// 默认值：FlushOnce
	FlushMode FlushMode

	// AckPolicy 为空时使用配置值（config.AckAll / config.AckAny）
	AckPolicy string
}

// AckFailure 某个中继最近一次拒绝
type AckFailure struct {
	Relay  types.RelayURL
	Reason string
	Count  int
}

// PendingPost 发件箱条目快照
type PendingPost struct {
	ID        types.NoteID
	Event     *types.Event
	Targets   []types.RelayURL
	AckedBy   []types.RelayURL
	Failures  []AckFailure
	Retries   int
	CreatedAt time.Time

	// FlushAfter 延迟发送的到期时间，零值表示立即发送
	FlushAfter time.Time
}

// Remaining 尚未确认的目标
func (p PendingPost) Remaining() []types.RelayURL {
	var out []types.RelayURL
	for _, t := range p.Targets {
		if !types.ContainsRelay(p.AckedBy, t) {
			out = append(out, t)
		}
	}
	return out
}

// Err 合并所有中继拒绝，没有拒绝时返回 nil
func (p PendingPost) Err() error {
	var err error
	for _, f := range p.Failures {
		err = multierr.Append(err, fmt.Errorf("%w: %s: %s", ErrAckFailure, f.Relay, f.Reason))
	}
	return err
}

// ============================================================================
//                              内部条目
// ============================================================================

// relayer 一个目标中继的发送状态
type relayer struct {
	relay       types.RelayURL
	attempts    int
	lastAttempt time.Time
	nextAttempt time.Time
	backoff     *backoff.ExponentialBackOff
	acked       bool
	failures    int
	lastReason  string
}

func newRelayer(url types.RelayURL, cfg config.PostBoxConfig, clk clock.Clock) *relayer {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.RetryBase.Duration()
	bo.Multiplier = cfg.RetryMultiplier
	bo.RandomizationFactor = 0
	bo.MaxInterval = maxRetryInterval
	bo.MaxElapsedTime = 0
	bo.Clock = clk
	bo.Reset()
	return &relayer{relay: url, backoff: bo}
}

// ready 是否到了下一次发送时间
func (r *relayer) ready(now time.Time) bool {
	return !r.acked && (r.lastAttempt.IsZero() || !now.Before(r.nextAttempt))
}

// attempt 记录一次发送，返回是否为重发
func (r *relayer) attempt(now time.Time) bool {
	retry := r.attempts > 0
	r.attempts++
	r.lastAttempt = now
	r.nextAttempt = now.Add(r.backoff.NextBackOff())
	return retry
}

type post struct {
	event         *types.Event
	skipEphemeral bool
	relayers      []*relayer
	acked         []types.RelayURL
	policy        string
	retries       int
	createdAt     time.Time
	flushAfter    time.Time
	onFlush       func(PendingPost)
	flushMode     FlushMode
	flushedOnce   bool
}

func (p *post) relayer(url types.RelayURL) *relayer {
	for _, r := range p.relayers {
		if r.relay == url {
			return r
		}
	}
	return nil
}

// satisfied 确认条件是否已满足
func (p *post) satisfied() bool {
	if p.policy == config.AckAny {
		return len(p.acked) > 0
	}
	return len(p.acked) == len(p.relayers)
}

func (p *post) delayed(now time.Time) bool {
	return !p.flushAfter.IsZero() && now.Before(p.flushAfter)
}

func (p *post) snapshot() PendingPost {
	out := PendingPost{
		ID:         p.event.ID,
		Event:      p.event,
		Targets:    make([]types.RelayURL, 0, len(p.relayers)),
		AckedBy:    append([]types.RelayURL(nil), p.acked...),
		Retries:    p.retries,
		CreatedAt:  p.createdAt,
		FlushAfter: p.flushAfter,
	}
	for _, r := range p.relayers {
		out.Targets = append(out.Targets, r.relay)
		if r.failures > 0 {
			out.Failures = append(out.Failures, AckFailure{Relay: r.relay, Reason: r.lastReason, Count: r.failures})
		}
	}
	return out
}
