package pool

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/internal/protocol/wire"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// queuedRequest 等待中继连上后发送的请求
type queuedRequest struct {
	req   wire.Request
	relay types.RelayURL
}

// Send 向目标中继发送请求，targets 为 nil 表示全部
//
//   - 读请求（REQ/CLOSE）跳过不可读中继，写请求（EVENT/AUTH）跳过不可写中继
//   - skipEphemeral 为 true 时跳过临时中继
//   - 未连接的中继把请求放入队列，每个中继最多 MaxQueuedRequests 条
//   - EVENT 同时写入本地存储
//
// 单个中继的失败不会中断对其他中继的发送，所有失败合并返回。
func (p *Pool) Send(ctx context.Context, req wire.Request, targets []types.RelayURL, skipEphemeral bool) error {
	data, err := wire.Encode(req)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	relays := p.snapshotLocked(targets)
	p.mu.Unlock()

	if req.Type == wire.TypeEvent {
		if err := p.store.Store(ctx, req.Event); err != nil {
			logger.Warn("写入本地存储失败", "id", req.Event.ID.ShortString(), "error", err)
		}
	}

	var errs error
	for _, r := range relays {
		if req.IsRead() && !r.desc.Info.CanRead() {
			continue
		}
		if req.IsWrite() && !r.desc.Info.CanWrite() {
			continue
		}
		if skipEphemeral && r.desc.Ephemeral() {
			continue
		}

		if r.conn.IsConnected() {
			err := r.conn.Send(ctx, data)
			if err == nil {
				continue
			}
			if !errors.Is(err, relayconn.ErrNotConnected) {
				logger.Debug("发送失败", "relay", r.desc.URL.String(), "req", req.String(), "error", err)
				errs = multierr.Append(errs, err)
				continue
			}
		}
		if err := p.enqueue(req, r.desc.URL); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// enqueue 把请求放入中继的离线队列
//
// 已有处理器覆盖的 REQ 不入队，连上后由 resubscribeAll 重发。
func (p *Pool) enqueue(req wire.Request, url types.RelayURL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.Type == wire.TypeReq {
		for _, h := range p.handlers {
			if h.subID == req.SubID && h.covers(url) {
				return nil
			}
		}
	}

	n := 0
	for _, q := range p.queue {
		if q.relay == url {
			n++
		}
	}
	if n >= p.cfg.MaxQueuedRequests {
		logger.Warn("离线队列已满，丢弃请求", "relay", url.String(), "req", req.String())
		return fmt.Errorf("%w: %s", ErrQueueFull, url)
	}
	logger.Debug("请求入队", "relay", url.String(), "req", req.String())
	p.queue = append(p.queue, queuedRequest{req: req, relay: url})
	return nil
}

// runQueue 发送中继的离线队列
func (p *Pool) runQueue(url types.RelayURL) {
	p.mu.Lock()
	var pending []wire.Request
	kept := p.queue[:0]
	for _, q := range p.queue {
		if q.relay == url {
			pending = append(pending, q.req)
		} else {
			kept = append(kept, q)
		}
	}
	p.queue = kept
	p.mu.Unlock()

	for _, req := range pending {
		logger.Debug("发送排队请求", "relay", url.String(), "req", req.String())
		if err := p.Send(context.Background(), req, []types.RelayURL{url}, false); err != nil {
			logger.Debug("排队请求发送失败", "relay", url.String(), "error", err)
		}
	}
}

// QueuedCount 返回中继离线队列长度
func (p *Pool) QueuedCount(url types.RelayURL) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, q := range p.queue {
		if q.relay == url {
			n++
		}
	}
	return n
}

// CleanQueuedRequestsForSessionEnd 丢弃排队的 CLOSE 请求
//
// 会话恢复后这些 CLOSE 可能与新的 REQ 竞争，其余请求保留。
func (p *Pool) CleanQueuedRequestsForSessionEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = slices.DeleteFunc(p.queue, func(q queuedRequest) bool {
		return q.req.Type == wire.TypeClose
	})
}
