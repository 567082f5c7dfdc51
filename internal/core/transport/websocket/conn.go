// Package websocket 提供基于 gorilla/websocket 的中继传输
//
// 每个 Conn 启动一个读循环 goroutine，把文本帧放入通道，
// Receive 因此可以响应 ctx 取消；Pong 也由读循环处理。
// 写操作由 writeMu 串行化。
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pkgif "github.com/dep2p/go-relaypool/pkg/interfaces"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("transport/websocket")

var (
	// ErrTransportClosed 连接已关闭
	ErrTransportClosed = errors.New("websocket: transport closed")

	// ErrPongTimeout 保活探测超时
	ErrPongTimeout = errors.New("websocket: pong timeout")
)

// Options 拨号选项
type Options struct {
	// HandshakeTimeout 握手超时
	HandshakeTimeout time.Duration

	// WriteTimeout ctx 没有截止时间时的写超时
	WriteTimeout time.Duration

	// MaxMessageSize 单帧最大字节数
	MaxMessageSize int64

	// Header 握手附加请求头
	Header http.Header
}

func (o *Options) fill() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4 << 20
	}
}

// Dialer WebSocket 拨号器
type Dialer struct {
	opts   Options
	dialer *websocket.Dialer
}

var _ pkgif.Dialer = (*Dialer)(nil)

// NewDialer 创建拨号器
func NewDialer(opts Options) *Dialer {
	opts.fill()
	return &Dialer{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  opts.HandshakeTimeout,
			EnableCompression: true,
		},
	}
}

// Dial 建立连接
func (d *Dialer) Dial(ctx context.Context, url types.RelayURL) (pkgif.Transport, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url.String(), d.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newConn(ws, url, d.opts), nil
}

// ============================================================================
//                              Conn
// ============================================================================

type frame struct {
	data []byte
	err  error
}

// Conn 单个 WebSocket 连接
type Conn struct {
	ws   *websocket.Conn
	url  types.RelayURL
	opts Options

	writeMu sync.Mutex

	frames chan frame
	pongs  chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

var _ pkgif.Transport = (*Conn)(nil)

func newConn(ws *websocket.Conn, url types.RelayURL, opts Options) *Conn {
	c := &Conn{
		ws:     ws,
		url:    url,
		opts:   opts,
		frames: make(chan frame, 64),
		pongs:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	ws.SetReadLimit(opts.MaxMessageSize)
	ws.SetPongHandler(func(string) error {
		select {
		case c.pongs <- struct{}{}:
		default:
		}
		return nil
	})
	go c.readLoop()
	return c
}

// readLoop 读取文本帧，出错后投递错误并退出
func (c *Conn) readLoop() {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("relay closed connection", "relay", c.url.String())
			}
			select {
			case c.frames <- frame{err: err}:
			case <-c.closed:
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		select {
		case c.frames <- frame{data: data}:
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) deadline(ctx context.Context, fallback time.Duration) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(fallback)
}

// Send 发送文本帧
func (c *Conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return ErrTransportClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(c.deadline(ctx, c.opts.WriteTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", c.url, err)
	}
	return nil
}

// Receive 读取下一个文本帧
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f.data, f.err
	case <-c.closed:
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping 发送 ping 控制帧并等待 pong
func (c *Conn) Ping(ctx context.Context) error {
	select {
	case <-c.pongs:
	default:
	}

	dl := c.deadline(ctx, c.opts.WriteTimeout)
	if err := c.ws.WriteControl(websocket.PingMessage, nil, dl); err != nil {
		return fmt.Errorf("ping %s: %w", c.url, err)
	}

	timer := time.NewTimer(time.Until(dl))
	defer timer.Stop()

	select {
	case <-c.pongs:
		return nil
	case <-c.closed:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPongTimeout
	}
}

// Close 发送关闭帧并关闭底层连接
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		if cerr := c.ws.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}
