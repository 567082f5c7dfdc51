package introspect

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/internal/core/postbox"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址，只绑定本机
const DefaultAddr = "127.0.0.1:6060"

// shutdownTimeout Stop 等待在途请求的上限
const shutdownTimeout = 5 * time.Second

// PoolSource 自省所需的中继池视图，*pool.Pool 满足该接口
type PoolSource interface {
	Statuses() []pool.RelayStatus
	NumConnected() int
	LastNetworkStatus() types.NetworkStatus
	HandlerCount() int
}

// PostBoxSource 自省所需的发件箱视图，*postbox.PostBox 满足该接口
type PostBoxSource interface {
	Pending() []postbox.PendingPost
}

// Config 服务配置
type Config struct {
	// Addr 监听地址
	// 默认值：DefaultAddr
	Addr string

	// Pool 为空时 /debug/introspect/relays 返回 503，/health 为 degraded
	Pool PoolSource

	// PostBox 为空时 /debug/introspect/postbox 返回 503
	PostBox PostBoxSource

	// Gatherer 设置后挂载 /metrics
	Gatherer prometheus.Gatherer

	// CustomHandlers 额外路由，覆盖同名内置路由
	CustomHandlers map[string]http.HandlerFunc
}

// Server 本地诊断 HTTP 服务
type Server struct {
	config  Config
	handler http.Handler

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	served   chan struct{}
	since    time.Time
}

// New 创建诊断服务，路由在创建时确定
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{config: cfg}
	s.handler = s.routes()
	return s
}

// Handler 返回全部路由，可挂载到调用方已有的 HTTP 服务
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Running 服务是否在监听
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpSrv != nil
}

// Start 监听 Addr 并在后台提供服务，重复调用无效
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("诊断服务异常退出", "addr", ln.Addr().String(), "error", err)
		}
	}()

	s.httpSrv, s.listener, s.served = srv, ln, served
	s.since = time.Now()
	logger.Info("诊断服务已启动", "addr", ln.Addr().String())
	return nil
}

// Stop 优雅关闭，等待 Serve 返回，可重复调用
func (s *Server) Stop() error {
	s.mu.Lock()
	srv, served := s.httpSrv, s.served
	s.httpSrv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-served
	if err != nil {
		logger.Warn("诊断服务关闭超时", "error", err)
		return err
	}
	logger.Info("诊断服务已停止")
	return nil
}

// Addr 实际监听地址；未启动时返回配置值
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

func (s *Server) uptime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.since.IsZero() {
		return ""
	}
	return time.Since(s.since).Truncate(time.Second).String()
}
