package introspect

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// report 生成一个 JSON 响应；返回 nil 表示数据源不可用
type report func() any

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/debug/introspect", getJSON(func() any { return s.snapshot() }))
	mux.Handle("/debug/introspect/relays", getJSON(func() any {
		if info := s.poolInfo(); info != nil {
			return info.Relays
		}
		return nil
	}))
	mux.Handle("/debug/introspect/postbox", getJSON(func() any {
		if info := s.postBoxInfo(); info != nil {
			return info
		}
		return nil
	}))
	mux.Handle("/debug/introspect/runtime", getJSON(func() any { return runtimeInfo() }))
	mux.Handle("/health", getJSON(func() any { return s.health() }))

	if s.config.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	for path, h := range s.config.CustomHandlers {
		mux.HandleFunc(path, h)
	}
	return mux
}

// getJSON 只接受 GET，report 返回 nil 时回复 503
func getJSON(fn report) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		v := fn()
		if v == nil {
			http.Error(w, "source not configured", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			logger.Debug("写入诊断响应失败", "path", r.URL.Path, "error", err)
		}
	})
}

func (s *Server) snapshot() IntrospectResponse {
	return IntrospectResponse{
		Timestamp: time.Now(),
		Uptime:    s.uptime(),
		Pool:      s.poolInfo(),
		PostBox:   s.postBoxInfo(),
		Runtime:   runtimeInfo(),
	}
}

// health 没有中继池或没有已连接中继时为 degraded
func (s *Server) health() HealthResponse {
	h := HealthResponse{Status: "ok", Timestamp: time.Now(), Uptime: s.uptime()}
	if s.config.Pool == nil || s.config.Pool.NumConnected() == 0 {
		h.Status = "degraded"
	}
	return h
}
