package introspect

import (
	"runtime"
	"time"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// IntrospectResponse /debug/introspect 的完整响应
type IntrospectResponse struct {
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Pool      *PoolInfo    `json:"pool,omitempty"`
	PostBox   *PostBoxInfo `json:"postbox,omitempty"`
	Runtime   *RuntimeInfo `json:"runtime,omitempty"`
}

// PoolInfo 中继池概况
type PoolInfo struct {
	Network       string      `json:"network"`
	Connected     int         `json:"connected"`
	Total         int         `json:"total"`
	Subscriptions int         `json:"subscriptions"`
	Relays        []RelayInfo `json:"relays"`
}

// RelayInfo 单个中继
type RelayInfo struct {
	URL         string    `json:"url"`
	State       string    `json:"state"`
	Auth        string    `json:"auth"`
	Read        bool      `json:"read"`
	Write       bool      `json:"write"`
	Variant     string    `json:"variant"`
	Leases      int       `json:"leases"`
	RetryCount  int       `json:"retry_count"`
	LastError   string    `json:"last_error,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	Disabled    bool      `json:"disabled,omitempty"`
}

// PostBoxInfo 发件箱概况
type PostBoxInfo struct {
	Pending int        `json:"pending"`
	Posts   []PostInfo `json:"posts"`
}

// PostInfo 单条待确认消息
type PostInfo struct {
	ID        string    `json:"id"`
	Remaining []string  `json:"remaining"`
	Acked     []string  `json:"acked"`
	Retries   int       `json:"retries"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RuntimeInfo 进程运行时
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	HeapAlloc    uint64 `json:"heap_alloc"`
	HeapObjects  uint64 `json:"heap_objects"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse /health 响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
}

func (s *Server) poolInfo() *PoolInfo {
	src := s.config.Pool
	if src == nil {
		return nil
	}

	statuses := src.Statuses()
	info := &PoolInfo{
		Network:       src.LastNetworkStatus().String(),
		Connected:     src.NumConnected(),
		Total:         len(statuses),
		Subscriptions: src.HandlerCount(),
		Relays:        make([]RelayInfo, len(statuses)),
	}
	for i, st := range statuses {
		d := st.Descriptor
		info.Relays[i] = RelayInfo{
			URL:         d.URL.String(),
			State:       st.State.String(),
			Auth:        st.Auth.String(),
			Read:        d.Info.CanRead(),
			Write:       d.Info.CanWrite(),
			Variant:     d.Variant.String(),
			Leases:      st.Leases,
			RetryCount:  st.RetryCount,
			LastAttempt: st.LastAttempt,
			Disabled:    st.Disabled,
		}
		if st.LastError != nil {
			info.Relays[i].LastError = st.LastError.Error()
		}
	}
	return info
}

func (s *Server) postBoxInfo() *PostBoxInfo {
	if s.config.PostBox == nil {
		return nil
	}

	pending := s.config.PostBox.Pending()
	info := &PostBoxInfo{Pending: len(pending), Posts: make([]PostInfo, len(pending))}
	for i, p := range pending {
		info.Posts[i] = PostInfo{
			ID:        p.ID.String(),
			Remaining: urlStrings(p.Remaining()),
			Acked:     urlStrings(p.AckedBy),
			Retries:   p.Retries,
			CreatedAt: p.CreatedAt,
		}
		if err := p.Err(); err != nil {
			info.Posts[i].Error = err.Error()
		}
	}
	return info
}

func runtimeInfo() *RuntimeInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		HeapAlloc:    ms.HeapAlloc,
		HeapObjects:  ms.HeapObjects,
		NumGC:        ms.NumGC,
	}
}

func urlStrings(urls []types.RelayURL) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.String()
	}
	return out
}
