package pool

import (
	"time"

	"github.com/dep2p/go-relaypool/internal/core/relayconn"
	"github.com/dep2p/go-relaypool/pkg/types"
)

// relay 池内的一个中继，除 conn 外的字段由 Pool.mu 保护
type relay struct {
	desc types.RelayDescriptor
	conn *relayconn.Conn
	auth types.AuthState

	// leases 临时租约计数；leaseGen 每次 Acquire 递增
	leases   int
	leaseGen uint64
}

// RelayStatus 中继状态快照
type RelayStatus struct {
	Descriptor  types.RelayDescriptor
	State       types.ConnectionState
	Auth        types.AuthState
	Leases      int
	RetryCount  int
	LastError   error
	LastAttempt time.Time
	Disabled    bool
}

func (r *relay) status() RelayStatus {
	info := r.conn.Info()
	return RelayStatus{
		Descriptor:  r.desc,
		State:       info.State,
		Auth:        r.auth,
		Leases:      r.leases,
		RetryCount:  info.RetryCount,
		LastError:   info.LastError,
		LastAttempt: info.LastAttempt,
		Disabled:    info.Disabled,
	}
}

// Notice 中继发来的 NOTICE 或 CLOSED
type Notice struct {
	Relay types.RelayURL

	// SubID 仅 CLOSED
	SubID   string
	Message string
	Closed  bool
}
