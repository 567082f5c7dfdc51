package eventbus

import (
	"time"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// EvtConnectionStateChanged 中继连接状态变化
type EvtConnectionStateChanged struct {
	Relay types.RelayURL
	Old   types.ConnectionState
	New   types.ConnectionState

	// Err 进入 Failed / Disconnected 的原因，可能为空
	Err error

	At time.Time
}

// EvtStatsUpdated 中继首见消息计数变化
type EvtStatsUpdated struct {
	Relay types.RelayURL
	Count int
}

// EvtNetworkStatusChanged 网络可达性变化
type EvtNetworkStatusChanged struct {
	Old types.NetworkStatus
	New types.NetworkStatus
}

// EvtPostAcked 外发消息被中继确认
type EvtPostAcked struct {
	ID    types.NoteID
	Relay types.RelayURL
}

// EvtPostFailed 外发消息被中继拒绝（OK false）
type EvtPostFailed struct {
	ID     types.NoteID
	Relay  types.RelayURL
	Reason string
}

// EvtPostCompleted 外发消息满足确认策略，已移出发件箱
type EvtPostCompleted struct {
	ID    types.NoteID
	Acked []types.RelayURL
}
