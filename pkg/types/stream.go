package types

// StreamItemKind 订阅流元素类型
type StreamItemKind int

const (
	// ItemEvent 一条消息
	ItemEvent StreamItemKind = iota
	// ItemEOSE 历史数据结束信号（每个订阅恰好一次）
	ItemEOSE
)

// StreamItem 订阅流中的一个元素
type StreamItem struct {
	Kind StreamItemKind

	// Event 仅 Kind == ItemEvent 时有效
	Event *Event

	// Relay 首个送达该消息的中继；来自本地存储时为零值
	Relay RelayURL

	// TimedOut 仅 Kind == ItemEOSE 时有效，表示 EOSE 由超时触发
	TimedOut bool

	// Completed 仅 Kind == ItemEOSE 时有效，已报告 EOSE 的中继
	Completed []RelayURL
}

// IsEOSE 是否为 EOSE 信号
func (i StreamItem) IsEOSE() bool {
	return i.Kind == ItemEOSE
}
