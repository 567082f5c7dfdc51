package types

// ============================================================================
//                              ConnectionState - 连接状态
// ============================================================================

// ConnectionState 单个中继连接的状态
type ConnectionState int32

const (
	// StateDisconnected 未连接
	StateDisconnected ConnectionState = iota
	// StateConnecting 连接中
	StateConnecting
	// StateConnected 已连接
	StateConnected
	// StateFailed 连接失败（等待退避重连）
	StateFailed
)

// String 返回状态的字符串表示
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              NetworkStatus - 网络可达性
// ============================================================================

// NetworkStatus 系统网络可达性状态
type NetworkStatus int

const (
	// NetworkUnsatisfied 网络不可用
	NetworkUnsatisfied NetworkStatus = iota
	// NetworkSatisfied 网络可用
	NetworkSatisfied
	// NetworkRequiresConnection 网络可用但需要先建立连接（如按需 VPN）
	NetworkRequiresConnection
)

// String 返回状态的字符串表示
func (s NetworkStatus) String() string {
	switch s {
	case NetworkSatisfied:
		return "satisfied"
	case NetworkUnsatisfied:
		return "unsatisfied"
	case NetworkRequiresConnection:
		return "requires-connection"
	default:
		return "unknown"
	}
}

// IsUsable 该状态下是否应当尝试重连
func (s NetworkStatus) IsUsable() bool {
	return s == NetworkSatisfied || s == NetworkRequiresConnection
}

// ============================================================================
//                              DeliveryMode - 订阅投递模式
// ============================================================================

// DeliveryMode 订阅数据来源
type DeliveryMode int

const (
	// DeliveryParallel 本地存储与网络并行（默认）
	DeliveryParallel DeliveryMode = iota
	// DeliveryStoreOnly 仅本地存储
	DeliveryStoreOnly
	// DeliveryNetworkOnly 仅网络
	DeliveryNetworkOnly
)

// String 返回模式的字符串表示
func (m DeliveryMode) String() string {
	switch m {
	case DeliveryParallel:
		return "parallel"
	case DeliveryStoreOnly:
		return "store-only"
	case DeliveryNetworkOnly:
		return "network-only"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              AuthState - NIP-42 认证状态
// ============================================================================

// AuthState 中继认证状态
type AuthState int

const (
	// AuthNone 未收到认证挑战
	AuthNone AuthState = iota
	// AuthPending 已收到挑战，尚未回复
	AuthPending
	// AuthVerified 已回复认证事件
	AuthVerified
	// AuthError 无法回复挑战（无密钥或签名失败）
	AuthError
)

// String 返回状态的字符串表示
func (s AuthState) String() string {
	switch s {
	case AuthNone:
		return "none"
	case AuthPending:
		return "pending"
	case AuthVerified:
		return "verified"
	case AuthError:
		return "error"
	default:
		return "unknown"
	}
}
