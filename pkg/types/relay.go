package types

// ============================================================================
//                              RelayInfo - 读写配置
// ============================================================================

// RelayInfo 中继读写权限
type RelayInfo struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

var (
	// ReadWrite 可读可写
	ReadWrite = RelayInfo{Read: true, Write: true}
	// ReadOnly 只读
	ReadOnly = RelayInfo{Read: true}
	// WriteOnly 只写
	WriteOnly = RelayInfo{Write: true}
)

// CanRead 是否可以发送读请求（REQ/CLOSE）
func (i RelayInfo) CanRead() bool { return i.Read }

// CanWrite 是否可以发送写请求（EVENT/AUTH）
func (i RelayInfo) CanWrite() bool { return i.Write }

// ============================================================================
//                              RelayVariant - 中继类型
// ============================================================================

// RelayVariant 中继类型
type RelayVariant int

const (
	// VariantRegular 用户中继列表中的常规中继
	VariantRegular RelayVariant = iota
	// VariantEphemeral 临时租用的中继
	VariantEphemeral
	// VariantNWC 钱包连接专用中继
	VariantNWC
)

// String 返回类型的字符串表示
func (v RelayVariant) String() string {
	switch v {
	case VariantRegular:
		return "regular"
	case VariantEphemeral:
		return "ephemeral"
	case VariantNWC:
		return "nwc"
	default:
		return "unknown"
	}
}

// IsEphemeral 是否属于非默认池的临时中继
func (v RelayVariant) IsEphemeral() bool {
	return v == VariantEphemeral || v == VariantNWC
}

// ============================================================================
//                              RelayDescriptor
// ============================================================================

// RelayDescriptor 描述池中的一个中继
type RelayDescriptor struct {
	URL     RelayURL     `json:"url"`
	Info    RelayInfo    `json:"info"`
	Variant RelayVariant `json:"variant"`
}

// Ephemeral 是否为临时中继
func (d RelayDescriptor) Ephemeral() bool {
	return d.Variant.IsEphemeral()
}

// NewRelayDescriptor 创建常规读写中继描述
func NewRelayDescriptor(u RelayURL) RelayDescriptor {
	return RelayDescriptor{URL: u, Info: ReadWrite, Variant: VariantRegular}
}

// EphemeralDescriptor 创建临时读写中继描述
func EphemeralDescriptor(u RelayURL) RelayDescriptor {
	return RelayDescriptor{URL: u, Info: ReadWrite, Variant: VariantEphemeral}
}
