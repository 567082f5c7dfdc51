// Package types 定义 relaypool 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 relaypool 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 职能
//
// pkg/types 的职能是定义 **Go 内部数据结构**：
//   - 模块间数据传递
//   - API 参数/返回值
//   - 状态枚举、事件类型
//
// # 与 internal/protocol/wire 的区别
//
// pkg/types 定义内存结构，
// internal/protocol/wire 定义与中继之间的线上帧格式（JSON 数组）。
//
// # 文件组织
//
//   - relay_url.go  - RelayURL 端点标识（规范化）
//   - ids.go        - NoteID
//   - event.go      - Event 消息
//   - filter.go     - Filter 订阅过滤器
//   - relay.go      - RelayInfo, RelayVariant, RelayDescriptor
//   - enums.go      - ConnectionState, NetworkStatus, DeliveryMode, AuthState
//   - stream.go     - StreamItem 订阅流元素
//   - errors.go     - 公共错误定义
package types
