package wire

import (
	"encoding/json"
	"fmt"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// MessageType 帧类型标签
type MessageType string

const (
	TypeReq    MessageType = "REQ"
	TypeEvent  MessageType = "EVENT"
	TypeClose  MessageType = "CLOSE"
	TypeAuth   MessageType = "AUTH"
	TypeEOSE   MessageType = "EOSE"
	TypeOK     MessageType = "OK"
	TypeNotice MessageType = "NOTICE"
	TypeClosed MessageType = "CLOSED"
)

// Request 客户端发往中继的请求
type Request struct {
	Type    MessageType
	SubID   string
	Filters []types.Filter
	Event   *types.Event
}

// Req 构造订阅请求
func Req(subID string, filters []types.Filter) Request {
	return Request{Type: TypeReq, SubID: subID, Filters: filters}
}

// Publish 构造发布请求
func Publish(ev *types.Event) Request {
	return Request{Type: TypeEvent, Event: ev}
}

// Close 构造取消订阅请求
func Close(subID string) Request {
	return Request{Type: TypeClose, SubID: subID}
}

// Auth 构造认证回复
func Auth(ev *types.Event) Request {
	return Request{Type: TypeAuth, Event: ev}
}

// IsRead 读请求（REQ / CLOSE），只发往可读中继
func (r Request) IsRead() bool {
	return r.Type == TypeReq || r.Type == TypeClose
}

// IsWrite 写请求（EVENT / AUTH），只发往可写中继
func (r Request) IsWrite() bool {
	return r.Type == TypeEvent || r.Type == TypeAuth
}

// String 用于日志
func (r Request) String() string {
	switch r.Type {
	case TypeReq, TypeClose:
		return fmt.Sprintf("%s %s", r.Type, r.SubID)
	case TypeEvent, TypeAuth:
		if r.Event != nil {
			return fmt.Sprintf("%s %s", r.Type, r.Event.ID.ShortString())
		}
	}
	return string(r.Type)
}

// Encode 编码请求为文本帧
func Encode(r Request) ([]byte, error) {
	var frame []any
	switch r.Type {
	case TypeReq:
		if r.SubID == "" {
			return nil, fmt.Errorf("%w: REQ without subscription id", ErrInvalidRequest)
		}
		frame = make([]any, 0, len(r.Filters)+2)
		frame = append(frame, TypeReq, r.SubID)
		for i := range r.Filters {
			frame = append(frame, r.Filters[i])
		}
	case TypeClose:
		if r.SubID == "" {
			return nil, fmt.Errorf("%w: CLOSE without subscription id", ErrInvalidRequest)
		}
		frame = []any{TypeClose, r.SubID}
	case TypeEvent, TypeAuth:
		if r.Event == nil {
			return nil, fmt.Errorf("%w: %s without event", ErrInvalidRequest, r.Type)
		}
		frame = []any{r.Type, r.Event}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, r.Type)
	}
	return json.Marshal(frame)
}
