package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dep2p/go-relaypool/pkg/types"
)

var (
	// ErrMalformedMessage 无法解析的中继帧
	ErrMalformedMessage = errors.New("wire: malformed message")
	// ErrInvalidRequest 无法编码的请求
	ErrInvalidRequest = errors.New("wire: invalid request")
)

// CommandResult OK 帧内容
type CommandResult struct {
	EventID types.NoteID
	OK      bool
	Message string
}

// Closed CLOSED 帧内容
type Closed struct {
	SubID   string
	Message string
}

// IsRateLimited 是否因限流被关闭
func (c Closed) IsRateLimited() bool {
	return strings.HasPrefix(c.Message, "rate-limited:")
}

// IsError 是否因错误被关闭
func (c Closed) IsError() bool {
	return strings.HasPrefix(c.Message, "error:")
}

// Response 中继发往客户端的消息
type Response struct {
	Type MessageType

	subID string

	// Event 仅 EVENT
	Event *types.Event
	// Result 仅 OK
	Result CommandResult
	// Notice 仅 NOTICE
	Notice string
	// Challenge 仅 AUTH
	Challenge string
	// Closed 仅 CLOSED
	Closed Closed
}

// SubID EVENT / EOSE / CLOSED 返回订阅 ID，其余返回空串
func (r *Response) SubID() string {
	return r.subID
}

// DecodeResponse 解析一个中继文本帧
func DecodeResponse(frame []byte) (*Response, error) {
	if !gjson.ValidBytes(frame) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedMessage)
	}
	root := gjson.ParseBytes(frame)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: not an array", ErrMalformedMessage)
	}
	parts := root.Array()
	if len(parts) < 2 || parts[0].Type != gjson.String {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	typ := MessageType(parts[0].Str)
	resp := &Response{Type: typ}

	switch typ {
	case TypeEvent:
		if len(parts) < 3 || parts[1].Type != gjson.String || !parts[2].IsObject() {
			return nil, fmt.Errorf("%w: bad EVENT", ErrMalformedMessage)
		}
		var ev types.Event
		if err := json.Unmarshal([]byte(parts[2].Raw), &ev); err != nil {
			return nil, fmt.Errorf("%w: event body: %v", ErrMalformedMessage, err)
		}
		resp.subID = parts[1].Str
		resp.Event = &ev

	case TypeEOSE:
		if parts[1].Type != gjson.String {
			return nil, fmt.Errorf("%w: bad EOSE", ErrMalformedMessage)
		}
		resp.subID = parts[1].Str

	case TypeOK:
		if len(parts) < 3 || parts[1].Type != gjson.String {
			return nil, fmt.Errorf("%w: bad OK", ErrMalformedMessage)
		}
		id, err := types.ParseNoteID(parts[1].Str)
		if err != nil {
			return nil, fmt.Errorf("%w: OK event id: %v", ErrMalformedMessage, err)
		}
		if parts[2].Type != gjson.True && parts[2].Type != gjson.False {
			return nil, fmt.Errorf("%w: OK flag not bool", ErrMalformedMessage)
		}
		resp.Result = CommandResult{EventID: id, OK: parts[2].Bool()}
		if len(parts) >= 4 {
			resp.Result.Message = parts[3].String()
		}

	case TypeNotice:
		resp.Notice = parts[1].String()

	case TypeClosed:
		if parts[1].Type != gjson.String {
			return nil, fmt.Errorf("%w: bad CLOSED", ErrMalformedMessage)
		}
		resp.subID = parts[1].Str
		resp.Closed = Closed{SubID: parts[1].Str}
		if len(parts) >= 3 {
			resp.Closed.Message = parts[2].String()
		}

	case TypeAuth:
		if parts[1].Type != gjson.String {
			return nil, fmt.Errorf("%w: bad AUTH", ErrMalformedMessage)
		}
		resp.Challenge = parts[1].Str

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, typ)
	}

	return resp, nil
}
