package mocks

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// Responder 返回一个模拟中继的 OnSend 行为
//
//   - REQ: 依次回推 events，然后回推 EOSE
//   - EVENT: 回推 OK true
//   - CLOSE / AUTH: 不回应
func Responder(events ...*types.Event) func(tr *MockTransport, frame []byte) {
	return func(tr *MockTransport, frame []byte) {
		parsed := gjson.ParseBytes(frame)
		switch parsed.Get("0").String() {
		case "REQ":
			subID := parsed.Get("1").String()
			for _, ev := range events {
				tr.Push(EventFrame(subID, ev))
			}
			tr.Push(EOSEFrame(subID))
		case "EVENT":
			tr.Push(OKFrame(parsed.Get("1.id").String(), true, ""))
		}
	}
}

// SilentResponder 只回推 OK，从不回应订阅
func SilentResponder() func(tr *MockTransport, frame []byte) {
	return func(tr *MockTransport, frame []byte) {
		parsed := gjson.ParseBytes(frame)
		if parsed.Get("0").String() == "EVENT" {
			tr.Push(OKFrame(parsed.Get("1.id").String(), true, ""))
		}
	}
}

// EventFrame 构造 ["EVENT", subID, event]
func EventFrame(subID string, ev *types.Event) []byte {
	return mustMarshal([]any{"EVENT", subID, ev})
}

// EOSEFrame 构造 ["EOSE", subID]
func EOSEFrame(subID string) []byte {
	return mustMarshal([]any{"EOSE", subID})
}

// OKFrame 构造 ["OK", id, ok, message]
func OKFrame(id string, ok bool, message string) []byte {
	return mustMarshal([]any{"OK", id, ok, message})
}

// AuthFrame 构造 ["AUTH", challenge]
func AuthFrame(challenge string) []byte {
	return mustMarshal([]any{"AUTH", challenge})
}

// FrameType 返回帧的类型标签
func FrameType(frame string) string {
	return gjson.Get(frame, "0").String()
}

// FrameSubID 返回 REQ / CLOSE 帧的订阅 ID
func FrameSubID(frame string) string {
	return gjson.Get(frame, "1").String()
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
