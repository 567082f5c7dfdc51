package types

import (
	"encoding/hex"
	"encoding/json"
)

// ============================================================================
//                              NoteID - 消息标识
// ============================================================================

// NoteID 消息唯一标识（事件序列化内容的 SHA256）
//
// 外部表示为 64 位小写十六进制字符串。
type NoteID [32]byte

// EmptyNoteID 空消息 ID
var EmptyNoteID NoteID

// ParseNoteID 从十六进制字符串解析 NoteID
func ParseNoteID(s string) (NoteID, error) {
	var id NoteID
	if len(s) != hex.EncodedLen(len(id)) {
		return id, ErrInvalidNoteID
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return EmptyNoteID, ErrInvalidNoteID
	}
	return id, nil
}

// String 返回十六进制表示
func (id NoteID) String() string {
	return hex.EncodeToString(id[:])
}

// ShortString 返回前 8 位，用于日志
func (id NoteID) ShortString() string {
	return id.String()[:8]
}

// IsEmpty 是否为空
func (id NoteID) IsEmpty() bool {
	return id == EmptyNoteID
}

// MarshalJSON 实现 json.Marshaler
func (id NoteID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON 实现 json.Unmarshaler
func (id *NoteID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseNoteID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
