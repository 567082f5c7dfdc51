package types

import "encoding/json"

// ============================================================================
//                              Event - 消息
// ============================================================================

// Event NIP-01 消息
//
// 签名与校验不在本模块职责内，Event 只作为不透明负载在模块间传递。
type Event struct {
	ID        NoteID     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// MarshalJSON 保证 tags 输出为 [] 而不是 null
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if p.Tags == nil {
		p.Tags = [][]string{}
	}
	return json.Marshal(p)
}

// TagValues 返回指定名称标签的第一个值列表
func (e *Event) TagValues(name string) []string {
	var out []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

// ReplyTo 返回该消息回复的父消息 ID（NIP-10）
//
// 优先使用 marker 为 "reply" 的 e 标签，其次 "root"，
// 都没有时按旧约定取最后一个 e 标签。
func (e *Event) ReplyTo() (NoteID, bool) {
	var root, last string
	for _, tag := range e.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		if len(tag) >= 4 {
			switch tag[3] {
			case "reply":
				if id, err := ParseNoteID(tag[1]); err == nil {
					return id, true
				}
			case "root":
				root = tag[1]
			}
		}
		last = tag[1]
	}

	for _, candidate := range []string{root, last} {
		if candidate == "" {
			continue
		}
		if id, err := ParseNoteID(candidate); err == nil {
			return id, true
		}
	}
	return EmptyNoteID, false
}
