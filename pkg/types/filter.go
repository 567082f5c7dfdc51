package types

import "encoding/json"

// ============================================================================
//                              Filter - 订阅过滤器
// ============================================================================

// Filter NIP-01 订阅过滤器
//
// 序列化时省略空字段，字符串数组字段永远不会输出 null。
type Filter struct {
	IDs     []NoteID
	Authors []string
	Kinds   []int

	// Tags 标签过滤，键为不带 "#" 的单字母标签名
	Tags map[string][]string

	Since *int64
	Until *int64
	Limit *int
}

// MarshalJSON 实现 json.Marshaler
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if len(f.IDs) > 0 {
		ids := make([]string, 0, len(f.IDs))
		for _, id := range f.IDs {
			ids = append(ids, id.String())
		}
		m["ids"] = ids
	}
	if authors := nonEmpty(f.Authors); len(authors) > 0 {
		m["authors"] = authors
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	for name, values := range f.Tags {
		if values = nonEmpty(values); len(values) > 0 {
			m["#"+name] = values
		}
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Limit != nil {
		m["limit"] = *f.Limit
	}
	return json.Marshal(m)
}

// Matches 判断消息是否满足过滤条件（limit 不参与判断）
func (f *Filter) Matches(ev *Event) bool {
	if ev == nil {
		return false
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, ev.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, ev.Kind) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}

	for name, want := range f.Tags {
		if len(want) == 0 {
			continue
		}
		matched := false
		for _, v := range ev.TagValues(name) {
			if containsString(want, v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsID(list []NoteID, id NoteID) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, x := range list {
		if x == n {
			return true
		}
	}
	return false
}
