package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Duration 可读写为 "5s" 形式的 time.Duration
//
// JSON 中既可以写字符串（time.ParseDuration 格式），也可以写纳秒整数。
// 序列化总是输出字符串。
type Duration time.Duration

// Duration 返回 time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText 实现 encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，可直接用于 flag.TextVar
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalJSON 接受字符串或纳秒整数
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return d.UnmarshalText([]byte(s))
	}

	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return fmt.Errorf("config: duration must be a string like \"5s\" or integer nanoseconds: %s", data)
	}
	*d = Duration(ns)
	return nil
}
