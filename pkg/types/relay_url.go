package types

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ============================================================================
//                              RelayURL - 中继端点标识
// ============================================================================

// RelayURL 规范化后的中继地址
//
// 规范化规则：
//   - scheme 必须为 ws 或 wss，统一小写
//   - host 统一小写
//   - 去掉默认端口（ws:80, wss:443）
//   - 仅由 "/" 构成的路径视为空路径
//   - 丢弃 fragment
//
// 两个 RelayURL 相等当且仅当规范化字符串相等，可直接作为 map 键。
type RelayURL struct {
	s string
}

// ParseRelayURL 解析并规范化中继地址
func ParseRelayURL(raw string) (RelayURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RelayURL{}, ErrInvalidRelayURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return RelayURL{}, fmt.Errorf("%w: %v", ErrInvalidRelayURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "ws" && scheme != "wss" {
		return RelayURL{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return RelayURL{}, fmt.Errorf("%w: missing host", ErrInvalidRelayURL)
	}

	port := u.Port()
	if (scheme == "ws" && port == "80") || (scheme == "wss" && port == "443") {
		port = ""
	}

	hostport := host
	if port != "" {
		hostport = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		// IPv6 字面量
		hostport = "[" + host + "]"
	}

	path := u.EscapedPath()
	if strings.Trim(path, "/") == "" {
		path = ""
	}

	out := scheme + "://" + hostport + path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return RelayURL{s: out}, nil
}

// MustParseRelayURL 解析中继地址，失败时 panic
//
// 仅用于常量地址和测试。
func MustParseRelayURL(raw string) RelayURL {
	u, err := ParseRelayURL(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// String 返回规范化字符串
func (u RelayURL) String() string {
	return u.s
}

// IsZero 是否为空地址
func (u RelayURL) IsZero() bool {
	return u.s == ""
}

// MarshalText 实现 encoding.TextMarshaler
func (u RelayURL) MarshalText() ([]byte, error) {
	return []byte(u.s), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (u *RelayURL) UnmarshalText(b []byte) error {
	parsed, err := ParseRelayURL(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ParseRelayURLs 批量解析，遇到第一个错误即返回
func ParseRelayURLs(raws []string) ([]RelayURL, error) {
	out := make([]RelayURL, 0, len(raws))
	for _, r := range raws {
		u, err := ParseRelayURL(r)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// ContainsRelay 判断列表中是否包含指定地址
func ContainsRelay(list []RelayURL, u RelayURL) bool {
	for _, x := range list {
		if x == u {
			return true
		}
	}
	return false
}
