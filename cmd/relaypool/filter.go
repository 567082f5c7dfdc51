package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// listFlag 可重复、可逗号分隔的字符串参数
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// buildFilter 由命令行参数构造订阅过滤条件
func buildFilter(f *cliFlags) (types.Filter, error) {
	var filter types.Filter
	for _, k := range f.kinds {
		kind, err := strconv.Atoi(k)
		if err != nil || kind < 0 {
			return types.Filter{}, fmt.Errorf("invalid kind %q", k)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	for _, a := range f.authors {
		if len(a) != 64 {
			return types.Filter{}, fmt.Errorf("invalid author %q: must be 64 hex characters", a)
		}
		filter.Authors = append(filter.Authors, strings.ToLower(a))
	}
	if f.limit < 0 {
		return types.Filter{}, fmt.Errorf("invalid limit %d", f.limit)
	}
	if f.limit > 0 {
		limit := f.limit
		filter.Limit = &limit
	}
	return filter, nil
}
