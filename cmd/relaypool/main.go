// Package main 提供 relaypool 命令行入口
//
// 连接一组中继，按过滤条件订阅，把去重后的消息逐行输出为 JSON，
// 所有中继报告 EOSE（或超时）后输出一行 EOSE 信息。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dep2p/go-relaypool"
	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/internal/core/pool"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
	"github.com/dep2p/go-relaypool/pkg/types"
)

var logger = log.Logger("relaypool/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════

// cliFlags 解析后的命令行参数
type cliFlags struct {
	relays     listFlag
	kinds      listFlag
	authors    listFlag
	limit      int
	timeout    time.Duration
	follow     bool
	configFile string
	logLevel   string
	version    bool
	dumpConfig bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs.Var(&f.relays, "relay", "中继地址，可重复或用逗号分隔")
	fs.Var(&f.kinds, "kinds", "消息类型列表，逗号分隔")
	fs.Var(&f.authors, "authors", "作者公钥列表，逗号分隔")
	fs.IntVar(&f.limit, "limit", 0, "每个中继返回的历史消息上限（0 = 不限制）")
	fs.DurationVar(&f.timeout, "timeout", 0, "EOSE 超时（0 = 使用配置值）")
	fs.BoolVar(&f.follow, "follow", false, "EOSE 之后继续输出新消息")
	fs.StringVar(&f.configFile, "config", "", "配置文件路径")
	fs.StringVar(&f.logLevel, "log-level", "warn", "日志级别 (debug/info/warn/error)")
	fs.BoolVar(&f.version, "version", false, "显示版本信息")
	fs.BoolVar(&f.dumpConfig, "print-config", false, "输出默认配置（JSON）")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	f, err := parseFlags(flag.NewFlagSet("relaypool", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	if f.version {
		fmt.Fprintln(out, relaypool.VersionInfo())
		return nil
	}
	if f.dumpConfig {
		fmt.Fprintln(out, defaultConfigHint())
		return nil
	}

	filter, err := buildFilter(f)
	if err != nil {
		return fmt.Errorf("过滤条件错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := relaypool.New(ctx, buildOptions(f)...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = client.Close() }()

	if len(client.Pool().Relays()) == 0 {
		return errors.New("没有中继：使用 -relay 或在配置文件中设置 pool.default_relays")
	}

	sub, err := client.Pool().Subscribe(ctx, []types.Filter{filter}, nil, pool.SubscribeOptions{EOSETimeout: f.timeout})
	if err != nil {
		return fmt.Errorf("订阅失败: %w", err)
	}
	defer sub.Cancel()

	logger.Info("订阅已开始", "id", sub.ID(), "relays", len(sub.Targets()))
	return printStream(ctx, sub.Items(), out, f.follow)
}

// buildOptions 构建客户端选项
//
// 配置优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量 RELAYPOOL_RELAYS（逗号分隔）
//  3. 配置文件
func buildOptions(f *cliFlags) []relaypool.Option {
	var opts []relaypool.Option
	if f.configFile != "" {
		opts = append(opts, relaypool.WithConfigFile(f.configFile))
	}

	relays := []string(f.relays)
	if len(relays) == 0 {
		if env := os.Getenv("RELAYPOOL_RELAYS"); env != "" {
			var l listFlag
			_ = l.Set(env)
			relays = l
		}
	}
	if len(relays) > 0 {
		opts = append(opts, relaypool.WithRelays(relays...))
	}
	if f.logLevel != "" {
		opts = append(opts, relaypool.WithLogLevel(f.logLevel))
	}
	return opts
}

// ═══════════════════════════════════════════════════════════════════════════
// 输出
// ═══════════════════════════════════════════════════════════════════════════

// eoseLine EOSE 输出格式
type eoseLine struct {
	EOSE      bool     `json:"eose"`
	TimedOut  bool     `json:"timed_out"`
	Completed []string `json:"completed"`
}

// eventLine 消息输出格式
type eventLine struct {
	Relay string       `json:"relay,omitempty"`
	Event *types.Event `json:"event"`
}

// printStream 逐行输出订阅流，非 follow 模式在 EOSE 后返回
func printStream(ctx context.Context, items <-chan types.StreamItem, out io.Writer, follow bool) error {
	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-items:
			if !ok {
				return nil
			}
			if !item.IsEOSE() {
				line := eventLine{Event: item.Event}
				if !item.Relay.IsZero() {
					line.Relay = item.Relay.String()
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
				continue
			}

			line := eoseLine{EOSE: true, TimedOut: item.TimedOut, Completed: make([]string, 0, len(item.Completed))}
			for _, u := range item.Completed {
				line.Completed = append(line.Completed, u.String())
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
			if !follow {
				return nil
			}
		}
	}
}

// defaultConfigHint 输出默认配置，便于编写配置文件
func defaultConfigHint() string {
	data, err := config.NewConfig().ToJSON()
	if err != nil {
		return ""
	}
	return string(data)
}
