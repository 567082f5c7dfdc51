package relaypool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dep2p/go-relaypool/config"
	"github.com/dep2p/go-relaypool/pkg/lib/log"
)

// setupLogging 按配置切换全局日志输出
func setupLogging(cfg config.LogConfig) error {
	log.SetLevel(log.ParseLevel(cfg.Level))

	out := os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	if cfg.Format == "json" {
		log.SetDefault(log.NewJSON(out))
	} else {
		log.SetDefault(log.New(out))
	}
	return nil
}
