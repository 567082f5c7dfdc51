// Package log 提供 relaypool 统一日志接口
//
// 基于 go.uber.org/zap 封装，保留 "msg, key, value..." 的调用风格。
// 各组件通过 Logger(component) 获取懒加载 logger，
// 运行时调用 SetDefault / SetLevel 即可切换全部组件的输出。
package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志级别常量（从 zapcore 导出，方便使用）
const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
)

var (
	defaultLogger atomic.Pointer[zap.Logger]
	defaultLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// SetDefault 设置默认 logger
func SetDefault(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLogger.Store(l)
}

// Default 返回默认 logger
func Default() *zap.Logger {
	return defaultLogger.Load()
}

// New 创建写入 w 的控制台格式 logger，级别受 SetLevel 控制
func New(w io.Writer) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), defaultLevel)
	return zap.New(core)
}

// NewJSON 创建写入 w 的 JSON 格式 logger
func NewJSON(w io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), defaultLevel)
	return zap.New(core)
}

// SetOutput 将默认 logger 的输出重定向到 w
func SetOutput(w io.Writer) {
	SetDefault(New(w))
}

// SetLevel 设置日志级别
func SetLevel(level zapcore.Level) {
	defaultLevel.SetLevel(level)
}

// ParseLevel 解析级别名称（debug/info/warn/error），无法识别时返回 info
func ParseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从当前默认 logger 派生，
// 支持在运行时动态切换日志输出目标。
//
// 使用方式：
//
//	var logger = log.Logger("core/pool")
//	logger.Info("relay added", "url", u)
type LazyLogger struct {
	component string
}

func (l *LazyLogger) sugar() *zap.SugaredLogger {
	return Default().Sugar().With("component", l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.sugar().Debugw(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.sugar().Infow(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.sugar().Warnw(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.sugar().Errorw(msg, args...)
}

// Enabled 当前级别是否启用
func (l *LazyLogger) Enabled(level zapcore.Level) bool {
	return Default().Core().Enabled(level)
}

// Desugar 返回带组件名的 zap.Logger
func (l *LazyLogger) Desugar() *zap.Logger {
	return Default().With(zap.String("component", l.component))
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func init() {
	defaultLogger.Store(New(os.Stderr))
}
