// Package logging 构建zap日志器
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志配置
type Options struct {
	Level      string
	File       string // 为空时输出到stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger zap日志器及其可调级别
type Logger struct {
	*zap.Logger
	Atomic zap.AtomicLevel
	closer io.Closer
}

// New 创建日志器。写文件时使用JSON编码并按大小滚动，否则输出控制台格式到stderr。
func New(opts Options) *Logger {
	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	var (
		sink    zapcore.WriteSyncer
		encoder zapcore.Encoder
		closer  io.Closer
	)
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		sink = zapcore.AddSync(rotator)
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		closer = rotator
	} else {
		sink = zapcore.Lock(os.Stderr)
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		Atomic: level,
		closer: closer,
	}
}

// SetLevel 运行时调整日志级别
func (l *Logger) SetLevel(s string) {
	l.Atomic.SetLevel(ParseLevel(s))
}

// Close 刷新缓冲并关闭日志文件
func (l *Logger) Close() error {
	// stderr上的Sync可能返回EINVAL，忽略
	_ = l.Logger.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// ParseLevel 将"debug"、"info"、"warn"、"error"转换为zapcore.Level，未知值返回Info
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
