package server

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 是全局可用的 SugaredLogger，InitLogger/SetLogger 之前丢弃所有日志
var Log = zap.NewNop().Sugar()

// LogOptions 日志输出与文件滚动参数
type LogOptions struct {
	File       string // 为空时只输出到控制台
	Level      string // 文件日志级别，控制台固定 Info
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// InitLogger 控制台输出 Info 及以上；设置了文件时，按 Level 以 JSON 写入滚动文件
func InitLogger(opts LogOptions) error {
	lvl, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	console := zap.NewDevelopmentEncoderConfig()
	console.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stdout), zapcore.InfoLevel),
	}

	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		file := zap.NewProductionEncoderConfig()
		file.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(file), zapcore.AddSync(rot), lvl))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	return nil
}

// SetLogger 替换全局日志（测试中用于接 observer）
func SetLogger(l *zap.Logger) {
	Log = l.Sugar()
}

// SyncLogger 清理和同步缓冲
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
