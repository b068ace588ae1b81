package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tickzone/protocol"
)

const (
	// DefaultPort 游戏客户端接入端口
	DefaultPort = 3215
	// DefaultMaxSendErrors 连续发送失败的容忍次数，再多一次即视为不健康
	DefaultMaxSendErrors = 100
)

// Config 区域的全部可调参数，零值由 Normalize 补默认值
type Config struct {
	ZoneName   string `yaml:"zone_name"`
	ListenAddr string `yaml:"listen_addr"`
	HTTPAddr   string `yaml:"http_addr"`
	WebSocket  bool   `yaml:"websocket"`

	TicksPerSecond int           `yaml:"ticks_per_second"`
	ReceiveWindow  time.Duration `yaml:"receive_window"` // 0 表示阻塞到有数据
	WriteWindow    time.Duration `yaml:"write_window"`

	MaxSendErrors      int `yaml:"max_send_errors"`
	MaxFrameSize       int `yaml:"max_frame_size"` // 不能超过 protocol.DefaultMaxFrameSize
	MaxOutboundPackets int `yaml:"max_outbound_packets"`
	MaxAcceptsPerTick  int `yaml:"max_accepts_per_tick"`

	// 聊天限流，ChatRate 为 0 时关闭（默认）
	ChatRate  float64 `yaml:"chat_rate"`
	ChatBurst int     `yaml:"chat_burst"`

	Enemies int `yaml:"enemies"`

	LogFile       string `yaml:"log_file"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`

	SessionDB string `yaml:"session_db"`
}

// DefaultConfig 未提供配置文件时使用的默认配置
func DefaultConfig() Config {
	return Config{
		ZoneName:           "TestZone",
		ListenAddr:         fmt.Sprintf("0.0.0.0:%d", DefaultPort),
		HTTPAddr:           ":8080",
		TicksPerSecond:     20,
		ReceiveWindow:      20 * time.Millisecond,
		WriteWindow:        time.Millisecond,
		MaxSendErrors:      DefaultMaxSendErrors,
		MaxFrameSize:       protocol.DefaultMaxFrameSize,
		MaxOutboundPackets: 4096,
		MaxAcceptsPerTick:  64,
		ChatBurst:          5,
		LogFile:            "log/zone.log",
		LogLevel:           "info",
		LogMaxSizeMB:       10,
		LogMaxBackups:      3,
		LogMaxAgeDays:      7,
	}
}

// LoadConfig 在默认值之上叠加 YAML 文件；path 为空时直接返回默认值
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Normalize 用默认值填充零值字段
func (c *Config) Normalize() {
	def := DefaultConfig()
	c.ZoneName = strings.TrimSpace(c.ZoneName)
	if c.ZoneName == "" {
		c.ZoneName = def.ZoneName
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.TicksPerSecond == 0 {
		c.TicksPerSecond = def.TicksPerSecond
	}
	if c.WriteWindow == 0 {
		c.WriteWindow = def.WriteWindow
	}
	if c.MaxSendErrors == 0 {
		c.MaxSendErrors = def.MaxSendErrors
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	if c.MaxAcceptsPerTick == 0 {
		c.MaxAcceptsPerTick = def.MaxAcceptsPerTick
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.TicksPerSecond < 0 || c.TicksPerSecond > 1000 {
		errs = append(errs, fmt.Errorf("ticks_per_second must be in [1,1000], got %d", c.TicksPerSecond))
	}
	if c.ReceiveWindow < 0 {
		errs = append(errs, errors.New("receive_window must not be negative"))
	}
	if c.WriteWindow < 0 {
		errs = append(errs, errors.New("write_window must not be negative"))
	}
	if c.MaxSendErrors < 0 {
		errs = append(errs, errors.New("max_send_errors must not be negative"))
	}
	// 入站上限不能超过出站序列化上限，否则收下的聊天无法转发
	if c.MaxFrameSize < 16 || c.MaxFrameSize > protocol.DefaultMaxFrameSize {
		errs = append(errs, fmt.Errorf("max_frame_size must be in [16,%d], got %d", protocol.DefaultMaxFrameSize, c.MaxFrameSize))
	}
	if c.MaxOutboundPackets < 0 {
		errs = append(errs, errors.New("max_outbound_packets must not be negative"))
	}
	if c.ChatRate < 0 || c.ChatBurst < 0 {
		errs = append(errs, errors.New("chat_rate and chat_burst must not be negative"))
	}
	if c.ChatRate > 0 && c.ChatBurst == 0 {
		errs = append(errs, errors.New("chat_burst must be positive when chat_rate is set"))
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		errs = append(errs, errors.New("log rotation settings must not be negative"))
	}
	if c.Enemies < 0 {
		errs = append(errs, errors.New("enemies must not be negative"))
	}
	return errors.Join(errs...)
}

// LogOptions 从配置生成日志参数
func (c Config) LogOptions() LogOptions {
	return LogOptions{
		File:       c.LogFile,
		Level:      c.LogLevel,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   c.LogCompress,
	}
}

// TickInterval 相邻两帧开始时间的间隔
func (c Config) TickInterval() time.Duration {
	if c.TicksPerSecond <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.TicksPerSecond)
}
