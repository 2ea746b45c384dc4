package dataproto

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// EnvLogLevel 覆盖配置文件中的日志级别
const EnvLogLevel = "DATAPROTO_LOG_LEVEL"

const (
	DefaultInitialCapacity = 64
	DefaultLogLevel        = "disabled"
)

// defaultPackingOptions 是默认的选项实例
// 用于避免重复分配内存
var defaultPackingOptions = &Options{}

// Options 定义了读写数据包的配置选项
type Options struct {
	// InitialCapacity 是新建写入包的初始容量（字节）
	// 0 表示使用 DefaultInitialCapacity
	InitialCapacity int `toml:"initial_capacity"`

	// MaxByteRun 限制单个字节串/字符串的长度
	// 0 表示使用 FlexIntMax，不能超过 FlexIntMax
	MaxByteRun int `toml:"max_byte_run"`

	// Strict 为 true 时 Unmarshal 拒绝根值之后的剩余字节
	Strict bool `toml:"strict"`

	// LogLevel 是 zerolog 级别名称，仅在 Logger 未设置时生效
	LogLevel string `toml:"log_level"`

	// Logger 记录缓冲区扩容和编解码失败
	// 为 nil 时根据 LogLevel 构建，默认不输出
	Logger *zerolog.Logger `toml:"-"`
}

// Validate 验证选项的有效性并设置默认值
func (o *Options) Validate() error {
	if o.InitialCapacity < 0 {
		return fmt.Errorf("initial_capacity %d is negative: %w", o.InitialCapacity, ErrInvalidOptions)
	}
	if o.InitialCapacity == 0 {
		o.InitialCapacity = DefaultInitialCapacity
	}

	switch {
	case o.MaxByteRun < 0 || o.MaxByteRun > FlexIntMax:
		return fmt.Errorf("max_byte_run %d must be within [0, %d]: %w", o.MaxByteRun, FlexIntMax, ErrInvalidOptions)
	case o.MaxByteRun == 0:
		o.MaxByteRun = FlexIntMax
	}

	if o.Logger == nil {
		if o.LogLevel == "" {
			o.LogLevel = DefaultLogLevel
		}
		level, err := parseLevel(o.LogLevel)
		if err != nil {
			return err
		}
		logger := zerolog.Nop()
		if level != zerolog.Disabled {
			logger = NewConsoleLogger(os.Stderr, level)
		}
		o.Logger = &logger
	}
	return nil
}

// DecodeOptions 从 TOML 流中读取选项，环境变量 DATAPROTO_LOG_LEVEL 优先
// DecodeOptions reads options from a TOML stream. DATAPROTO_LOG_LEVEL overrides log_level.
func DecodeOptions(r io.Reader) (*Options, error) {
	opts := &Options{}
	if _, err := toml.NewDecoder(r).Decode(opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if lvl := strings.TrimSpace(os.Getenv(EnvLogLevel)); lvl != "" {
		opts.LogLevel = lvl
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// LoadOptions reads options from a TOML file.
func LoadOptions(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeOptions(f)
}

// NewConsoleLogger 构建一个人类可读的 zerolog 日志器
func NewConsoleLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	return zerolog.New(output).Level(level).With().Timestamp().Str("component", "dataproto").Logger()
}

func parseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "off", "none", "disable", "disabled":
		return zerolog.Disabled, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.Disabled, fmt.Errorf("log_level %q: %w", raw, ErrInvalidOptions)
	}
	return level, nil
}

// resolveOptions 校验选项的副本，调用方的 Options 可以被多个 goroutine 共享
// resolveOptions validates a copy, so one Options may be shared across goroutines.
func resolveOptions(options *Options) (*Options, error) {
	if options == nil {
		return defaultPackingOptions, nil
	}
	resolved := *options
	if err := resolved.Validate(); err != nil {
		return nil, err
	}
	return &resolved, nil
}

func init() {
	_ = defaultPackingOptions.Validate()
}
