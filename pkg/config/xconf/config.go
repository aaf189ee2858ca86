package xconf

import (
	"errors"

	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrEmptyPath         = errors.New("xconf: empty config path")
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")
	ErrLoadFailed        = errors.New("xconf: failed to load config")
	ErrParseFailed       = errors.New("xconf: failed to parse config")
	ErrUnmarshalFailed   = errors.New("xconf: failed to unmarshal config")
	// ErrNotReloadable 从字节数据创建的配置没有可重读的来源。
	ErrNotReloadable = errors.New("xconf: config created from bytes cannot be reloaded")
)

// Config 配置实例。
// 基础读取直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回当前 koanf 快照，Reload 后旧快照仍可读但不再更新。
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置反序列化到 target，path 为空表示整个配置。
	Unmarshal(path string, target any) error

	// Reload 重新读取文件，解析失败时保留旧配置。
	Reload() error

	// Path 文件路径，从字节数据创建时为空。
	Path() string

	Format() Format
}

// Option 加载选项。
type Option func(*options)

type options struct {
	delim string
	tag   string
}

func defaultOptions() *options {
	return &options{delim: ".", tag: "koanf"}
}

// WithDelim 设置键分隔符，默认 "."。
func WithDelim(delim string) Option {
	return func(o *options) {
		if delim != "" {
			o.delim = delim
		}
	}
}

// WithTag 设置 Unmarshal 使用的结构体标签，默认 "koanf"。
func WithTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.tag = tag
		}
	}
}

// MustUnmarshal 与 Config.Unmarshal 相同，失败时 panic。
// 仅用于启动阶段的必要配置。
func MustUnmarshal(cfg Config, path string, target any) {
	if err := cfg.Unmarshal(path, target); err != nil {
		panic(err)
	}
}
