package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Model   ModelConfig   `mapstructure:"model"`
	Mask    MaskConfig    `mapstructure:"mask"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	StaticDir    string        `mapstructure:"static_dir"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type StorageConfig struct {
	// 相对路径图片的根目录，为空时使用当前工作目录
	BaseDir string `mapstructure:"base_dir"`
}

type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

type ModelConfig struct {
	Backend        string        `mapstructure:"backend"` // onnx, remote
	Path           string        `mapstructure:"path"`
	LibraryPath    string        `mapstructure:"library_path"`
	InputName      string        `mapstructure:"input_name"`
	OutputName     string        `mapstructure:"output_name"`
	InputSize      int           `mapstructure:"input_size"`
	Sessions       int           `mapstructure:"sessions"`
	IntraOpThreads int           `mapstructure:"intra_op_threads"`
	QueueTimeout   time.Duration `mapstructure:"queue_timeout"`
	RemoteURL      string        `mapstructure:"remote_url"`
	RemoteTimeout  time.Duration `mapstructure:"remote_timeout"`
}

type MaskConfig struct {
	// 连通域分析时大于该值的像素视为前景
	ForegroundThreshold uint8 `mapstructure:"foreground_threshold"`
}

type CacheConfig struct {
	Backend   string        `mapstructure:"backend"` // none, redis, disk
	TTL       time.Duration `mapstructure:"ttl"`
	Dir       string        `mapstructure:"dir"`
	SweepSpec string        `mapstructure:"sweep_spec"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load 从 YAML 文件加载配置，环境变量 REMOVEBG_* 覆盖文件中的值
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// New 加载配置文件，文件不存在时只使用默认值和环境变量；
// 文件存在但内容非法时返回错误
func New(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return unmarshal(newViper())
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Default 返回全部默认值
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("REMOVEBG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Model.Backend {
	case "onnx", "remote":
	default:
		return fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}
	switch c.Cache.Backend {
	case "none", "redis", "disk":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Model.InputSize <= 0 {
		return fmt.Errorf("model.input_size must be positive, got %d", c.Model.InputSize)
	}
	if c.Model.Sessions <= 0 {
		return fmt.Errorf("model.sessions must be positive, got %d", c.Model.Sessions)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":10086")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.static_dir", "./static")
	v.SetDefault("server.max_body_bytes", 32*1024*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("storage.base_dir", "")

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_bytes", 32*1024*1024)

	v.SetDefault("model.backend", "onnx")
	v.SetDefault("model.path", "model/briaai/RMBG-1.4/onnx/model.onnx")
	v.SetDefault("model.library_path", "")
	v.SetDefault("model.input_name", "input")
	v.SetDefault("model.output_name", "output")
	v.SetDefault("model.input_size", 1024)
	v.SetDefault("model.sessions", 1)
	v.SetDefault("model.intra_op_threads", 0)
	v.SetDefault("model.queue_timeout", 0)
	v.SetDefault("model.remote_url", "http://127.0.0.1:8188/segment")
	v.SetDefault("model.remote_timeout", 60*time.Second)

	v.SetDefault("mask.foreground_threshold", 0)

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.dir", "./cache")
	v.SetDefault("cache.sweep_spec", "@every 10m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}
