package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	// AllowOrigins CORS 允许的来源，为空则不启用 CORS
	AllowOrigins []string `mapstructure:"allowOrigins"`
	// APIKeys 非空时，下发命令与推送通知需携带 X-API-Key 或 Bearer
	APIKeys []string `mapstructure:"apiKeys"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// BMSConfig 设备与协议引擎配置
type BMSConfig struct {
	// Device 设备标识，用于 Redis key / NATS subject
	Device string `mapstructure:"device"`
	// Profile 固件修订版本，见 daly.ProfileNames()
	Profile string `mapstructure:"profile"`
	// Fields 关心的字段（glob），为空表示全部
	Fields         []string      `mapstructure:"fields"`
	AlarmDelimiter string        `mapstructure:"alarmDelimiter"`
	PollInterval   time.Duration `mapstructure:"pollInterval"`
	// CommandRate 下行命令速率（每秒）与突发
	CommandRate  float64 `mapstructure:"commandRate"`
	CommandBurst int     `mapstructure:"commandBurst"`
	// StaleAfter 超过该时长未收到通知视为链路失联
	StaleAfter time.Duration `mapstructure:"staleAfter"`
}

// SerialConfig 串口透传链路（BLE-UART 桥）
type SerialConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
	Baud    int    `mapstructure:"baud"`
	// ReadTimeout 单次读超时，用于及时响应关闭
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	// ReconnectDelay 断线重连间隔
	ReconnectDelay time.Duration `mapstructure:"reconnectDelay"`
	// BreakerThreshold 连续写失败次数达到阈值后熔断
	BreakerThreshold int           `mapstructure:"breakerThreshold"`
	BreakerTimeout   time.Duration `mapstructure:"breakerTimeout"`
}

// BridgeConfig TCP 桥接链路：BLE 网关（如 ESP32）把通知原样转发到本端口
type BridgeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	// IdleTimeout 超过该时长无上行数据则断开
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	// MaxConns 同时接入的网关数，单会话只能有一个下行链路
	MaxConns int `mapstructure:"maxConns"`
}

// RedisConfig Redis 快照存储配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	KeyPrefix    string        `mapstructure:"keyPrefix"`
	Channel      string        `mapstructure:"channel"`
}

// NATSConfig NATS 读数发布配置
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subjectPrefix"`
	Name          string        `mapstructure:"name"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// WebhookConfig 告警跳变推送（HMAC 签名）
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"apiKey"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	// DedupTTL 多实例去重窗口，需启用 Redis
	DedupTTL  time.Duration `mapstructure:"dedupTTL"`
	QueueSize int           `mapstructure:"queueSize"`
}

// ReplayConfig 抓包回放（无硬件调试）
type ReplayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`
	Loop    bool   `mapstructure:"loop"`
	// Interval 抓包中未指定 delay 时的默认间隔
	Interval time.Duration `mapstructure:"interval"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	BMS     BMSConfig     `mapstructure:"bms"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Replay  ReplayConfig  `mapstructure:"replay"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 DALY_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 DALY_，并将点号替换为下划线
	v.SetEnvPrefix("DALY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查无法由默认值兜底的配置
func (c *Config) Validate() error {
	if c.BMS.Device == "" {
		return errors.New("bms.device must not be empty")
	}
	if strings.ContainsAny(c.BMS.Device, ".*> ") {
		return fmt.Errorf("bms.device %q must not contain '.', '*', '>' or spaces", c.BMS.Device)
	}
	if c.BMS.PollInterval < 0 {
		return fmt.Errorf("bms.pollInterval must be >= 0, got %s", c.BMS.PollInterval)
	}
	if c.BMS.CommandRate <= 0 {
		return fmt.Errorf("bms.commandRate must be > 0, got %v", c.BMS.CommandRate)
	}
	links := 0
	for _, on := range []bool{c.Serial.Enabled, c.Bridge.Enabled, c.Replay.Enabled} {
		if on {
			links++
		}
	}
	if links > 1 {
		return errors.New("serial, bridge and replay are mutually exclusive")
	}
	if c.Bridge.Enabled && c.Bridge.MaxConns > 1 {
		return fmt.Errorf("bridge.maxConns must be 1, got %d", c.Bridge.MaxConns)
	}
	if c.Serial.Enabled && c.Serial.Port == "" {
		return errors.New("serial.port is required when serial is enabled")
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return errors.New("webhook.url is required when webhook is enabled")
	}
	if c.Replay.Enabled && c.Replay.File == "" {
		return errors.New("replay.file is required when replay is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "daly-bms")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.allowOrigins", []string{})
	v.SetDefault("http.apiKeys", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/daly-bms.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("bms.device", "bms0")
	v.SetDefault("bms.profile", "standard")
	v.SetDefault("bms.fields", []string{})
	v.SetDefault("bms.alarmDelimiter", ";")
	v.SetDefault("bms.pollInterval", "10s")
	v.SetDefault("bms.commandRate", 2.0)
	v.SetDefault("bms.commandBurst", 2)
	v.SetDefault("bms.staleAfter", "1m")

	v.SetDefault("serial.enabled", false)
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 9600)
	v.SetDefault("serial.readTimeout", "500ms")
	v.SetDefault("serial.reconnectDelay", "5s")
	v.SetDefault("serial.breakerThreshold", 5)
	v.SetDefault("serial.breakerTimeout", "30s")

	v.SetDefault("bridge.enabled", false)
	v.SetDefault("bridge.addr", ":7000")
	v.SetDefault("bridge.idleTimeout", "2m")
	v.SetDefault("bridge.writeTimeout", "5s")
	v.SetDefault("bridge.maxConns", 1)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("redis.keyPrefix", "daly:snapshot:")
	v.SetDefault("redis.channel", "daly:updates")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subjectPrefix", "daly")
	v.SetDefault("nats.name", "daly-bms")
	v.SetDefault("nats.timeout", "2s")

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("webhook.retries", 3)
	v.SetDefault("webhook.dedupTTL", "5m")
	v.SetDefault("webhook.queueSize", 64)

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.file", "")
	v.SetDefault("replay.loop", false)
	v.SetDefault("replay.interval", "1s")
}
