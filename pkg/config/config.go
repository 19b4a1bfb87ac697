// Package config 读取挂件与参考服务端的 YAML 配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IMBotPlatform/AskWidget/pkg/ai"
	"github.com/IMBotPlatform/AskWidget/pkg/exchange"
	"github.com/IMBotPlatform/AskWidget/pkg/history"
)

const (
	DefaultHealthInterval = 30 * time.Second
	DefaultListen         = ":8080"
	DefaultRateLimit      = 5
	DefaultBurst          = 10
)

// Suggestion 是建议表单使用的 EmailJS 参数。
type Suggestion struct {
	ServiceID  string `yaml:"service_id"`
	TemplateID string `yaml:"template_id"`
	PublicKey  string `yaml:"public_key"`
	Endpoint   string `yaml:"endpoint,omitempty"`
}

// Enabled 报告是否配置了建议通道。
func (s Suggestion) Enabled() bool {
	return s.ServiceID != "" && s.TemplateID != "" && s.PublicKey != ""
}

// Widget 是挂件（客户端）配置。
type Widget struct {
	Endpoint        string        `yaml:"endpoint"`
	HealthEndpoint  string        `yaml:"health_endpoint,omitempty"`
	Mode            string        `yaml:"mode,omitempty"`
	MaxTurns        int           `yaml:"max_turns,omitempty"`
	StateDir        string        `yaml:"state_dir,omitempty"`
	Welcome         string        `yaml:"welcome,omitempty"`
	HealthInterval  time.Duration `yaml:"health_interval,omitempty"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	PersistFailures bool          `yaml:"persist_failures,omitempty"`
	AllowOverlap    bool          `yaml:"allow_overlap,omitempty"`
	Suggestion      Suggestion    `yaml:"suggestion,omitempty"`
}

// Server 是参考问答服务端配置。
type Server struct {
	Listen        string            `yaml:"listen,omitempty"`
	AllowedOrigin string            `yaml:"allowed_origin,omitempty"`
	RateLimit     float64           `yaml:"rate_limit,omitempty"`
	Burst         int               `yaml:"burst,omitempty"`
	SessionDir    string            `yaml:"session_dir,omitempty"`
	Upstreams     map[string]string `yaml:"upstreams,omitempty"`
	AI            ai.Config         `yaml:"ai"`
}

// Config 是配置文件的顶层结构。
type Config struct {
	Widget Widget `yaml:"widget"`
	Server Server `yaml:"server"`
}

// Default 返回填充了默认值的配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load 读取并校验配置文件；以 "env:" 开头的字符串值从环境变量解析。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容。
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.resolveEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查取值范围。
func (c *Config) Validate() error {
	var errs []error
	if _, ok := exchange.ParseMode(c.Widget.Mode); !ok {
		errs = append(errs, fmt.Errorf("widget.mode: unknown mode %q (history|session)", c.Widget.Mode))
	}
	if c.Widget.MaxTurns < 0 {
		errs = append(errs, errors.New("widget.max_turns must not be negative"))
	}
	if c.Widget.RequestTimeout < 0 {
		errs = append(errs, errors.New("widget.request_timeout must not be negative"))
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit and server.burst must not be negative"))
	}
	return errors.Join(errs...)
}

// ExchangeMode 返回解析后的请求模式。
func (w Widget) ExchangeMode() exchange.Mode {
	m, _ := exchange.ParseMode(w.Mode)
	return m
}

func (c *Config) applyDefaults() {
	if c.Widget.MaxTurns == 0 {
		c.Widget.MaxTurns = history.DefaultMaxTurns
	}
	if c.Widget.HealthInterval == 0 {
		c.Widget.HealthInterval = DefaultHealthInterval
	}
	if c.Widget.Welcome == "" {
		c.Widget.Welcome = exchange.DefaultWelcome
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = DefaultRateLimit
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = DefaultBurst
	}
	if c.Server.AI.MaxTurns == 0 {
		c.Server.AI.MaxTurns = ai.DefaultMaxTurns
	}
}

func (c *Config) resolveEnv() {
	for _, p := range []*string{
		&c.Widget.Endpoint,
		&c.Widget.HealthEndpoint,
		&c.Widget.StateDir,
		&c.Widget.Suggestion.ServiceID,
		&c.Widget.Suggestion.TemplateID,
		&c.Widget.Suggestion.PublicKey,
		&c.Server.Listen,
		&c.Server.AllowedOrigin,
		&c.Server.SessionDir,
		&c.Server.AI.KnowledgeDir,
	} {
		*p = ai.ResolveEnv(*p)
	}
	for name, url := range c.Server.Upstreams {
		c.Server.Upstreams[name] = ai.ResolveEnv(url)
	}
}
