package ai

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxTurns 是服务端会话历史的默认窗口大小。
const DefaultMaxTurns = 10

// ModelConfig defines the configuration for a single LLM.
type ModelConfig struct {
	Name        string  `json:"name" yaml:"name"`                             // e.g., "llama", "gpt-4o"
	Provider    string  `json:"provider" yaml:"provider"`                     // openai / google / anthropic / ollama
	APIKey      string  `json:"api_key" yaml:"api_key"`                       // "env:VAR" or a literal key
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"` // ollama server URL or a custom endpoint
	ModelName   string  `json:"model_name" yaml:"model_name"`                 // provider model ID, e.g. "llama3.1:8b"
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// Config holds the answering configuration.
type Config struct {
	DefaultModel string        `json:"default_model" yaml:"default_model"`
	Models       []ModelConfig `json:"models" yaml:"models"`
	SystemPrompt string        `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxTurns     int           `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	KnowledgeDir string        `json:"knowledge_dir,omitempty" yaml:"knowledge_dir,omitempty"`
	TopK         int           `json:"top_k,omitempty" yaml:"top_k,omitempty"`
}

// LoadConfig reads and parses the configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Model 按名称查找模型配置。
func (c *Config) Model(name string) (*ModelConfig, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], true
		}
	}
	return nil, false
}

// ResolveEnv 解析 "env:" 前缀的值，从环境变量中获取实际内容。
func ResolveEnv(value string) string {
	if strings.HasPrefix(value, "env:") {
		return os.Getenv(strings.TrimPrefix(value, "env:"))
	}
	return value
}
