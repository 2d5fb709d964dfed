package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Session  SessionConfig
	Personas PersonaConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		LLM:      llm,
		Session:  session,
		Personas: PersonaConfig{File: strings.TrimSpace(os.Getenv("PERSONAS_FILE"))},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	return ResolveAddr(os.Getenv("HOST"), os.Getenv("PORT"))
}

// ResolveAddr combines a bind host and a port into a listen address.
// The port may also be given as ":5000" or "127.0.0.1:5000".
func ResolveAddr(host, port string) (ServerConfig, error) {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if host == "" {
		host = "0.0.0.0"
	}
	if port == "" {
		port = "5000"
	}

	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: net.JoinHostPort(host, port)}, nil
}

// LLMConfig 描述大模型相关配置。
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// Enabled 表示是否提供了必需的模型配置。
func (c LLMConfig) Enabled() bool {
	return c.BaseURL != "" && c.Model != ""
}

// NewChatModel 使用配置创建一个模型实例。
// Retries are disabled: a failed call surfaces to the caller as is.
func (c LLMConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("LLM_BASE_URL and LLM_MODEL are required")
	}

	temperature := float32(c.Temperature)
	topP := float32(c.TopP)
	maxTokens := c.MaxTokens
	timeout := c.Timeout
	retries := 0

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
		Timeout:     &timeout,
		RetryTimes:  &retries,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadLLMConfig() (LLMConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	timeout, err := parseDurationEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return LLMConfig{}, err
	}

	cfg := LLMConfig{
		BaseURL:     getEnvOrDefault("LLM_BASE_URL", "http://127.0.0.1:11434/v1"),
		Model:       getEnvOrDefault("LLM_MODEL", "llama3:latest"),
		APIKey:      getEnvOrDefault("LLM_API_KEY", "ollama-local"),
		MaxTokens:   220,
		Temperature: 0.7,
		TopP:        0.95,
		Timeout:     timeout,
	}
	if temperature != nil {
		cfg.Temperature = *temperature
	}
	if topP != nil {
		cfg.TopP = *topP
	}
	if maxTokens != nil {
		if *maxTokens < 1 {
			return LLMConfig{}, fmt.Errorf("invalid LLM_MAX_TOKENS value %d", *maxTokens)
		}
		cfg.MaxTokens = *maxTokens
	}
	return cfg, nil
}

// SessionConfig 描述会话存储配置。
type SessionConfig struct {
	MaxTurns      int
	TTL           time.Duration
	SweepSchedule string
}

func loadSessionConfig() (SessionConfig, error) {
	maxTurns := 12
	if override, err := parseOptionalIntEnv("SESSION_MAX_TURNS"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxTurns = 1
		} else {
			maxTurns = *override
		}
	}

	ttl, err := parseDurationEnv("SESSION_TTL", 0)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		MaxTurns:      maxTurns,
		TTL:           ttl,
		SweepSchedule: getEnvOrDefault("SESSION_SWEEP", "@every 1m"),
	}, nil
}

// PersonaConfig points at an optional persona definition file.
type PersonaConfig struct {
	File string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
