package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"NetBank-Chain/pkg/logger"
)

// Config 描述网银助手在启动阶段需要加载的核心配置。
type Config struct {
	Server     ServerConfig     `json:"server"`
	Sessions   SessionsConfig   `json:"sessions"`
	Repository RepositoryConfig `json:"repository"`
	Events     EventsConfig     `json:"events"`
	Intent     IntentConfig     `json:"intent"`
	Saga       SagaConfig       `json:"saga"`
	Metrics    MetricsConfig    `json:"metrics"`
	Logger     logger.Config    `json:"logger"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// SessionsConfig 描述会话存储后端。driver 支持 memory 与 redis。
type SessionsConfig struct {
	Driver            string      `json:"driver"`
	SessionTTLMinutes int         `json:"session_ttl_minutes"`
	Redis             RedisConfig `json:"redis"`
}

// RedisConfig 描述 Redis 连接信息。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// RepositoryConfig 描述银行数据后端。driver 支持 file 与 mysql。
type RepositoryConfig struct {
	Driver  string `json:"driver"`
	DataDir string `json:"data_dir"`
	DSN     string `json:"dsn"`
}

// EventsConfig 描述转账事件的发布后端。driver 支持 memory 与 rabbitmq。
type EventsConfig struct {
	Driver  string `json:"driver"`
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
}

// IntentConfig 描述内置规则解析器的规则文件位置，留空使用内置规则。
type IntentConfig struct {
	RulesPath string `json:"rules_path"`
}

// SagaConfig 描述转账流程的运行参数。
type SagaConfig struct {
	// ScratchTTLMinutes 是转账暂存状态的闲置过期时间（分钟）。
	ScratchTTLMinutes int `json:"scratch_ttl_minutes"`
}

// MetricsConfig 控制独立的指标服务，地址留空则不启动。
type MetricsConfig struct {
	Address string `json:"address"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Sessions.Driver == "" {
		c.Sessions.Driver = "memory"
	}
	if c.Sessions.SessionTTLMinutes <= 0 {
		c.Sessions.SessionTTLMinutes = 24 * 60
	}
	if c.Sessions.Redis.KeyPrefix == "" {
		c.Sessions.Redis.KeyPrefix = "netbank:session:"
	}

	if c.Repository.Driver == "" {
		c.Repository.Driver = "file"
	}
	if c.Repository.DataDir == "" {
		c.Repository.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Repository.DataDir) {
		c.Repository.DataDir = filepath.Join(baseDir, c.Repository.DataDir)
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "netbank.transfers"
	}

	if c.Intent.RulesPath != "" && !filepath.IsAbs(c.Intent.RulesPath) {
		c.Intent.RulesPath = filepath.Join(baseDir, c.Intent.RulesPath)
	}

	if c.Saga.ScratchTTLMinutes <= 0 {
		c.Saga.ScratchTTLMinutes = 15
	}
}
