package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"voicetask-service/pkg/config"
)

type Config struct {
	Server config.ServerConfig `yaml:"server"`
	Store  StoreConfig         `yaml:"store"`
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`

	Extraction   ExtractionConfig   `yaml:"extraction"`
	Reminder     ReminderConfig     `yaml:"reminder"`
	Notification NotificationConfig `yaml:"notification"`
}

// StoreConfig selects the task blob backend.
type StoreConfig struct {
	Backend string             `yaml:"backend"` // redis, file, memory
	Key     string             `yaml:"key"`
	File    string             `yaml:"file"`
	Redis   config.RedisConfig `yaml:"redis"`
}

type ExtractionConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c ExtractionConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ReminderConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

func (c ReminderConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// NotificationConfig decides the delivery channel once at process start. An
// unset or "none" channel maps the original app's denied notification
// permission: reminders are consumed silently.
type NotificationConfig struct {
	Channel    string `yaml:"channel"` // log, webhook, mq, none
	WebhookURL string `yaml:"webhook_url"`
}

func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideRedisFromEnv(&cfg.Store.Redis)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Extraction.APIKey = key
	}
	if url := os.Getenv("EXTRACTION_BASE_URL"); url != "" {
		cfg.Extraction.BaseURL = url
	}
	if interval := os.Getenv("REMINDER_INTERVAL_SECONDS"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			cfg.Reminder.IntervalSeconds = v
		}
	}

	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.Key == "" {
		cfg.Store.Key = "voicetask:tasks"
	}
	if cfg.Store.File == "" {
		cfg.Store.File = "data/tasks.json"
	}
	if cfg.Extraction.BaseURL == "" {
		cfg.Extraction.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = "gemini-2.5-flash"
	}
	if cfg.Notification.Channel == "" {
		cfg.Notification.Channel = "log"
	}
}
