package config

import "time"

// Config is the root configuration for taskcast.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MCP       MCPConfig       `yaml:"mcp"`
	Tunnel    TunnelConfig    `yaml:"tunnel"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"gt=0,lt=65536"`
	PublicURL       string        `yaml:"public_url" validate:"omitempty,url"`
	LogLevel        string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile         string        `yaml:"log_file"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // empty = any origin may subscribe
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// TasksConfig holds the defaults applied to every task type registration.
type TasksConfig struct {
	Route            string        `yaml:"route" validate:"startswith=/"`
	Methods          []string      `yaml:"methods" validate:"dive,oneof=GET POST PUT PATCH DELETE"`
	TerminateRoute   string        `yaml:"terminate_route" validate:"startswith=/"`
	TerminateMethods []string      `yaml:"terminate_methods" validate:"dive,oneof=GET POST PUT PATCH DELETE"`
	Namespace        string        `yaml:"namespace" validate:"startswith=/"`
	LockScope        string        `yaml:"lock_scope" validate:"oneof=none task shared"`
	TerminateEvent   string        `yaml:"terminate_event" validate:"required"`
	MaxWorkers       int           `yaml:"max_workers" validate:"gte=0"`
	OrphanTimeout    time.Duration `yaml:"orphan_timeout" validate:"gte=0"` // counted from worker exit, 0 = never
	SendBuffer       int           `yaml:"send_buffer" validate:"gt=0"`
	NotifyQueue      int           `yaml:"notify_queue" validate:"gt=0"`
}

type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path" validate:"required_if=Enabled true"`
	RetentionDays int    `yaml:"retention_days" validate:"gte=0"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
	Burst             int `yaml:"burst" validate:"gte=0"`
}

type MCPConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Route            string        `yaml:"route" validate:"startswith=/"`
	ProgressDebounce time.Duration `yaml:"progress_debounce" validate:"gte=0"`
}

type TunnelConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider" validate:"omitempty,oneof=ngrok"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain" validate:"omitempty,hostname"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8421,
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Tasks: TasksConfig{
			Route:            "/dispose",
			Methods:          []string{"POST"},
			TerminateRoute:   "/terminate",
			TerminateMethods: []string{"POST"},
			Namespace:        "/status",
			LockScope:        "task",
			TerminateEvent:   "terminate",
			SendBuffer:       64,
			NotifyQueue:      256,
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "~/.config/taskcast/taskcast.db",
			RetentionDays: 30,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 600,
			Burst:             100,
		},
		MCP: MCPConfig{
			Enabled:          true,
			Route:            "/mcp",
			ProgressDebounce: 3 * time.Second,
		},
		Tunnel: TunnelConfig{
			Provider: "ngrok",
		},
	}
}
