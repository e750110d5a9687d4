package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete ChainCommand configuration
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	KPI        KPIConfig        `mapstructure:"kpi"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SimulationConfig controls the synthetic dataset and timing of the
// simulation loops.
type SimulationConfig struct {
	// NumProducts is the number of synthetic products to generate
	NumProducts int `mapstructure:"num_products"`
	// NumSuppliers is the number of synthetic suppliers to generate
	NumSuppliers int `mapstructure:"num_suppliers"`
	// HistoryDays is how many days of demand history to generate
	HistoryDays int `mapstructure:"history_days"`
	// Speed is a multiplier applied to all loop intervals (1.0 = real time)
	Speed float64 `mapstructure:"speed"`
	// TickSeconds is the base monitor tick length in seconds
	TickSeconds float64 `mapstructure:"tick_seconds"`
	// EnableMonitoring turns the proactive monitor on or off
	EnableMonitoring bool `mapstructure:"enable_monitoring"`
}

// KPIConfig holds threshold targets checked against each KPI snapshot
type KPIConfig struct {
	// OTIFTarget is the minimum acceptable on-time-in-full rate
	OTIFTarget float64 `mapstructure:"otif_target"`
	// FillRateTarget is the minimum acceptable fill rate
	FillRateTarget float64 `mapstructure:"fill_rate_target"`
	// MAPEThreshold is the maximum acceptable forecast error, in percent
	MAPEThreshold float64 `mapstructure:"mape_threshold"`
	// DSIMin and DSIMax bound the acceptable days of supply
	DSIMin float64 `mapstructure:"dsi_min"`
	DSIMax float64 `mapstructure:"dsi_max"`
	// StockoutTolerance is the maximum concurrent stockouts tolerated
	StockoutTolerance int `mapstructure:"stockout_tolerance"`
}

// ApprovalConfig controls the human-in-the-loop gate on costly actions
type ApprovalConfig struct {
	// AutoApproveBelow: orders cheaper than this are approved without review (USD)
	AutoApproveBelow float64 `mapstructure:"auto_approve_below"`
	// CostEscalationThreshold: orders at or above this need human approval (USD)
	CostEscalationThreshold float64 `mapstructure:"cost_escalation_threshold"`
	// InventoryChangePctThreshold: safety stock changes above this percentage need approval
	InventoryChangePctThreshold float64 `mapstructure:"inventory_change_pct_threshold"`
}

// LLMConfig selects and configures the text-generation backend
type LLMConfig struct {
	// Mode selects the backend: "mock" or "ollama"
	Mode string `mapstructure:"mode"`
	// OllamaBaseURL is the Ollama server address
	OllamaBaseURL string `mapstructure:"ollama_base_url"`
	// OllamaModel is the model name passed to Ollama
	OllamaModel string `mapstructure:"ollama_model"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// APIKey, when set, is required in the X-API-Key header on every request
	APIKey string `mapstructure:"api_key"`
	// RateLimitPerMinute caps requests per client IP per minute
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	// CORSOrigins is a comma-separated allow list
	CORSOrigins string `mapstructure:"cors_origins"`
}

// BackendConfig selects the persistence backend
type BackendConfig struct {
	// Driver is "none" or "sqlite"
	Driver string `mapstructure:"driver"`
	// Path is the SQLite database file path (sqlite driver only)
	Path string `mapstructure:"path"`
}

// LoggingConfig controls structured logging output
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file"`
}

// Default returns the built-in default configuration
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			NumProducts:      50,
			NumSuppliers:     20,
			HistoryDays:      365,
			Speed:            1.0,
			TickSeconds:      5.0,
			EnableMonitoring: true,
		},
		KPI: KPIConfig{
			OTIFTarget:        0.95,
			FillRateTarget:    0.97,
			MAPEThreshold:     15.0,
			DSIMin:            10.0,
			DSIMax:            60.0,
			StockoutTolerance: 3,
		},
		Approval: ApprovalConfig{
			AutoApproveBelow:            10_000.0,
			CostEscalationThreshold:     50_000.0,
			InventoryChangePctThreshold: 25.0,
		},
		LLM: LLMConfig{
			Mode:          "mock",
			OllamaBaseURL: "http://localhost:11434",
			OllamaModel:   "llama3",
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			RateLimitPerMinute: 120,
			CORSOrigins:        "*",
		},
		Backend: BackendConfig{
			Driver: "none",
			Path:   "chaincommand.db",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("simulation.num_products", defaults.Simulation.NumProducts)
	viper.SetDefault("simulation.num_suppliers", defaults.Simulation.NumSuppliers)
	viper.SetDefault("simulation.history_days", defaults.Simulation.HistoryDays)
	viper.SetDefault("simulation.speed", defaults.Simulation.Speed)
	viper.SetDefault("simulation.tick_seconds", defaults.Simulation.TickSeconds)
	viper.SetDefault("simulation.enable_monitoring", defaults.Simulation.EnableMonitoring)

	viper.SetDefault("kpi.otif_target", defaults.KPI.OTIFTarget)
	viper.SetDefault("kpi.fill_rate_target", defaults.KPI.FillRateTarget)
	viper.SetDefault("kpi.mape_threshold", defaults.KPI.MAPEThreshold)
	viper.SetDefault("kpi.dsi_min", defaults.KPI.DSIMin)
	viper.SetDefault("kpi.dsi_max", defaults.KPI.DSIMax)
	viper.SetDefault("kpi.stockout_tolerance", defaults.KPI.StockoutTolerance)

	viper.SetDefault("approval.auto_approve_below", defaults.Approval.AutoApproveBelow)
	viper.SetDefault("approval.cost_escalation_threshold", defaults.Approval.CostEscalationThreshold)
	viper.SetDefault("approval.inventory_change_pct_threshold", defaults.Approval.InventoryChangePctThreshold)

	viper.SetDefault("llm.mode", defaults.LLM.Mode)
	viper.SetDefault("llm.ollama_base_url", defaults.LLM.OllamaBaseURL)
	viper.SetDefault("llm.ollama_model", defaults.LLM.OllamaModel)

	viper.SetDefault("server.host", defaults.Server.Host)
	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("server.api_key", defaults.Server.APIKey)
	viper.SetDefault("server.rate_limit_per_minute", defaults.Server.RateLimitPerMinute)
	viper.SetDefault("server.cors_origins", defaults.Server.CORSOrigins)

	viper.SetDefault("backend.driver", defaults.Backend.Driver)
	viper.SetDefault("backend.path", defaults.Backend.Path)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads configuration from viper (defaults, config file, and
// environment) into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitViper configures viper's search paths and environment handling.
// If cfgFile is non-empty it is used directly; otherwise viper looks for
// config.yaml in the working directory and $HOME/.config/chaincommand.
func InitViper(cfgFile string) {
	SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/chaincommand")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHAINCOMMAND")
	// Replace dots with underscores for nested keys in env vars
	// e.g., CHAINCOMMAND_APPROVAL_AUTO_APPROVE_BELOW for approval.auto_approve_below
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
