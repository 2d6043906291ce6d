package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ConfigSchemaVersion is bumped when the config layout changes incompatibly.
// Loaded files are checked against ConfigSchemaConstraint.
const (
	ConfigSchemaVersion    = "1.2.0"
	ConfigSchemaConstraint = ">= 1.0.0, < 2.0.0"
)

type Config struct {
	SchemaVersion string             `yaml:"schema_version" json:"schema_version"`
	Global        GlobalConfig       `yaml:"global" json:"global"`
	Intelligence  IntelligenceConfig `yaml:"intelligence" json:"intelligence"`
	Engine        EngineConfig       `yaml:"engine" json:"engine"`
	Notification  NotificationConfig `yaml:"notification" json:"notification"`
	Reporting     ReportingConfig    `yaml:"reporting" json:"reporting"`
	Storage       StorageConfig      `yaml:"storage" json:"storage"`
}

type GlobalConfig struct {
	LogLevel      string        `yaml:"log_level" json:"log_level"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	DataDir       string        `yaml:"data_dir" json:"data_dir"`
	TempDir       string        `yaml:"temp_dir" json:"temp_dir"`
	MetricsAddr   string        `yaml:"metrics_addr" json:"metrics_addr"`
}

type IntelligenceConfig struct {
	EnabledProviders []string           `yaml:"enabled_providers" json:"enabled_providers"`
	BreachVault      ProviderConfig     `yaml:"breach_vault" json:"breach_vault"`
	PeopleIndex      ProviderConfig     `yaml:"people_index" json:"people_index"`
	Correlation      CorrelationConfig  `yaml:"correlation" json:"correlation"`
	SourceCheck      SourceCheckConfig  `yaml:"source_check" json:"source_check"`
	Timeout          time.Duration      `yaml:"timeout" json:"timeout"`
	MaxFindings      int                `yaml:"max_findings" json:"max_findings"`
}

type ProviderConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	APIKey    string        `yaml:"api_key" json:"api_key"`
	RateLimit time.Duration `yaml:"rate_limit" json:"rate_limit"`
}

type CorrelationConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

type SourceCheckConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Nameservers []string      `yaml:"nameservers" json:"nameservers"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	ProbeDNS    bool          `yaml:"probe_dns" json:"probe_dns"`
}

type EngineConfig struct {
	MinConfidence   int                `yaml:"min_confidence" json:"min_confidence"`
	Strict          bool               `yaml:"strict" json:"strict"`
	WeightOverrides map[string]float64 `yaml:"weight_overrides,omitempty" json:"weight_overrides,omitempty"`
}

type NotificationConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	WebhookURL    string        `yaml:"webhook_url" json:"webhook_url"`
	SigningSecret string        `yaml:"signing_secret" json:"signing_secret"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

type ReportingConfig struct {
	OutputDir          string        `yaml:"output_dir" json:"output_dir"`
	DefaultFormat      string        `yaml:"default_format" json:"default_format"`
	RiskScoreThreshold int           `yaml:"risk_score_threshold" json:"risk_score_threshold"`
	MaxReportAge       time.Duration `yaml:"max_report_age" json:"max_report_age"`
	AutoCleanup        bool          `yaml:"auto_cleanup" json:"auto_cleanup"`
	CompressReports    bool          `yaml:"compress_reports" json:"compress_reports"`
}

type StorageConfig struct {
	BaseDir     string        `yaml:"base_dir" json:"base_dir"`
	Compression bool          `yaml:"compression" json:"compression"`
	Retention   time.Duration `yaml:"retention" json:"retention"`
	CacheTTL    time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		SchemaVersion: ConfigSchemaVersion,
		Global: GlobalConfig{
			LogLevel:      "info",
			MaxConcurrent: 3,
			Timeout:       15 * time.Minute,
			RetryAttempts: 3,
			UserAgent:     "VeilScan/1.0",
			DataDir:       "./data",
			TempDir:       os.TempDir(),
		},
		Intelligence: IntelligenceConfig{
			EnabledProviders: []string{"breach_vault", "people_index"},
			BreachVault:      ProviderConfig{Enabled: true, RateLimit: 1500 * time.Millisecond},
			PeopleIndex:      ProviderConfig{Enabled: true, RateLimit: time.Second},
			Correlation: CorrelationConfig{
				Enabled:     true,
				Model:       "gpt-4o-mini",
				Temperature: 0,
				MaxTokens:   512,
			},
			SourceCheck: SourceCheckConfig{
				Enabled:  true,
				Timeout:  5 * time.Second,
				ProbeDNS: false,
			},
			Timeout:     5 * time.Minute,
			MaxFindings: 500,
		},
		Engine: EngineConfig{
			MinConfidence: 50,
		},
		Notification: NotificationConfig{
			Timeout: 10 * time.Second,
		},
		Reporting: ReportingConfig{
			OutputDir:          "./reports",
			DefaultFormat:      "json",
			RiskScoreThreshold: 70,
			MaxReportAge:       90 * 24 * time.Hour,
			AutoCleanup:        true,
		},
		Storage: StorageConfig{
			BaseDir:     "./data",
			Compression: false,
			Retention:   0,
			CacheTTL:    10 * time.Minute,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.CheckSchemaVersion(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// CheckSchemaVersion rejects config files written by an incompatible release
// rather than silently misreading them.
func (c *Config) CheckSchemaVersion() error {
	raw := strings.TrimSpace(c.SchemaVersion)
	if raw == "" {
		// Pre-1.0 files carried no version; treat as current and let field
		// defaults fill the gaps.
		c.SchemaVersion = ConfigSchemaVersion
		return nil
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("invalid config schema_version %q: %w", raw, err)
	}
	constraint, err := semver.NewConstraint(ConfigSchemaConstraint)
	if err != nil {
		return fmt.Errorf("bad schema constraint: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config schema_version %s is outside supported range %s", raw, ConfigSchemaConstraint)
	}
	return nil
}
