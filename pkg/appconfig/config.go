// pkg/appconfig/config.go

package appconfig

import (
	"os"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/agms_err"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the typed, validated view of config/agms.yaml plus AGMS_*
// environment overrides. It is built once per process and never mutated.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Health     HealthConfig     `mapstructure:"health"`
	Recovery   RecoveryConfig   `mapstructure:"recovery"`
	Updates    UpdatesConfig    `mapstructure:"updates"`
	Cloud      CloudConfig      `mapstructure:"cloud"`
	Messaging  MessagingConfig  `mapstructure:"messaging"`
	Automation AutomationConfig `mapstructure:"automation"`
	Deps       DepsConfig       `mapstructure:"deps"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type AppConfig struct {
	Branch      string `mapstructure:"branch" validate:"required"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`
	DevLogin    bool   `mapstructure:"dev_login"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	DSN string `mapstructure:"dsn"`
}

type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type RecoveryConfig struct {
	BackupIntervalHours int `mapstructure:"backup_interval_hours" validate:"gte=1"`
}

type UpdatesConfig struct {
	Repository string        `mapstructure:"repository"`
	Interval   time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type CloudConfig struct {
	RedisAddr        string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword    string        `mapstructure:"redis_password"`
	AutoSyncInterval time.Duration `mapstructure:"auto_sync_interval" validate:"gt=0"`
	SyncInterval     time.Duration `mapstructure:"sync_interval" validate:"gt=0"`
}

// Configured reports whether a cloud endpoint was provided at all.
func (c CloudConfig) Configured() bool { return c.RedisAddr != "" }

type MessagingConfig struct {
	WebhookURL    string `mapstructure:"webhook_url" validate:"omitempty,url"`
	RatePerMinute int    `mapstructure:"rate_per_minute" validate:"gte=1"`
}

type AutomationConfig struct {
	ReminderInterval time.Duration `mapstructure:"reminder_interval" validate:"gt=0"`
}

type DepsConfig struct {
	Python          string `mapstructure:"python" validate:"required"`
	InstallOptional bool   `mapstructure:"install_optional"`
	AssumeYes       bool   `mapstructure:"assume_yes"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// IsProduction reports whether the deployment forbids developer shortcuts.
func (c *Config) IsProduction() bool {
	return c.App.Environment == shared.EnvProduction
}

// SetDefaults registers every key so environment overrides apply even when
// the file omits them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.branch", shared.DefaultBranch)
	v.SetDefault("app.environment", shared.EnvDevelopment)
	v.SetDefault("app.dev_login", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("health.interval", time.Minute)
	v.SetDefault("recovery.backup_interval_hours", 24)
	v.SetDefault("updates.repository", "")
	v.SetDefault("updates.interval", 6*time.Hour)
	v.SetDefault("cloud.redis_addr", "")
	v.SetDefault("cloud.redis_password", "")
	v.SetDefault("cloud.auto_sync_interval", 15*time.Minute)
	v.SetDefault("cloud.sync_interval", 5*time.Minute)
	v.SetDefault("messaging.webhook_url", "")
	v.SetDefault("messaging.rate_per_minute", 30)
	v.SetDefault("automation.reminder_interval", time.Minute)
	v.SetDefault("deps.python", "python3")
	v.SetDefault("deps.install_optional", false)
	v.SetDefault("deps.assume_yes", false)
	v.SetDefault("telemetry.enabled", false)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// defaults are static; a failure here is a programming error
		panic(err)
	}
	return cfg
}

// Load reads the optional .env file, then config/agms.yaml, then AGMS_*
// environment overrides, and validates the result.
func Load(layout shared.Layout) (*Config, error) {
	if _, err := os.Stat(layout.EnvFile()); err == nil {
		if err := godotenv.Load(layout.EnvFile()); err != nil {
			return nil, agms_err.NewConfigError("failed to read environment file", err,
				"Check "+layout.EnvFile()+" for malformed lines")
		}
	}

	v := newViper()
	if _, err := os.Stat(layout.ConfigFile()); err == nil {
		v.SetConfigFile(layout.ConfigFile())
		if err := v.ReadInConfig(); err != nil {
			return nil, agms_err.NewConfigError("failed to parse configuration", err,
				"Fix the YAML syntax in "+layout.ConfigFile(),
				"Or delete it to regenerate from "+layout.ConfigTemplate())
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, agms_err.NewConfigError("invalid configuration", err,
			"Review the values in "+layout.ConfigFile())
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(shared.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
