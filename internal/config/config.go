package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/callrecap/internal/adapters/ai"
	"github.com/dkeye/callrecap/internal/adapters/mail"
	"github.com/dkeye/callrecap/internal/adapters/sink"
	"github.com/dkeye/callrecap/internal/adapters/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "RECAP"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	Secret     string        `mapstructure:"secret"`

	Room       RoomConfig      `mapstructure:"room"`
	Signal     SignalConfig    `mapstructure:"signal"`
	Recording  RecordingConfig `mapstructure:"recording"`
	Upload     UploadConfig    `mapstructure:"upload"`
	AI         ai.Config       `mapstructure:"ai"`
	SMTP       mail.Config     `mapstructure:"smtp"`
	Webhook    sink.Config     `mapstructure:"webhook"`
	ICEServers []string        `mapstructure:"ice_servers"`
}

type RoomConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

type SignalConfig struct {
	EndCallResend time.Duration `mapstructure:"end_call_resend"`
	Rate          float64       `mapstructure:"rate"`
	Burst         int           `mapstructure:"burst"`
	// Backpressure is "kick" (disconnect slow members) or "drop" (drop the frame).
	Backpressure string `mapstructure:"backpressure"`
}

type RecordingConfig struct {
	Driver          string           `mapstructure:"driver"`
	Dir             string           `mapstructure:"dir"`
	ProcessingDelay time.Duration    `mapstructure:"processing_delay"`
	StaleAfter      time.Duration    `mapstructure:"stale_after"`
	MaxUploadBytes  int64            `mapstructure:"max_upload_bytes"`
	S3              storage.S3Config `mapstructure:"s3"`
}

type UploadConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("secret", "change-me")

	v.SetDefault("room.grace_period", "10s")

	v.SetDefault("signal.end_call_resend", "1s")
	v.SetDefault("signal.rate", 20)
	v.SetDefault("signal.burst", 40)
	v.SetDefault("signal.backpressure", "kick")

	v.SetDefault("recording.driver", "fs")
	v.SetDefault("recording.dir", "recordings")
	v.SetDefault("recording.processing_delay", "3s")
	v.SetDefault("recording.stale_after", "10m")
	v.SetDefault("recording.max_upload_bytes", 50<<20)
	v.SetDefault("recording.s3.bucket", "")
	v.SetDefault("recording.s3.region", "us-east-1")
	v.SetDefault("recording.s3.endpoint", "")
	v.SetDefault("recording.s3.prefix", "recordings")

	v.SetDefault("upload.rate", 2)
	v.SetDefault("upload.burst", 10)

	v.SetDefault("ai.mistral_api_key", "")
	v.SetDefault("ai.mistral_model", ai.DefaultMistralModel)
	v.SetDefault("ai.mistral_url", ai.DefaultMistralURL)
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.anthropic_model", ai.DefaultAnthropicModel)
	v.SetDefault("ai.anthropic_url", ai.DefaultAnthropicURL)
	v.SetDefault("ai.summary_prompt", ai.DefaultSummaryPrompt)
	v.SetDefault("ai.timeout", "2m")
	v.SetDefault("ai.concurrency", 2)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.from_name", "Video Calling App")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.max_tries", 3)

	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
}

// Load reads config/config.<CONFIG_ENV>.yaml when present, then applies
// RECAP_* environment overrides (RECAP_AI_MISTRAL_API_KEY for ai.mistral_api_key).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Str("recording_driver", cfg.Recording.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Recording.Driver {
	case "fs":
		if c.Recording.Dir == "" {
			errs = append(errs, errors.New("recording.dir is required for the fs driver"))
		}
	case "s3":
		if c.Recording.S3.Bucket == "" {
			errs = append(errs, errors.New("recording.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("recording.driver %q must be fs or s3", c.Recording.Driver))
	}
	switch c.Signal.Backpressure {
	case "", "kick", "drop":
	default:
		errs = append(errs, fmt.Errorf("signal.backpressure %q must be kick or drop", c.Signal.Backpressure))
	}
	if c.Recording.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("recording.max_upload_bytes must be positive"))
	}
	if c.PongWait > 0 && c.PingPeriod >= c.PongWait {
		errs = append(errs, errors.New("ping_period must be shorter than pong_wait"))
	}
	return errors.Join(errs...)
}
