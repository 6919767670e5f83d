package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	RedisChannel           string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int
	LeaderboardCacheTTL    time.Duration
	NotificationKeepAlive  time.Duration
	SubmissionRateLimit    int
	SubmissionRateWindow   time.Duration
	OpenAIAPIKey           string
	OpenAIModel            string
	OpenAIBaseURL          string
	Evaluation             EvaluationConfig
	Plans                  PlanConfig
}

// EvaluationConfig tunes the background evaluation queue.
type EvaluationConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	MaxAttempts  int
	RetryBase    time.Duration
	RetryMax     time.Duration
	Lease        time.Duration
	Timeout      time.Duration
}

// PlanConfig holds the per-plan solution character limits.
type PlanConfig struct {
	FreeCharLimit int
	ProCharLimit  int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DESIGNHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"leaderboard.cache_ttl",
		"notifications.keepalive",
		"rate_limit.submission_window",
		"evaluation.poll_interval",
		"evaluation.retry_base",
		"evaluation.retry_max",
		"evaluation.lease",
		"evaluation.timeout",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		RedisChannel:           v.GetString("redis.channel"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		LeaderboardCacheTTL:    durations["leaderboard.cache_ttl"],
		NotificationKeepAlive:  durations["notifications.keepalive"],
		SubmissionRateLimit:    v.GetInt("rate_limit.submissions"),
		SubmissionRateWindow:   durations["rate_limit.submission_window"],
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIModel:            v.GetString("openai.model"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		Evaluation: EvaluationConfig{
			PollInterval: durations["evaluation.poll_interval"],
			BatchSize:    v.GetInt("evaluation.batch_size"),
			Workers:      v.GetInt("evaluation.workers"),
			MaxAttempts:  v.GetInt("evaluation.max_attempts"),
			RetryBase:    durations["evaluation.retry_base"],
			RetryMax:     durations["evaluation.retry_max"],
			Lease:        durations["evaluation.lease"],
			Timeout:      durations["evaluation.timeout"],
		},
		Plans: PlanConfig{
			FreeCharLimit: v.GetInt("plans.free_char_limit"),
			ProCharLimit:  v.GetInt("plans.pro_char_limit"),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	cfg.Evaluation = cfg.Evaluation.normalized()
	if cfg.Plans.FreeCharLimit <= 0 {
		cfg.Plans.FreeCharLimit = 1500
	}
	if cfg.Plans.ProCharLimit < cfg.Plans.FreeCharLimit {
		cfg.Plans.ProCharLimit = cfg.Plans.FreeCharLimit
	}
	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "DesignHub API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("redis.channel", "designhub")
	v.SetDefault("cloudinary.folder", "designhub/battles")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("leaderboard.cache_ttl", "1m")
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("rate_limit.submissions", 10)
	v.SetDefault("rate_limit.submission_window", "1m")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("evaluation.poll_interval", "2s")
	v.SetDefault("evaluation.batch_size", 16)
	v.SetDefault("evaluation.workers", 4)
	v.SetDefault("evaluation.max_attempts", 5)
	v.SetDefault("evaluation.retry_base", "2s")
	v.SetDefault("evaluation.retry_max", "2m")
	v.SetDefault("evaluation.lease", "5m")
	v.SetDefault("evaluation.timeout", "45s")
	v.SetDefault("plans.free_char_limit", 1500)
	v.SetDefault("plans.pro_char_limit", 6000)
}

func (e EvaluationConfig) normalized() EvaluationConfig {
	if e.PollInterval <= 0 {
		e.PollInterval = 2 * time.Second
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 16
	}
	if e.Workers <= 0 {
		e.Workers = 4
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = 5
	}
	if e.RetryBase <= 0 {
		e.RetryBase = 2 * time.Second
	}
	if e.RetryMax < e.RetryBase {
		e.RetryMax = e.RetryBase
	}
	if e.Lease <= 0 {
		e.Lease = 5 * time.Minute
	}
	if e.Timeout <= 0 {
		e.Timeout = 45 * time.Second
	}
	return e
}
