package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Auth          AuthConfig          `yaml:"auth"`
	Timing        TimingConfig        `yaml:"timing"`
	Location      LocationConfig      `yaml:"location"`
	Countdown     CountdownConfig     `yaml:"countdown"`
	Preferences   PreferencesConfig   `yaml:"preferences"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Adhan         AdhanConfig         `yaml:"adhan"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	Retry        RetryConfig     `yaml:"retry"`
	CORS         CORSConfig      `yaml:"cors"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Include     []string      `yaml:"include"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	Secret          string        `yaml:"secret"`
	TokenTTL        time.Duration `yaml:"tokenTtl"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTtl"`
}

// TimingConfig points at the prayer-times API.
type TimingConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	Method            int           `yaml:"method"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	Timezone          string        `yaml:"timezone"`
}

// LocationConfig controls device geolocation and reverse geocoding.
type LocationConfig struct {
	DeviceLookup      bool          `yaml:"deviceLookup"`
	GeoIPURL          string        `yaml:"geoipUrl"`
	ReverseGeocodeURL string        `yaml:"reverseGeocodeUrl"`
	UserAgent         string        `yaml:"userAgent"`
	Timeout           time.Duration `yaml:"timeout"`
}

// CountdownConfig controls the ticking clock and alert windows.
type CountdownConfig struct {
	TickInterval time.Duration `yaml:"tickInterval"`
	PreAlertLead time.Duration `yaml:"preAlertLead"`
}

// PreferencesConfig selects the preference store.
type PreferencesConfig struct {
	Backend  string         `yaml:"backend"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// ValkeyConfig contains connection information for the key-value store.
type ValkeyConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// NotificationsConfig selects where alerts are delivered.
type NotificationsConfig struct {
	Enabled bool       `yaml:"enabled"`
	MQTT    MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig describes the broker alerts are published to.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientId"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topicPrefix"`
}

// AdhanConfig controls audio playback.
type AdhanConfig struct {
	Backend          string        `yaml:"backend"`
	AssetBaseURL     string        `yaml:"assetBaseUrl"`
	Reciter          string        `yaml:"reciter"`
	FallbackReciters []string      `yaml:"fallbackReciters"`
	AutoPlay         bool          `yaml:"autoPlay"`
	HeadlessDuration time.Duration `yaml:"headlessDuration"`
	Bucket           BucketConfig  `yaml:"bucket"`
}

// BucketConfig describes an S3 compatible bucket holding the adhan audio.
type BucketConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	AccessKey  string        `yaml:"accessKey"`
	SecretKey  string        `yaml:"secretKey"`
	Name       string        `yaml:"name"`
	UseSSL     bool          `yaml:"useSsl"`
	PresignTTL time.Duration `yaml:"presignTtl"`
}

// Enabled reports whether presigned bucket URLs should be used.
func (b BucketConfig) Enabled() bool {
	return strings.TrimSpace(b.Endpoint) != "" && strings.TrimSpace(b.Name) != ""
}

// Preference store backends.
const (
	BackendMemory   = "memory"
	BackendValkey   = "valkey"
	BackendPostgres = "postgres"
)

// Audio backends.
const (
	AudioHeadless = "headless"
	AudioBeep     = "beep"
	AudioVLC      = "vlc"
)

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	envString("HTTP_ADDRESS", &cfg.HTTP.Address)
	envBool("HTTP_RATE_LIMIT_ENABLED", &cfg.HTTP.RateLimit.Enabled)
	envInt("HTTP_RATE_LIMIT_RPM", &cfg.HTTP.RateLimit.RequestsPerMinute)
	envInt("HTTP_RATE_LIMIT_BURST", &cfg.HTTP.RateLimit.Burst)
	envBool("HTTP_RETRY_ENABLED", &cfg.HTTP.Retry.Enabled)
	envInt("HTTP_RETRY_MAX_ATTEMPTS", &cfg.HTTP.Retry.MaxAttempts)
	envDuration("HTTP_RETRY_BASE_BACKOFF", &cfg.HTTP.Retry.BaseBackoff)
	envList("HTTP_CORS_ORIGINS", &cfg.HTTP.CORS.AllowedOrigins)

	envString("AUTH_SECRET", &cfg.Auth.Secret)
	envDuration("AUTH_TOKEN_TTL", &cfg.Auth.TokenTTL)
	envDuration("AUTH_REFRESH_TOKEN_TTL", &cfg.Auth.RefreshTokenTTL)

	envString("TIMING_BASE_URL", &cfg.Timing.BaseURL)
	envInt("TIMING_METHOD", &cfg.Timing.Method)
	envFloat("TIMING_RPS", &cfg.Timing.RequestsPerSecond)
	envInt("TIMING_BURST", &cfg.Timing.Burst)
	envDuration("TIMING_TIMEOUT", &cfg.Timing.Timeout)
	envString("TIMING_TIMEZONE", &cfg.Timing.Timezone)

	envBool("LOCATION_DEVICE_LOOKUP", &cfg.Location.DeviceLookup)
	envString("LOCATION_GEOIP_URL", &cfg.Location.GeoIPURL)
	envString("LOCATION_REVERSE_GEOCODE_URL", &cfg.Location.ReverseGeocodeURL)
	envString("LOCATION_USER_AGENT", &cfg.Location.UserAgent)

	envDuration("COUNTDOWN_TICK_INTERVAL", &cfg.Countdown.TickInterval)
	envDuration("COUNTDOWN_PRE_ALERT_LEAD", &cfg.Countdown.PreAlertLead)

	envString("PREFERENCES_BACKEND", &cfg.Preferences.Backend)
	envString("VALKEY_ADDR", &cfg.Preferences.Valkey.Addr)
	envString("POSTGRES_DSN", &cfg.Preferences.Postgres.DSN)
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Preferences.Postgres.MaxConns = int32(parsed)
		}
	}

	envBool("NOTIFICATIONS_ENABLED", &cfg.Notifications.Enabled)
	envString("MQTT_BROKER", &cfg.Notifications.MQTT.Broker)
	envString("MQTT_CLIENT_ID", &cfg.Notifications.MQTT.ClientID)
	envString("MQTT_USERNAME", &cfg.Notifications.MQTT.Username)
	envString("MQTT_PASSWORD", &cfg.Notifications.MQTT.Password)
	envString("MQTT_TOPIC_PREFIX", &cfg.Notifications.MQTT.TopicPrefix)

	envString("ADHAN_BACKEND", &cfg.Adhan.Backend)
	envString("ADHAN_ASSET_BASE_URL", &cfg.Adhan.AssetBaseURL)
	envString("ADHAN_RECITER", &cfg.Adhan.Reciter)
	envList("ADHAN_FALLBACK_RECITERS", &cfg.Adhan.FallbackReciters)
	envBool("ADHAN_AUTOPLAY", &cfg.Adhan.AutoPlay)
	envDuration("ADHAN_HEADLESS_DURATION", &cfg.Adhan.HeadlessDuration)
	envString("ADHAN_BUCKET_ENDPOINT", &cfg.Adhan.Bucket.Endpoint)
	envString("ADHAN_BUCKET_ACCESS_KEY", &cfg.Adhan.Bucket.AccessKey)
	envString("ADHAN_BUCKET_SECRET_KEY", &cfg.Adhan.Bucket.SecretKey)
	envString("ADHAN_BUCKET_NAME", &cfg.Adhan.Bucket.Name)
	envBool("ADHAN_BUCKET_USE_SSL", &cfg.Adhan.Bucket.UseSSL)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func envList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 0,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Include: []string{
					"/api/v1/prayer/calendar",
				},
			},
		},
		Auth: AuthConfig{
			TokenTTL:        time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Timing: TimingConfig{
			BaseURL:           "https://api.aladhan.com/v1",
			Method:            4,
			RequestsPerSecond: 2,
			Burst:             2,
			Timeout:           10 * time.Second,
			Timezone:          "Local",
		},
		Location: LocationConfig{
			DeviceLookup:      true,
			GeoIPURL:          "http://ip-api.com/json",
			ReverseGeocodeURL: "https://nominatim.openstreetmap.org/reverse",
			UserAgent:         "prayer-companion/1.0",
			Timeout:           5 * time.Second,
		},
		Countdown: CountdownConfig{
			TickInterval: time.Second,
			PreAlertLead: 5 * time.Minute,
		},
		Preferences: PreferencesConfig{
			Backend: BackendMemory,
			Valkey: ValkeyConfig{
				Prefix: "prayer:prefs:",
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			MQTT: MQTTConfig{
				ClientID:    "prayer-companion",
				TopicPrefix: "prayer",
			},
		},
		Adhan: AdhanConfig{
			Backend:          AudioHeadless,
			AssetBaseURL:     "https://cdn.islamic.network/adhan",
			Reciter:          "makkah",
			FallbackReciters: []string{"madinah"},
			AutoPlay:         true,
			HeadlessDuration: 3 * time.Minute,
			Bucket: BucketConfig{
				PresignTTL: time.Hour,
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.Timing.BaseURL) == "" {
		return errors.New("timing.baseUrl cannot be empty")
	}
	if c.Timing.Method < 0 || (c.Timing.Method > 23 && c.Timing.Method != 99) {
		return errors.New("timing.method must be between 0 and 23, or 99")
	}
	if c.Timing.RequestsPerSecond <= 0 || c.Timing.Burst <= 0 {
		return errors.New("timing.requestsPerSecond and timing.burst must be positive")
	}
	if _, err := c.Timing.LoadLocation(); err != nil {
		return fmt.Errorf("timing.timezone: %w", err)
	}
	if c.Countdown.TickInterval <= 0 {
		return errors.New("countdown.tickInterval must be positive")
	}
	if c.Countdown.PreAlertLead <= 0 {
		return errors.New("countdown.preAlertLead must be positive")
	}
	switch c.Preferences.Backend {
	case BackendMemory:
	case BackendValkey:
		if strings.TrimSpace(c.Preferences.Valkey.Addr) == "" {
			return errors.New("preferences.valkey.addr cannot be empty when the valkey backend is selected")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Preferences.Postgres.DSN) == "" {
			return errors.New("preferences.postgres.dsn cannot be empty when the postgres backend is selected")
		}
	default:
		return fmt.Errorf("preferences.backend %q is not one of memory, valkey, postgres", c.Preferences.Backend)
	}
	switch c.Adhan.Backend {
	case AudioHeadless, AudioBeep, AudioVLC:
	default:
		return fmt.Errorf("adhan.backend %q is not one of headless, beep, vlc", c.Adhan.Backend)
	}
	if strings.TrimSpace(c.Adhan.Reciter) == "" {
		return errors.New("adhan.reciter cannot be empty")
	}
	if !c.Adhan.Bucket.Enabled() && strings.TrimSpace(c.Adhan.AssetBaseURL) == "" {
		return errors.New("adhan.assetBaseUrl cannot be empty without a bucket")
	}
	return nil
}

// LoadLocation resolves the configured timezone. "Local" and "" mean the host zone.
func (t TimingConfig) LoadLocation() (*time.Location, error) {
	switch strings.TrimSpace(t.Timezone) {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(t.Timezone)
	}
}
