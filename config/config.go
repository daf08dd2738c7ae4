package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	Session   SessionConfig   `mapstructure:"session"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	TimeZone        string        `mapstructure:"time_zone"` // booking dates are generated in this zone
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type FirebaseConfig struct {
	ProjectID         string `mapstructure:"project_id"`
	CredentialsPath   string `mapstructure:"credentials_path"`
	FirestoreDatabase string `mapstructure:"firestore_database"`
	// Emulator support for integration testing
	UseEmulator           bool   `mapstructure:"use_emulator"`
	EmulatorAuthHost      string `mapstructure:"emulator_auth_host"`
	EmulatorFirestoreHost string `mapstructure:"emulator_firestore_host"`
}

type SessionConfig struct {
	CookieMaxAge int    `mapstructure:"cookie_max_age"` // seconds (default: 3600 = 1 hour)
	Store        string `mapstructure:"store"`          // "memory" or "firestore"
}

type JWTConfig struct {
	SigningKey string `mapstructure:"signing_key"` // Secret key for session cookie signing
	Issuer     string `mapstructure:"issuer"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GeocoderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	UserAgent     string        `mapstructure:"user_agent"` // required by the Nominatim usage policy
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Debounce      time.Duration `mapstructure:"debounce"`
	MinQueryLen   int           `mapstructure:"min_query_len"`
	Limit         int           `mapstructure:"limit"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // empty disables export
	ServiceName  string `mapstructure:"service_name"`
	Insecure     bool   `mapstructure:"insecure"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// legacyEnv maps keys to the unprefixed variable names used by existing
// deployments and the Firebase tooling.
var legacyEnv = map[string]string{
	"server.port":                      "PORT",
	"server.env":                       "ENV",
	"firebase.project_id":              "FIREBASE_PROJECT_ID",
	"firebase.credentials_path":        "FIREBASE_CREDENTIALS_PATH",
	"firebase.firestore_database":      "FIRESTORE_DATABASE",
	"firebase.use_emulator":            "USE_FIREBASE_EMULATOR",
	"firebase.emulator_auth_host":      "FIREBASE_AUTH_EMULATOR_HOST",
	"firebase.emulator_firestore_host": "FIRESTORE_EMULATOR_HOST",
	"jwt.signing_key":                  "JWT_SIGNING_KEY",
	"telemetry.otlp_endpoint":          "OTEL_EXPORTER_OTLP_ENDPOINT",
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.time_zone", "Local")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_path", "")
	v.SetDefault("firebase.firestore_database", "(default)")
	v.SetDefault("firebase.use_emulator", false)
	v.SetDefault("firebase.emulator_auth_host", "localhost:9099")
	v.SetDefault("firebase.emulator_firestore_host", "localhost:8080")

	v.SetDefault("session.cookie_max_age", 3600) // 1 hour
	v.SetDefault("session.store", "memory")

	v.SetDefault("jwt.signing_key", "")
	v.SetDefault("jwt.issuer", "waypost")

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 15*time.Second)

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "waypost/1.0 (+https://github.com/jredh-dev/waypost)")
	v.SetDefault("geocoder.rate_per_second", 1.0)
	v.SetDefault("geocoder.debounce", 300*time.Millisecond)
	v.SetDefault("geocoder.min_query_len", 3)
	v.SetDefault("geocoder.limit", 5)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "waypost")
	v.SetDefault("telemetry.insecure", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// BindEnv wires WAYPOST_* variables (server.port -> WAYPOST_SERVER_PORT)
// plus the legacy names.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("WAYPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "WAYPOST_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// Load reads configuration from v. Callers set the config file and flags on
// v beforehand; Load applies defaults and environment bindings.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	BindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no sensible fallback.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Geocoder.UserAgent == "" {
		errs = append(errs, errors.New("geocoder.user_agent is required"))
	}
	if c.Geocoder.RatePerSecond <= 0 {
		errs = append(errs, errors.New("geocoder.rate_per_second must be positive"))
	}
	if c.Geocoder.MinQueryLen < 1 {
		errs = append(errs, errors.New("geocoder.min_query_len must be at least 1"))
	}
	switch c.Session.Store {
	case "memory", "firestore":
	default:
		errs = append(errs, fmt.Errorf("session.store %q: want memory or firestore", c.Session.Store))
	}
	if c.Session.Store == "firestore" && c.Firebase.ProjectID == "" {
		errs = append(errs, errors.New("firebase.project_id is required for the firestore session store"))
	}
	if c.IsProduction() && c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("jwt.signing_key is required in production"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Location resolves Server.TimeZone.
func (c *Config) Location() (*time.Location, error) {
	if c.Server.TimeZone == "" || c.Server.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("server.time_zone: %w", err)
	}
	return loc, nil
}
