package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"meter/internal/errors"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	defaultAccessExpiresIn   = "15m"
	defaultRefreshExpiresIn  = "7d"
	defaultRefreshCookieName = "refresh_token"

	defaultBcryptCost             = 10
	defaultRefreshTokenProbeLimit = 5

	defaultStripeBaseURL           = "https://api.stripe.com"
	defaultStripeMaxNetworkRetries = 2
	defaultStripeRequestsPerSecond = 20
	defaultStripeTimeout           = 30 * time.Second
	defaultStripeAppName           = "stripe-meter-poc"

	defaultSlowQueryThreshold = 200 * time.Millisecond

	defaultBillingPageSize      = 100
	defaultBillingMaxPages      = 500
	defaultBillingPlansCacheTTL = 5 * time.Minute

	defaultAppName    = "api"
	defaultAppVersion = "0.1.0"

	defaultSeedEmail    = "demo@example.com"
	defaultSeedPassword = "Passw0rd!23"
	defaultSeedOrgName  = "Demo Organization"
	defaultSeedRole     = "OWNER"
)

type Config struct {
	Env EnvConfig `json:"env" yaml:"env"`

	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Worker is the Pub/Sub push receiver listening address.
	Worker WorkerConfig `json:"worker" yaml:"worker"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Database DatabaseConfig `json:"database" yaml:"database"`

	JWT JWTConfig `json:"jwt" yaml:"jwt"`

	Auth AuthConfig `json:"auth" yaml:"auth"`

	Stripe StripeConfig `json:"stripe" yaml:"stripe"`

	Billing BillingConfig `json:"billing" yaml:"billing"`

	// Redis backs the plans cache. Empty URL disables caching.
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// PubSub configuration for event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	CORS CORSConfig `json:"cors" yaml:"cors"`

	App AppConfig `json:"app" yaml:"app"`

	Seed SeedConfig `json:"seed" yaml:"seed"`
}

type EnvConfig struct {
	Env         string `json:"env" yaml:"env"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Debug       bool   `json:"debug" yaml:"debug"`
	Log         Log    `json:"log" yaml:"log"`
}

type HTTPConfig struct {
	Port               int      `json:"port" yaml:"port" validate:"min=1,max=65535"`
	MaxRequestBodySize string   `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
	Timeouts           Timeouts `json:"timeouts" yaml:"timeouts"`
}

type Timeouts struct {
	ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
}

type WorkerConfig struct {
	Port int `json:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// JWTConfig holds the signing secrets and lifetimes of access and refresh tokens.
// Expiry strings use the <int>(ms|s|m|h|d) format; the parsed values are filled in by New.
type JWTConfig struct {
	AccessSecret      string `json:"accessSecret" yaml:"accessSecret" validate:"required,min=24"`
	RefreshSecret     string `json:"refreshSecret" yaml:"refreshSecret" validate:"required,min=24"`
	AccessExpiresIn   string `json:"accessExpiresIn" yaml:"accessExpiresIn" validate:"required,tokenduration"`
	RefreshExpiresIn  string `json:"refreshExpiresIn" yaml:"refreshExpiresIn" validate:"required,tokenduration"`
	RefreshCookieName string `json:"refreshCookieName" yaml:"refreshCookieName" validate:"required"`

	AccessTTL  time.Duration `json:"-" yaml:"-" mapstructure:"-"`
	RefreshTTL time.Duration `json:"-" yaml:"-" mapstructure:"-"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost int `json:"bcryptCost" yaml:"bcryptCost" validate:"min=4,max=31"`
	// RefreshTokenProbeLimit bounds how many of a user's newest active refresh
	// tokens are hash-compared during refresh and logout.
	RefreshTokenProbeLimit int `json:"refreshTokenProbeLimit" yaml:"refreshTokenProbeLimit" validate:"min=1,max=50"`
}

type StripeConfig struct {
	SecretKey         string        `json:"secretKey" yaml:"secretKey" validate:"required,startswith=sk_"`
	WebhookSecret     string        `json:"webhookSecret" yaml:"webhookSecret" validate:"omitempty,startswith=whsec_"`
	BaseURL           string        `json:"baseUrl" yaml:"baseUrl" validate:"url"`
	MaxNetworkRetries int           `json:"maxNetworkRetries" yaml:"maxNetworkRetries" validate:"min=0,max=10"`
	RequestsPerSecond float64       `json:"requestsPerSecond" yaml:"requestsPerSecond" validate:"gt=0"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
	AppName           string        `json:"appName" yaml:"appName"`
}

type BillingConfig struct {
	PageSize int `json:"pageSize" yaml:"pageSize" validate:"min=1,max=100"`
	// MaxPages caps how many pages a single listing may span during one sync.
	MaxPages      int           `json:"maxPages" yaml:"maxPages" validate:"min=1"`
	PlansCacheTTL time.Duration `json:"plansCacheTtl" yaml:"plansCacheTtl"`
}

// DatabaseConfig tunes how the service uses its Postgres connection.
type DatabaseConfig struct {
	// AutoMigrate runs schema migration when the pool starts.
	AutoMigrate        bool          `json:"autoMigrate" yaml:"autoMigrate"`
	SlowQueryThreshold time.Duration `json:"slowQueryThreshold" yaml:"slowQueryThreshold"`
}

type RedisConfig struct {
	URL string `json:"url" yaml:"url" validate:"omitempty,url"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider" validate:"omitempty,oneof=local google"`

	ProjectID string `json:"projectId" yaml:"projectId"`

	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint, usually the worker's /push
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

type CORSConfig struct {
	FrontendOrigin string `json:"frontendOrigin" yaml:"frontendOrigin" validate:"omitempty,url"`
}

type AppConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	BaseURL string `json:"baseUrl" yaml:"baseUrl" validate:"omitempty,url"`
}

type SeedConfig struct {
	Email    string `json:"email" yaml:"email" validate:"email"`
	Password string `json:"password" yaml:"password" validate:"min=8"`
	OrgName  string `json:"orgName" yaml:"orgName"`
	Role     string `json:"role" yaml:"role" validate:"oneof=OWNER ADMIN MEMBER"`
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env.Env, "production")
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate

			break
		}
	}

	if configFile == "" {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// JWT_ACCESS_SECRET -> jwt.accessSecret, STRIPE_SECRET_KEY -> stripe.secretKey
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

// New loads, defaults and validates the configuration. Invalid token
// durations or secrets fail here so the process never starts half-configured.
func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.Postgres != nil {
		// POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, ...
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if strings.TrimSpace(cfg.JWT.AccessExpiresIn) == "" {
		cfg.JWT.AccessExpiresIn = defaultAccessExpiresIn
	}
	if strings.TrimSpace(cfg.JWT.RefreshExpiresIn) == "" {
		cfg.JWT.RefreshExpiresIn = defaultRefreshExpiresIn
	}
	if strings.TrimSpace(cfg.JWT.RefreshCookieName) == "" {
		cfg.JWT.RefreshCookieName = defaultRefreshCookieName
	}

	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = defaultBcryptCost
	}
	if cfg.Auth.RefreshTokenProbeLimit == 0 {
		cfg.Auth.RefreshTokenProbeLimit = defaultRefreshTokenProbeLimit
	}

	if cfg.Stripe.BaseURL == "" {
		cfg.Stripe.BaseURL = defaultStripeBaseURL
	}
	if cfg.Stripe.MaxNetworkRetries == 0 {
		cfg.Stripe.MaxNetworkRetries = defaultStripeMaxNetworkRetries
	}
	if cfg.Stripe.RequestsPerSecond == 0 {
		cfg.Stripe.RequestsPerSecond = defaultStripeRequestsPerSecond
	}
	if cfg.Stripe.Timeout == 0 {
		cfg.Stripe.Timeout = defaultStripeTimeout
	}
	if cfg.Stripe.AppName == "" {
		cfg.Stripe.AppName = defaultStripeAppName
	}

	if cfg.Database.SlowQueryThreshold == 0 {
		cfg.Database.SlowQueryThreshold = defaultSlowQueryThreshold
	}

	if cfg.Billing.PageSize == 0 {
		cfg.Billing.PageSize = defaultBillingPageSize
	}
	if cfg.Billing.MaxPages == 0 {
		cfg.Billing.MaxPages = defaultBillingMaxPages
	}
	if cfg.Billing.PlansCacheTTL == 0 {
		cfg.Billing.PlansCacheTTL = defaultBillingPlansCacheTTL
	}

	if cfg.App.Name == "" {
		cfg.App.Name = defaultAppName
	}
	if cfg.App.Version == "" {
		cfg.App.Version = defaultAppVersion
	}

	if cfg.Seed.Email == "" {
		cfg.Seed.Email = defaultSeedEmail
	}
	cfg.Seed.Email = strings.ToLower(strings.TrimSpace(cfg.Seed.Email))
	if cfg.Seed.Password == "" {
		cfg.Seed.Password = defaultSeedPassword
	}
	if cfg.Seed.OrgName == "" {
		cfg.Seed.OrgName = defaultSeedOrgName
	}
	if cfg.Seed.Role == "" {
		cfg.Seed.Role = defaultSeedRole
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for i := 0; i < len(segments); i++ {
		segment := segments[i]
		if segment == "" {
			continue
		}

		// camelCase YAML keys span several env segments: SECRET_KEY -> secretKey.
		if matched, next, consumed, ok := findExistingSegment(current, segments[i:]); ok {
			canonical = append(canonical, matched)
			current = next
			i += consumed - 1
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

// findExistingSegment matches the longest run of env segments against a key of
// the current YAML level and reports how many segments it consumed.
func findExistingSegment(current map[string]any, segments []string) (matched string, next map[string]any, consumed int, ok bool) {
	if len(current) == 0 {
		return "", nil, 0, false
	}

	for n := len(segments); n > 0; n-- {
		needle := normalizeToken(strings.Join(segments[:n], ""))
		if needle == "" {
			continue
		}
		for key, value := range current {
			if normalizeToken(key) != needle {
				continue
			}

			child, _ := value.(map[string]any)

			return key, child, n, true
		}
	}

	return "", nil, 0, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
