package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the top-level reelshelf configuration.
type Config struct {
	GitHub      GitHubConfig      `mapstructure:"github" yaml:"github"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Collections CollectionsConfig `mapstructure:"collections" yaml:"collections"`
	CDN         CDNConfig         `mapstructure:"cdn" yaml:"cdn"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// GitHubConfig locates the backing repository.
type GitHubConfig struct {
	Owner    string        `mapstructure:"owner" yaml:"owner"`
	Repo     string        `mapstructure:"repo" yaml:"repo"`
	Branch   string        `mapstructure:"branch" yaml:"branch,omitempty"`
	APIBase  string        `mapstructure:"api_base" yaml:"api_base"`
	TokenEnv string        `mapstructure:"token_env" yaml:"token_env"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Token    string        `mapstructure:"-" yaml:"-"` // resolved at runtime, never written
}

// StoreConfig selects the object store backend.
type StoreConfig struct {
	Backend    string        `mapstructure:"backend" yaml:"backend"` // "github", "sqlite" or "memory"
	SQLitePath string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PagesRoot  string        `mapstructure:"pages_root" yaml:"pages_root"`
	CacheSize  int           `mapstructure:"cache_size" yaml:"cache_size"` // 0 disables the read cache
	CacheTTL   time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// CollectionsConfig tunes collection appends.
type CollectionsConfig struct {
	Capacity    int `mapstructure:"capacity" yaml:"capacity"`
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// CDNConfig configures the upload relay.
type CDNConfig struct {
	Provider     string `mapstructure:"provider" yaml:"provider"` // "bunny" or "s3"
	PublicBase   string `mapstructure:"public_base" yaml:"public_base"`
	Host         string `mapstructure:"host" yaml:"host,omitempty"`
	Zone         string `mapstructure:"zone" yaml:"zone,omitempty"`
	AccessKeyEnv string `mapstructure:"access_key_env" yaml:"access_key_env"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region       string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	S3KeyIDEnv   string `mapstructure:"s3_key_id_env" yaml:"s3_key_id_env,omitempty"`
	S3SecretEnv  string `mapstructure:"s3_secret_env" yaml:"s3_secret_env,omitempty"`
	AccessKey    string `mapstructure:"-" yaml:"-"`
	S3KeyID      string `mapstructure:"-" yaml:"-"`
	S3Secret     string `mapstructure:"-" yaml:"-"`
}

// ServerConfig configures the HTTP server and the rendered site.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	SiteName        string        `mapstructure:"site_name" yaml:"site_name"`
	SiteDescription string        `mapstructure:"site_description" yaml:"site_description,omitempty"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // write requests per second per client, 0 disables
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
