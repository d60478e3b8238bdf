package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. REELSHELF_GITHUB_OWNER.
const EnvPrefix = "REELSHELF"

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reelshelf", "config.yml")
}

// Path returns the config file to read: explicit, then REELSHELF_CONFIG,
// then DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return ExpandHome(explicit)
	}
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return ExpandHome(p)
	}
	return DefaultPath()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.branch", "")
	v.SetDefault("github.api_base", "https://api.github.com")
	v.SetDefault("github.token_env", "GITHUB_TOKEN")
	v.SetDefault("github.timeout", "30s")

	v.SetDefault("store.backend", "github")
	v.SetDefault("store.sqlite_path", "reelshelf.db")
	v.SetDefault("store.pages_root", "content/movies")
	v.SetDefault("store.cache_size", 512)
	v.SetDefault("store.cache_ttl", "1m")

	v.SetDefault("collections.capacity", 100)
	v.SetDefault("collections.max_attempts", 5)

	v.SetDefault("cdn.provider", "bunny")
	v.SetDefault("cdn.public_base", "")
	v.SetDefault("cdn.host", "storage.bunnycdn.com")
	v.SetDefault("cdn.zone", "")
	v.SetDefault("cdn.access_key_env", "BUNNY_ACCESS_KEY")
	v.SetDefault("cdn.bucket", "")
	v.SetDefault("cdn.region", "")
	v.SetDefault("cdn.endpoint", "")
	v.SetDefault("cdn.s3_key_id_env", "")
	v.SetDefault("cdn.s3_secret_env", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.site_name", "reelshelf")
	v.SetDefault("server.site_description", "")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.max_upload_bytes", 2<<30)
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the config file at Path(path) with environment overrides. A
// missing file is not an error: defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(Path(path))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.resolveSecrets()
	cfg.Store.SQLitePath = ExpandHome(cfg.Store.SQLitePath)
	return &cfg, nil
}

// resolveSecrets reads credentials from the environment. They are never
// stored in the config file.
func (c *Config) resolveSecrets() {
	tokenEnv := c.GitHub.TokenEnv
	if tokenEnv == "" {
		tokenEnv = "GITHUB_TOKEN"
	}
	c.GitHub.Token = os.Getenv(tokenEnv)
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv(EnvPrefix + "_GITHUB_TOKEN")
	}
	if c.CDN.AccessKeyEnv != "" {
		c.CDN.AccessKey = os.Getenv(c.CDN.AccessKeyEnv)
	}
	if c.CDN.S3KeyIDEnv != "" {
		c.CDN.S3KeyID = os.Getenv(c.CDN.S3KeyIDEnv)
	}
	if c.CDN.S3SecretEnv != "" {
		c.CDN.S3Secret = os.Getenv(c.CDN.S3SecretEnv)
	}
}

// Default returns the configuration Load produces with no file and an empty
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	path = Path(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// ExpandHome expands a leading ~/ in a path.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
