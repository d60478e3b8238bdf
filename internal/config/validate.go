package config

import (
	"fmt"
	"strings"
)

// Features that need configuration.
const (
	FeatureStore = "store"
	FeatureCDN   = "cdn"
)

// ConfigError names the settings a feature is missing. It is fatal for
// that feature only.
type ConfigError struct {
	Feature string
	Missing []string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s is not configured: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("%s is not configured: missing %s", e.Feature, strings.Join(e.Missing, ", "))
}

// Validate checks the settings of one feature.
func (c *Config) Validate(feature string) error {
	var missing []string
	need := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}

	switch feature {
	case FeatureStore:
		switch c.Store.Backend {
		case "github":
			need(c.GitHub.Owner != "", envName("github.owner"))
			need(c.GitHub.Repo != "", envName("github.repo"))
			need(c.GitHub.Token != "", orDefault(c.GitHub.TokenEnv, "GITHUB_TOKEN"))
		case "sqlite":
			need(c.Store.SQLitePath != "", envName("store.sqlite_path"))
		case "memory":
		default:
			return &ConfigError{Feature: feature, Reason: fmt.Sprintf("unknown store backend %q", c.Store.Backend)}
		}
	case FeatureCDN:
		switch c.CDN.Provider {
		case "bunny":
			need(c.CDN.Zone != "", envName("cdn.zone"))
			need(c.CDN.AccessKey != "", orDefault(c.CDN.AccessKeyEnv, "BUNNY_ACCESS_KEY"))
			need(c.CDN.PublicBase != "", envName("cdn.public_base"))
		case "s3":
			need(c.CDN.Bucket != "", envName("cdn.bucket"))
			need(c.CDN.Region != "" || c.CDN.Endpoint != "", envName("cdn.region"))
		default:
			return &ConfigError{Feature: feature, Reason: fmt.Sprintf("unknown cdn provider %q", c.CDN.Provider)}
		}
	default:
		return fmt.Errorf("unknown feature %q", feature)
	}

	if len(missing) > 0 {
		return &ConfigError{Feature: feature, Missing: missing}
	}
	return nil
}

// envName returns the environment variable that overrides key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
