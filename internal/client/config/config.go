package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/common"
)

// Banner backends.
const (
	BannerAppwrite = "appwrite"
	BannerS3       = "s3"
)

type Identity struct {
	APIKey           string `json:"api_key" yaml:"api_key"`
	IdentityEndpoint string `json:"identity_endpoint" yaml:"identity_endpoint"`
	TokenEndpoint    string `json:"token_endpoint" yaml:"token_endpoint"`
}

type Google struct {
	ClientID     string        `json:"client_id" yaml:"client_id"`
	ClientSecret string        `json:"client_secret" yaml:"client_secret"`
	Timeout      time.Duration `json:"-" yaml:"-"`
}

type Store struct {
	Endpoint           string `json:"endpoint" yaml:"endpoint"`
	Project            string `json:"project" yaml:"project"`
	DatabaseID         string `json:"database_id" yaml:"database_id"`
	EventsCollectionID string `json:"events_collection_id" yaml:"events_collection_id"`
	BannerBucketID     string `json:"banner_bucket_id" yaml:"banner_bucket_id"`
}

type S3 struct {
	Region    string `json:"region" yaml:"region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	PublicURL string `json:"public_url" yaml:"public_url"`
}

// Config holds runtime settings for the SEC-NEXUS client.
type Config struct {
	StatePath string
	LogLevel  string
	LogFormat string

	Identity Identity
	Google   Google
	Store    Store

	BannerBackend string
	S3            S3

	BrokerURL       string
	DispatchTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.StatePath = filepath.Join(home, ".secnexus", "nexus.db")
	c.LogLevel = "warn"
	c.LogFormat = "text"
	c.Google.Timeout = 2 * time.Minute
	c.Store.Endpoint = "https://cloud.appwrite.io/v1"
	c.BannerBackend = BannerAppwrite
	c.S3.Region = "us-east-1"
	c.BrokerURL = "nats://127.0.0.1:4222"
	c.DispatchTimeout = 10 * time.Second
}

// Load builds a Config from defaults, the config file named in args, the
// .env file and the environment. Flags are applied later by the command
// tree (see BindFlags) and the result must then be checked with Validate.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, configFileFrom(args)); err != nil {
		return nil, err
	}
	parseEnv(cfg)
	return cfg, nil
}

// Validate reports the first missing or malformed value as a
// *common.ConfigError.
func (c *Config) Validate() error {
	required := []struct {
		field, value string
	}{
		{"state_path", c.StatePath},
		{"identity.api_key", c.Identity.APIKey},
		{"store.endpoint", c.Store.Endpoint},
		{"store.project", c.Store.Project},
		{"store.database_id", c.Store.DatabaseID},
		{"store.events_collection_id", c.Store.EventsCollectionID},
		{"broker_url", c.BrokerURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &common.ConfigError{Field: r.field, Reason: "is required"}
		}
	}
	if err := checkURL("store.endpoint", c.Store.Endpoint); err != nil {
		return err
	}
	if u, err := url.Parse(c.BrokerURL); err != nil || u.Scheme == "" {
		return &common.ConfigError{Field: "broker_url", Reason: "must carry a scheme"}
	}

	switch c.BannerBackend {
	case BannerAppwrite:
		if c.Store.BannerBucketID == "" {
			return &common.ConfigError{Field: "store.banner_bucket_id", Reason: "is required"}
		}
	case BannerS3:
		if c.S3.Bucket == "" {
			return &common.ConfigError{Field: "s3.bucket", Reason: "is required"}
		}
	default:
		return &common.ConfigError{Field: "banner_backend", Reason: fmt.Sprintf("must be %q or %q", BannerAppwrite, BannerS3)}
	}

	if c.DispatchTimeout <= 0 {
		return &common.ConfigError{Field: "dispatch_timeout", Reason: "must be positive"}
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != ""
}

func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &common.ConfigError{Field: field, Reason: "must be an absolute URL"}
	}
	return nil
}
