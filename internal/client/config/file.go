package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/secnexus/internal/flagx"
	"github.com/dmitrijs2005/secnexus/internal/timex"
)

// fileConfig is a DTO used exclusively for file unmarshalling. Intervals
// use timex.Duration so they can be written as "10s" or as nanoseconds.
type fileConfig struct {
	StatePath       string         `json:"state_path" yaml:"state_path"`
	LogLevel        string         `json:"log_level" yaml:"log_level"`
	LogFormat       string         `json:"log_format" yaml:"log_format"`
	Identity        *Identity      `json:"identity" yaml:"identity"`
	Google          *Google        `json:"google" yaml:"google"`
	GoogleTimeout   timex.Duration `json:"google_timeout" yaml:"google_timeout"`
	Store           *Store         `json:"store" yaml:"store"`
	BannerBackend   string         `json:"banner_backend" yaml:"banner_backend"`
	S3              *S3            `json:"s3" yaml:"s3"`
	BrokerURL       string         `json:"broker_url" yaml:"broker_url"`
	DispatchTimeout timex.Duration `json:"dispatch_timeout" yaml:"dispatch_timeout"`
}

func configFileFrom(args []string) string {
	return expandHome(flagx.ConfigFileFrom(args))
}

// parseFile overlays cfg with the non-empty values of the file at path.
// ".json" files are read as JSON, everything else as YAML.
func parseFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.StatePath, expandHome(fc.StatePath))
	set(&cfg.LogLevel, fc.LogLevel)
	set(&cfg.LogFormat, fc.LogFormat)
	set(&cfg.BannerBackend, fc.BannerBackend)
	set(&cfg.BrokerURL, fc.BrokerURL)
	if fc.Identity != nil {
		set(&cfg.Identity.APIKey, fc.Identity.APIKey)
		set(&cfg.Identity.IdentityEndpoint, fc.Identity.IdentityEndpoint)
		set(&cfg.Identity.TokenEndpoint, fc.Identity.TokenEndpoint)
	}
	if fc.Google != nil {
		set(&cfg.Google.ClientID, fc.Google.ClientID)
		set(&cfg.Google.ClientSecret, fc.Google.ClientSecret)
	}
	if fc.GoogleTimeout.Duration > 0 {
		cfg.Google.Timeout = fc.GoogleTimeout.Duration
	}
	if fc.Store != nil {
		set(&cfg.Store.Endpoint, fc.Store.Endpoint)
		set(&cfg.Store.Project, fc.Store.Project)
		set(&cfg.Store.DatabaseID, fc.Store.DatabaseID)
		set(&cfg.Store.EventsCollectionID, fc.Store.EventsCollectionID)
		set(&cfg.Store.BannerBucketID, fc.Store.BannerBucketID)
	}
	if fc.S3 != nil {
		set(&cfg.S3.Region, fc.S3.Region)
		set(&cfg.S3.Endpoint, fc.S3.Endpoint)
		set(&cfg.S3.AccessKey, fc.S3.AccessKey)
		set(&cfg.S3.SecretKey, fc.S3.SecretKey)
		set(&cfg.S3.Bucket, fc.S3.Bucket)
		set(&cfg.S3.PublicURL, fc.S3.PublicURL)
	}
	if fc.DispatchTimeout.Duration > 0 {
		cfg.DispatchTimeout = fc.DispatchTimeout.Duration
	}
	return nil
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
