package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/secnexus/internal/flagx"
	"github.com/dmitrijs2005/secnexus/internal/timex"
)

// FileConfig is the DTO read from the config file. Intervals use
// timex.Duration so both "1s" and integer nanoseconds are accepted. Values
// left empty keep what the earlier layer set.
type FileConfig struct {
	EndpointAddrGRPC       string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP       string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN            string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey              string         `json:"secret_key" yaml:"secret_key"`
	AdminTokenValidity     timex.Duration `json:"admin_token_validity" yaml:"admin_token_validity"`
	AdminPasswordHash      string         `json:"admin_password_hash" yaml:"admin_password_hash"`
	StoreEndpoint          string         `json:"store_endpoint" yaml:"store_endpoint"`
	StoreProject           string         `json:"store_project" yaml:"store_project"`
	StoreAPIKey            string         `json:"store_api_key" yaml:"store_api_key"`
	RegistrationDatabaseID string         `json:"registration_database_id" yaml:"registration_database_id"`
	SponsorDatabaseID      string         `json:"sponsor_database_id" yaml:"sponsor_database_id"`
	BrokerURL              string         `json:"broker_url" yaml:"broker_url"`
	Workers                int            `json:"workers" yaml:"workers"`
	MaxAttempts            int            `json:"max_attempts" yaml:"max_attempts"`
	RetryBase              timex.Duration `json:"retry_base" yaml:"retry_base"`
	AttributePollInterval  timex.Duration `json:"attribute_poll_interval" yaml:"attribute_poll_interval"`
	AttributePollTimeout   timex.Duration `json:"attribute_poll_timeout" yaml:"attribute_poll_timeout"`
	ReconcileInterval      timex.Duration `json:"reconcile_interval" yaml:"reconcile_interval"`
	StaleAfter             timex.Duration `json:"stale_after" yaml:"stale_after"`
	MaxReconcileAttempts   int            `json:"max_reconcile_attempts" yaml:"max_reconcile_attempts"`
	LogLevel               string         `json:"log_level" yaml:"log_level"`
}

// parseFile loads the file named by -c / -config. ".json" files are read as
// JSON, anything else as YAML. A missing or malformed file panics, like a
// bad flag.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	str(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	str(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	str(&config.DatabaseDSN, c.DatabaseDSN)
	str(&config.SecretKey, c.SecretKey)
	str(&config.AdminPasswordHash, c.AdminPasswordHash)
	str(&config.StoreEndpoint, c.StoreEndpoint)
	str(&config.StoreProject, c.StoreProject)
	str(&config.StoreAPIKey, c.StoreAPIKey)
	str(&config.RegistrationDatabaseID, c.RegistrationDatabaseID)
	str(&config.SponsorDatabaseID, c.SponsorDatabaseID)
	str(&config.BrokerURL, c.BrokerURL)
	str(&config.LogLevel, c.LogLevel)
	num(&config.Workers, c.Workers)
	num(&config.MaxAttempts, c.MaxAttempts)
	num(&config.MaxReconcileAttempts, c.MaxReconcileAttempts)

	setDur(&config.AdminTokenValidity, c.AdminTokenValidity)
	setDur(&config.RetryBase, c.RetryBase)
	setDur(&config.AttributePollInterval, c.AttributePollInterval)
	setDur(&config.AttributePollTimeout, c.AttributePollTimeout)
	setDur(&config.ReconcileInterval, c.ReconcileInterval)
	setDur(&config.StaleAfter, c.StaleAfter)
}

func setDur(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
