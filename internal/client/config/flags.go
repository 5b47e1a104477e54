package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers the command-line overrides on fs. Defaults are the
// values already loaded into cfg, so unset flags keep them.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringP("config", "c", "", "path to a YAML or JSON config file")
	fs.StringVar(&cfg.StatePath, "state", cfg.StatePath, "path of the local state database")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")
	fs.StringVar(&cfg.Store.Endpoint, "store-endpoint", cfg.Store.Endpoint, "document store endpoint URL")
	fs.StringVar(&cfg.Store.Project, "store-project", cfg.Store.Project, "document store project id")
	fs.StringVar(&cfg.BannerBackend, "banner-backend", cfg.BannerBackend, "banner storage backend (appwrite, s3)")
	fs.StringVar(&cfg.BrokerURL, "broker", cfg.BrokerURL, "broker URL (nats://, amqp://, mem://)")
	fs.DurationVar(&cfg.DispatchTimeout, "dispatch-timeout", cfg.DispatchTimeout, "how long to try handing off provisioning")
}
