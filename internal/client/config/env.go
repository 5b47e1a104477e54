package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded from the working directory when present. Variables
// already set in the environment win over the file.
var envFile = ".env"

// env lists the variables read for each setting, preferred name first.
var env = []struct {
	names []string
	apply func(*Config, string)
}{
	{[]string{"NEXUS_STATE_PATH"}, func(c *Config, v string) { c.StatePath = expandHome(v) }},
	{[]string{"NEXUS_LOG_LEVEL"}, func(c *Config, v string) { c.LogLevel = v }},
	{[]string{"NEXUS_LOG_FORMAT"}, func(c *Config, v string) { c.LogFormat = v }},
	{[]string{"NEXUS_FIREBASE_API_KEY", "NEXT_PUBLIC_FIREBASE_API_KEY"}, func(c *Config, v string) { c.Identity.APIKey = v }},
	{[]string{"NEXUS_FIREBASE_AUTH_ENDPOINT"}, func(c *Config, v string) { c.Identity.IdentityEndpoint = v }},
	{[]string{"NEXUS_FIREBASE_TOKEN_ENDPOINT"}, func(c *Config, v string) { c.Identity.TokenEndpoint = v }},
	{[]string{"NEXUS_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID"}, func(c *Config, v string) { c.Google.ClientID = v }},
	{[]string{"NEXUS_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET"}, func(c *Config, v string) { c.Google.ClientSecret = v }},
	{[]string{"NEXUS_STORE_ENDPOINT", "NEXT_PUBLIC_ENDPOINT"}, func(c *Config, v string) { c.Store.Endpoint = v }},
	{[]string{"NEXUS_STORE_PROJECT", "NEXT_PUBLIC_PROJECTID"}, func(c *Config, v string) { c.Store.Project = v }},
	{[]string{"NEXUS_STORE_DATABASE_ID", "NEXT_PUBLIC_DATABASEID"}, func(c *Config, v string) { c.Store.DatabaseID = v }},
	{[]string{"NEXUS_STORE_EVENTS_COLLECTION_ID", "NEXT_PUBLIC_EVENT_COLLID"}, func(c *Config, v string) { c.Store.EventsCollectionID = v }},
	{[]string{"NEXUS_STORE_BANNER_BUCKET_ID", "NEXT_PUBLIC_EVENTBUCKET"}, func(c *Config, v string) { c.Store.BannerBucketID = v }},
	{[]string{"NEXUS_BANNER_BACKEND"}, func(c *Config, v string) { c.BannerBackend = v }},
	{[]string{"NEXUS_S3_REGION"}, func(c *Config, v string) { c.S3.Region = v }},
	{[]string{"NEXUS_S3_ENDPOINT"}, func(c *Config, v string) { c.S3.Endpoint = v }},
	{[]string{"NEXUS_S3_ACCESS_KEY"}, func(c *Config, v string) { c.S3.AccessKey = v }},
	{[]string{"NEXUS_S3_SECRET_KEY"}, func(c *Config, v string) { c.S3.SecretKey = v }},
	{[]string{"NEXUS_S3_BUCKET"}, func(c *Config, v string) { c.S3.Bucket = v }},
	{[]string{"NEXUS_S3_PUBLIC_URL"}, func(c *Config, v string) { c.S3.PublicURL = v }},
	{[]string{"NEXUS_BROKER_URL"}, func(c *Config, v string) { c.BrokerURL = v }},
	{[]string{"NEXUS_DISPATCH_TIMEOUT"}, func(c *Config, v string) {
		if d, err := time.ParseDuration(v); err == nil {
			c.DispatchTimeout = d
		}
	}},
}

// parseEnv overlays cfg with environment variables.
func parseEnv(cfg *Config) {
	// a missing .env file is normal
	_ = godotenv.Load(envFile)

	for _, e := range env {
		for _, name := range e.names {
			if v, ok := os.LookupEnv(name); ok && v != "" {
				e.apply(cfg, v)
				break
			}
		}
	}
}
