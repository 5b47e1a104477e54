package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded when present; variables already set win.
var envFile = ".env"

// parseEnv overlays config with NEXUS_* variables. The variable names of
// the original web deployment (NEXT_PUBLIC_ENDPOINT, DBKEY, REGDB, ...) are
// accepted as fallbacks.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	str := func(dst *string, names ...string) {
		if v := lookup(names...); v != "" {
			*dst = v
		}
	}
	num := func(dst *int, names ...string) {
		if n, err := strconv.Atoi(lookup(names...)); err == nil {
			*dst = n
		}
	}
	dur := func(dst *time.Duration, names ...string) {
		if d, err := time.ParseDuration(lookup(names...)); err == nil {
			*dst = d
		}
	}

	str(&config.EndpointAddrGRPC, "NEXUS_GRPC_ADDR")
	str(&config.EndpointAddrHTTP, "NEXUS_HTTP_ADDR")
	str(&config.DatabaseDSN, "NEXUS_DATABASE_DSN", "DATABASE_URL")
	str(&config.SecretKey, "NEXUS_SECRET_KEY")
	str(&config.AdminPasswordHash, "NEXUS_ADMIN_PASSWORD_HASH")
	str(&config.StoreEndpoint, "NEXUS_STORE_ENDPOINT", "NEXT_PUBLIC_ENDPOINT")
	str(&config.StoreProject, "NEXUS_STORE_PROJECT", "NEXT_PUBLIC_PROJECTID", "PROJECTID")
	str(&config.StoreAPIKey, "NEXUS_STORE_API_KEY", "DBKEY")
	str(&config.RegistrationDatabaseID, "NEXUS_REGISTRATION_DATABASE_ID", "NEXT_PUBLIC_REGDB", "REGDB")
	str(&config.SponsorDatabaseID, "NEXUS_SPONSOR_DATABASE_ID", "NEXT_PUBLIC_SPODB", "SPODB")
	str(&config.BrokerURL, "NEXUS_BROKER_URL")
	str(&config.LogLevel, "NEXUS_LOG_LEVEL")
	num(&config.Workers, "NEXUS_WORKERS")
	num(&config.MaxAttempts, "NEXUS_MAX_ATTEMPTS")
	dur(&config.ReconcileInterval, "NEXUS_RECONCILE_INTERVAL")
	dur(&config.AdminTokenValidity, "NEXUS_ADMIN_TOKEN_VALIDITY")
}

func lookup(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
