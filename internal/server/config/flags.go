package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC health bind address (e.g., ":50051")
//	-l string   admin API bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      admin token validity, minutes
//	-e string   document store endpoint
//	-p string   document store project
//	-k string   document store API key
//	-b string   broker URL
//	-w int      number of workers
//	-m int      attempts per job
//
// The function first filters os.Args to the flags it recognizes using
// flagx.FilterArgs, so -c and the other layers do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l", "-d", "-s", "-t", "-e", "-p", "-k", "-b", "-w", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "admin API address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.AdminTokenValidity.Minutes()), "admin token validity (in minutes)")

	fs.StringVar(&config.StoreEndpoint, "e", config.StoreEndpoint, "document store endpoint")
	fs.StringVar(&config.StoreProject, "p", config.StoreProject, "document store project")
	fs.StringVar(&config.StoreAPIKey, "k", config.StoreAPIKey, "document store API key")
	fs.StringVar(&config.BrokerURL, "b", config.BrokerURL, "broker URL")
	fs.IntVar(&config.Workers, "w", config.Workers, "number of workers")
	fs.IntVar(&config.MaxAttempts, "m", config.MaxAttempts, "attempts per job")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AdminTokenValidity = time.Duration(*tokenValidity) * time.Minute
}
