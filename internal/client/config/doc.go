// Package config loads runtime configuration for the SEC-NEXUS client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional YAML or JSON file selected with -c / --config.
//  3. A .env file in the working directory, then the process environment
//     (NEXUS_* names; the NEXT_PUBLIC_* names of the web build are accepted).
//  4. Command-line flags bound by BindFlags, which override earlier values.
//
// # File schema
//
//	state_path: ~/.secnexus/nexus.db
//	log_level: info
//	identity:
//	  api_key: AIza...
//	store:
//	  endpoint: https://cloud.appwrite.io/v1
//	  project: nexus
//	  database_id: main
//	  events_collection_id: events
//	  banner_bucket_id: banners
//	broker_url: nats://127.0.0.1:4222
//	dispatch_timeout: 10s
//
// The privileged store key is deliberately absent: the client never holds it.
package config
