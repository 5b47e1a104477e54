// Package migrations embeds the goose migrations of the job ledger.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
