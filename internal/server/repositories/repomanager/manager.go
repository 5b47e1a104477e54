package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/secnexus/internal/dbx"
	"github.com/dmitrijs2005/secnexus/internal/server/repositories/jobs"
)

// RepositoryManager vends repositories bound to a DBTX and migrates the
// schema they need.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Jobs(db dbx.DBTX) jobs.Repository
}
