// Package sqlxrepos implements the domain repositories on PostgreSQL
// via sqlx. Each repository holds the application handle; callers may
// override it per call (e.g. to run inside a transaction).
package sqlxrepos

import (
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/edusense/core"
)

type repoBase struct {
	db *sqlx.DB
}

// ext resolves the executor for one call. Overrides that are not sqlx-aware
// fall back to the repository handle.
func (b repoBase) ext(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return b.db
}
