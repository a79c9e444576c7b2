package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// maxChain bounds how many wrapped layers are logged per error.
const maxChain = 8

// LogFields flattens err for structured logging: the message, the typed code
// when present, the wrap chain and, for Postgres failures, the SQLSTATE with
// the constraint and table it names. Nil yields nil.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if te := As(err); te != nil {
		fields["error_code"] = string(te.Code())
	}

	chain := make([]string, 0, 4)
	for e := err; e != nil && len(chain) < maxChain; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain

	if pg := postgresDetail(err); pg != nil {
		fields["pg_code"] = pg.code
		if pg.constraint != "" {
			fields["pg_constraint"] = pg.constraint
		}
		if pg.table != "" {
			fields["pg_table"] = pg.table
		}
	}
	return fields
}

type pgDetail struct {
	code       string
	constraint string
	table      string
}

// postgresDetail accepts errors from either Postgres driver.
func postgresDetail(err error) *pgDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &pgDetail{code: pgxErr.Code, constraint: pgxErr.ConstraintName, table: pgxErr.TableName}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &pgDetail{code: string(pqErr.Code), constraint: pqErr.Constraint, table: pqErr.Table}
	}
	return nil
}
