package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the flattened, log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

type pgFields struct {
	code, constraint, table, column, detail, message string
}

// postgresError reads the server error from whichever driver produced it.
func postgresError(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields{
			code:       pgxErr.Code,
			constraint: pgxErr.ConstraintName,
			table:      pgxErr.TableName,
			column:     pgxErr.ColumnName,
			detail:     pgxErr.Detail,
			message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields{
			code:       string(pqErr.Code),
			constraint: pqErr.Constraint,
			table:      pqErr.Table,
			column:     pqErr.Column,
			detail:     pqErr.Detail,
			message:    pqErr.Message,
		}, true
	}
	return pgFields{}, false
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if pg, ok := postgresError(err); ok {
		d.PGCode = pg.code
		d.PGConstraint = pg.constraint
		d.PGTable = pg.table
		d.PGColumn = pg.column
		d.PGDetail = pg.detail
		d.PGMessage = pg.message
	}
	return d
}

// SQLState returns the Postgres SQLSTATE carried by err, or "".
func SQLState(err error) string {
	pg, _ := postgresError(err)
	return pg.code
}

// WrapDB wraps a persistence failure. Coded errors pass through untouched;
// Postgres errors pick a code from their SQLSTATE and everything else gets
// fallback.
func WrapDB(err error, fallback Code, message string) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}

	code := fallback
	state := SQLState(err)
	switch {
	case state == "23505":
		code = CodeConflict
	case state == "23503", state == "23514":
		code = CodeConsistency
	case state == "40001", state == "40P01":
		code = CodeTransactionFailed
	case strings.HasPrefix(state, "08"), state == "57P01", state == "53300":
		code = CodeDependency
	}

	wrapped := Wrap(code, err, message)
	if state != "" && MetadataFor(code).DetailsAllowed {
		pg, _ := postgresError(err)
		wrapped = wrapped.WithDetails(map[string]any{"constraint": pg.constraint})
	}
	return wrapped
}
