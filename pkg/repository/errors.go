package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for integrity violations.
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// Mapping names the domain errors a repository reports in place of driver
// errors. A nil field leaves that class of error unmapped.
type Mapping struct {
	NotFound  error
	Duplicate error
	// Invalid covers foreign key, check, and not-null violations.
	Invalid error
}

// Map translates err into the matching domain error. Constraint violations
// keep the violated constraint name in the message. Unrecognized errors
// pass through unchanged.
func (m Mapping) Map(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && m.NotFound != nil {
		return m.NotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	var target error
	switch pgErr.Code {
	case pgUniqueViolation:
		target = m.Duplicate
	case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation:
		target = m.Invalid
	}
	if target == nil {
		return err
	}
	if pgErr.ConstraintName != "" {
		return fmt.Errorf("%w: violates %s", target, pgErr.ConstraintName)
	}
	return target
}
