package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the service reacts to.
const (
	PGUniqueViolation     = "23505"
	PGForeignKeyViolation = "23503"
	PGNotNullViolation    = "23502"
	PGCheckViolation      = "23514"
	PGDataExceptionClass  = "22"
)

// ErrUniqueViolation matches any ConstraintError through errors.Is.
var ErrUniqueViolation = errors.New("unique constraint violated")

// ConstraintError describes a unique-constraint failure reported by the store.
// Column and Value are empty when the driver does not expose them.
type ConstraintError struct {
	Column     string
	Value      string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("unique constraint violated on %s: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("unique constraint violated: %v", e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

func (e *ConstraintError) Is(target error) bool { return target == ErrUniqueViolation }

var (
	pgKeyDetail     = regexp.MustCompile(`Key \(([^)]+)\)=\((.*)\) already exists`)
	sqliteUniqueMsg = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+)`)
)

// UniqueViolation classifies err as a unique-constraint failure and extracts
// the offending column when the driver reports it.
func UniqueViolation(err error) (*ConstraintError, bool) {
	if err == nil {
		return nil, false
	}

	var existing *ConstraintError
	if errors.As(err, &existing) {
		return existing, true
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		if pgxErr.Code != PGUniqueViolation {
			return nil, false
		}
		return fromPG(err, pgxErr.Detail, pgxErr.ConstraintName, pgxErr.TableName), true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != PGUniqueViolation {
			return nil, false
		}
		return fromPG(err, pqErr.Detail, pqErr.Constraint, pqErr.Table), true
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ConstraintError{Err: err}, true
	}

	msg := err.Error()
	if m := sqliteUniqueMsg.FindStringSubmatch(msg); m != nil {
		column := m[1]
		if idx := strings.LastIndex(column, "."); idx >= 0 {
			column = column[idx+1:]
		}
		return &ConstraintError{Column: column, Err: err}, true
	}
	if strings.Contains(msg, "duplicate key value") {
		ce := &ConstraintError{Err: err}
		if m := pgKeyDetail.FindStringSubmatch(msg); m != nil {
			ce.Column, ce.Value = m[1], m[2]
		}
		return ce, true
	}

	return nil, false
}

// IsUniqueViolation reports whether err is a unique violation. When
// constraintName is provided the violated constraint or column must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	ce, ok := UniqueViolation(err)
	if !ok {
		return false
	}
	if constraintName == "" {
		return true
	}
	return ce.Constraint == constraintName ||
		ce.Column == constraintName ||
		(ce.Err != nil && strings.Contains(ce.Err.Error(), constraintName))
}

func fromPG(err error, detail, constraint, table string) *ConstraintError {
	ce := &ConstraintError{Constraint: constraint, Err: err}
	if m := pgKeyDetail.FindStringSubmatch(detail); m != nil {
		ce.Column, ce.Value = m[1], m[2]
		return ce
	}
	ce.Column = columnFromConstraint(constraint, table)
	return ce
}

// columnFromConstraint recovers "email" from names such as users_email_key.
func columnFromConstraint(constraint, table string) string {
	name := strings.TrimSpace(constraint)
	if name == "" {
		return ""
	}
	if table != "" {
		name = strings.TrimPrefix(name, table+"_")
	} else if idx := strings.Index(name, "_"); idx >= 0 {
		name = name[idx+1:]
	}
	for _, suffix := range []string{"_key", "_unique", "_idx"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

// SQLState returns the Postgres SQLSTATE carried by err, if any.
func SQLState(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsStorageFailure reports whether err originated in the driver, the pool or
// the ORM rather than in application code.
func IsStorageFailure(err error) bool {
	if err == nil {
		return false
	}
	if SQLState(err) != "" {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, sql.ErrTxDone),
		errors.Is(err, gorm.ErrInvalidDB),
		errors.Is(err, gorm.ErrInvalidTransaction),
		errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, gorm.ErrInvalidField),
		errors.Is(err, gorm.ErrUnsupportedDriver),
		errors.Is(err, gorm.ErrDryRunModeUnsupported):
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"sql:", "sqlite", "connection refused", "pool", "no such table"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
