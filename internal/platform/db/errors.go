package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
	CodeInvalidEnumValue    = "22P02"
)

// PgErrorCode returns the SQLSTATE of err, or "" if err is not a Postgres error.
func PgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool     { return PgErrorCode(err) == CodeUniqueViolation }
func IsForeignKeyViolation(err error) bool { return PgErrorCode(err) == CodeForeignKeyViolation }
func IsCheckViolation(err error) bool      { return PgErrorCode(err) == CodeCheckViolation }

// ConstraintName returns the violated constraint for a Postgres error.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
