package database

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Combine-Capital/lovetree/pkg/errors"
)

// PostgreSQL error codes the store reacts to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidTextRep      = "22P02"
)

// Classify maps a driver error onto the lovetree error categories. resource and id name
// the entity for NotFound and Conflict messages. A nil error stays nil.
func Classify(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NewNotFoundWithCause(resource, id, err)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTemporary("database operation interrupted", err)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return errors.NewConflictWithCause(resource, pgErr.Detail, err)
		case codeForeignKeyViolation:
			return errors.NewNotFoundWithCause(resource, id, err)
		case codeCheckViolation, codeInvalidTextRep:
			return errors.NewInvalidInputWithCause(pgErr.ColumnName, pgErr.Message, err)
		}
		return errors.NewPermanent("database error", err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return errors.NewTemporary("database unavailable", err)
	}
	return errors.NewTemporary("database operation failed", err)
}
