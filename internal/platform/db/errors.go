package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odonto/odonto/internal/platform/apperr"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeCheckViolation     = "23514"
)

// SQLSTATE classes that indicate the statement may succeed if retried:
// connection exceptions, transaction rollbacks (serialization, deadlock),
// insufficient resources and operator intervention.
var transientClasses = []string{"08", "40", "53", "57"}

// Classify attaches an apperr.Kind to a pgx error. Unrecognised errors are
// wrapped with op and left unclassified.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: "not found", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return apperr.Transient(op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return apperr.Transient(op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeExclusionViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Op: op, Msg: pgErr.Message, Err: err}
		case codeCheckViolation:
			return &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: pgErr.Message, Err: err}
		}
		for _, class := range transientClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return apperr.Transient(op, err)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsExclusionViolation reports whether err came from an EXCLUDE constraint.
func IsExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeExclusionViolation
}
