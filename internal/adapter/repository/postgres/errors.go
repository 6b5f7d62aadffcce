package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

const (
	codeUndefinedFunction = "42883"
	codeNoDataFound       = "P0002"
)

// translate maps driver errors onto the domain sentinels.
func translate(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUndefinedFunction:
			return fmt.Errorf("%s: %w", op, domain.ErrRPCUnavailable)
		case codeNoDataFound:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
	}
	return &domain.DatastoreError{Op: op, Err: err}
}
