package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/cardtrade/internal/domain"
)

// PostgreSQL error classes that mean the server cannot serve us right now.
const (
	pgClassConnection        = "08"
	pgClassInsufficientRes   = "53"
	pgClassOperatorIntervene = "57"
)

// translateError maps driver failures onto domain errors. Deadlocks and
// serialization failures are returned untouched so the retrier can see them.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrStorageUnavailable) || errors.Is(err, domain.ErrConflict) {
		return err
	}

	if isRetryableError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErrorClass(pgErr.Code) {
		case pgClassConnection, pgClassInsufficientRes, pgClassOperatorIntervene:
			return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}

		return err
	}

	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)

	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		pgconn.Timeout(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, pgx.ErrTxClosed):
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	return err
}

func pgErrorClass(code string) string {
	if len(code) < 2 {
		return ""
	}

	return code[:2]
}
