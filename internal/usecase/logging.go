package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/infrastructure/logger"
)

// scopedLogger prefers the request logger carried by ctx so settlement lines
// keep the request_id and account_id of the call that triggered them.
func scopedLogger(ctx context.Context, base zerolog.Logger, component string) *zerolog.Logger {
	l := logger.FromContext(ctx, base).With().Str("component", component).Logger()
	return &l
}
