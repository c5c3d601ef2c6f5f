package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestScopedLoggerPrefersRequestLogger(t *testing.T) {
	var base, request bytes.Buffer

	reqLogger := zerolog.New(&request).With().Str("request_id", "req-7").Logger()
	ctx := reqLogger.WithContext(context.Background())

	scopedLogger(ctx, zerolog.New(&base), "settlement").Info().Msg("trade settled")

	assert.Empty(t, base.String())
	assert.Contains(t, request.String(), `"request_id":"req-7"`)
	assert.Contains(t, request.String(), `"component":"settlement"`)
}

func TestScopedLoggerFallsBackToBase(t *testing.T) {
	var base bytes.Buffer

	scopedLogger(context.Background(), zerolog.New(&base), "trade").Warn().Msg("failed to expire trade")

	assert.Contains(t, base.String(), `"component":"trade"`)
}
