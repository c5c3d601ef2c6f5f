package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/postgres/generated"
)

// Snowflakes are stored bit-for-bit in BIGINT columns.
func idToInt8(id snowflake.ID) int64 {
	return int64(id)
}

func int8ToID(v int64) snowflake.ID {
	return snowflake.ID(uint64(v))
}

func nullableID(id *snowflake.ID) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}

	return pgtype.Int8{Int64: idToInt8(*id), Valid: true}
}

func idFromNullable(v pgtype.Int8) *snowflake.ID {
	if !v.Valid {
		return nil
	}

	id := int8ToID(v.Int64)

	return &id
}

func nullableText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}

	return pgtype.Text{String: *s, Valid: true}
}

func textFromNullable(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}

	s := v.String

	return &s
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func nullableTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}

	return timeToPgTimestamptz(*t)
}

func timeFromNullable(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}

	t := v.Time

	return &t
}

// bundleToJSON encodes a bundle; an empty bundle is stored as NULL.
func bundleToJSON(b domain.Bundle) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}

	return json.Marshal(b)
}

func bundleFromJSON(data []byte) (domain.Bundle, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var b domain.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}

	return b, nil
}

func rowToTrade(row generated.Trade) (*domain.Trade, error) {
	give, err := bundleFromJSON(row.Give)
	if err != nil {
		return nil, err
	}

	get, err := bundleFromJSON(row.Get)
	if err != nil {
		return nil, err
	}

	return &domain.Trade{
		ID:                  row.ID,
		ProposerID:          int8ToID(row.ProposerID),
		ReceiverID:          int8ToID(row.ReceiverID),
		Status:              domain.TradeStatus(row.Status),
		Give:                give,
		Get:                 get,
		ConfirmProposer:     row.ConfirmProposer,
		ConfirmReceiver:     row.ConfirmReceiver,
		SettlementClaimedAt: timeFromNullable(row.SettlementClaimedAt),
		Note:                row.Note,
		ChannelID:           idFromNullable(row.ChannelID),
		MessageID:           idFromNullable(row.MessageID),
		CreatedAt:           row.CreatedAt.Time,
		UpdatedAt:           row.UpdatedAt.Time,
	}, nil
}

func rowsToTrades(rows []generated.Trade) ([]*domain.Trade, error) {
	trades := make([]*domain.Trade, 0, len(rows))
	for _, row := range rows {
		trade, err := rowToTrade(row)
		if err != nil {
			return nil, err
		}

		trades = append(trades, trade)
	}

	return trades, nil
}
