package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// ParseAccountID parses a chat-platform user id. Accounts have no table of
// their own; the id is only the key under which balances live.
func ParseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.Parse(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAccountID, raw)
	}

	if id == 0 {
		return 0, fmt.Errorf("%w: zero id", ErrInvalidAccountID)
	}

	return id, nil
}

// SortedAccounts returns the unique ids in ascending order.
// Locks are always taken in this order to prevent deadlocks.
func SortedAccounts(ids ...snowflake.ID) []snowflake.ID {
	out := slices.Clone(ids)
	slices.Sort(out)

	return slices.Compact(out)
}
