package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// InventoryLine is the number of copies of one printing an account owns.
// Quantity never goes below zero; zero rows may be retained.
type InventoryLine struct {
	AccountID snowflake.ID `json:"account_id"`
	Printing
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrencyBalance is one token or shard balance of an account.
type CurrencyBalance struct {
	AccountID snowflake.ID `json:"account_id"`
	CurrencyKey
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Wallet groups an account's currency balances.
type Wallet struct {
	AccountID snowflake.ID      `json:"account_id"`
	Tokens    int64             `json:"tokens"`
	Shards    map[int32]int64   `json:"shards"`
	Balances  []CurrencyBalance `json:"-"`
}

// NewWallet folds balance rows into a wallet view.
func NewWallet(account snowflake.ID, balances []CurrencyBalance) Wallet {
	w := Wallet{AccountID: account, Shards: make(map[int32]int64), Balances: balances}

	for _, b := range balances {
		switch b.Currency {
		case CurrencyToken:
			w.Tokens += b.Amount
		case CurrencyShards:
			w.Shards[b.SetID] += b.Amount
		}
	}

	return w
}
