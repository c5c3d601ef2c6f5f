package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultSettlementClaimTTL is how long a settlement claim blocks other claimants.
	DefaultSettlementClaimTTL = 30 * time.Second

	// DefaultTradeCacheTTL bounds how long a trade snapshot is served from cache.
	DefaultTradeCacheTTL = time.Minute

	// DefaultExpiryBatch is how many idle trades one sweep cancels at most.
	DefaultExpiryBatch = 100
)
