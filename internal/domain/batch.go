package domain

// CoinDelta is one queued change to a player's balance.
type CoinDelta struct {
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// CoinBatch is a set of deltas persisted as one ledger row. ID stays the
// same across retries so a batch is never applied twice.
type CoinBatch struct {
	ID     string      `json:"id"`
	Deltas []CoinDelta `json:"deltas"`
}

func (b *CoinBatch) Net() int64 {
	var sum int64
	for _, d := range b.Deltas {
		sum += d.Amount
	}
	return sum
}

// Breakdown sums the batch per kind.
func (b *CoinBatch) Breakdown() map[string]int64 {
	out := make(map[string]int64)
	for _, d := range b.Deltas {
		out[d.Kind] += d.Amount
	}
	return out
}

func (b *CoinBatch) Len() int { return len(b.Deltas) }
