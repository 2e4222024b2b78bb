package ledger

import "github.com/concilium-labs/conciliumd/common"

// chainState holds per-account balances and per-account transaction-id
// sets (spec.md §3 ChainState). Unexported — mutated only from within
// Ledger.Commit's critical section.
type chainState struct {
	balances     map[common.PubKey32]common.Amount
	transactions map[common.PubKey32]map[common.Hash256]struct{}
}

func newChainState() *chainState {
	return &chainState{
		balances:     make(map[common.PubKey32]common.Amount),
		transactions: make(map[common.PubKey32]map[common.Hash256]struct{}),
	}
}

func (c *chainState) credit(pub common.PubKey32, amount common.Amount, txid common.Hash256) {
	c.balances[pub] += amount
	c.recordTxid(pub, txid)
}

func (c *chainState) debit(pub common.PubKey32, amount common.Amount, txid common.Hash256) {
	c.balances[pub] -= amount
	c.recordTxid(pub, txid)
}

func (c *chainState) recordTxid(pub common.PubKey32, txid common.Hash256) {
	set, ok := c.transactions[pub]
	if !ok {
		set = make(map[common.Hash256]struct{})
		c.transactions[pub] = set
	}
	set[txid] = struct{}{}
}

func (c *chainState) balance(pub common.PubKey32) common.Amount {
	return c.balances[pub]
}

// sumBalances totals every tracked account balance, used by the
// conservation testable property (spec.md §8 property 4).
func (c *chainState) sumBalances() common.Amount {
	var total common.Amount
	for _, v := range c.balances {
		total += v
	}
	return total
}
