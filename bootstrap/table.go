package bootstrap

import "github.com/concilium-labs/conciliumd/common"

// BootstrapQuorum is the minimum number of distinct bootstrap
// co-signatures a joining node must collect before its admission is
// considered valid (spec.md §6: five compiled-in bootstrap identities).
const BootstrapQuorum = 3

// Node is one compile-time bootstrap entry: a BLS public key paired with
// its dial address (spec.md §6: "(hex_bls_pubkey, host:port)").
type Node struct {
	PublicKey common.PubKey48
	Addr      string
}

// Table is the fixed bootstrap committee a joining node authenticates
// against. Populated from node configuration at startup (spec.md §6) and
// never mutated at runtime.
type Table struct {
	Entries []Node
}

// Contains reports whether pub belongs to the bootstrap committee.
func (t Table) Contains(pub common.PubKey48) bool {
	for _, e := range t.Entries {
		if e.PublicKey == pub {
			return true
		}
	}
	return false
}

// Addrs returns the dial address of every compiled-in bootstrap entry.
func (t Table) Addrs() []string {
	addrs := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		addrs[i] = e.Addr
	}
	return addrs
}
