package node

import (
	"net"
	"strconv"
	"time"

	"github.com/concilium-labs/conciliumd/blscrypto"
	"github.com/concilium-labs/conciliumd/bootstrap"
	"github.com/concilium-labs/conciliumd/common"
)

// SelfNode is this process's own node identity (spec.md §3 SelfNode),
// grounded on original_source/core-ext/src/node/self_node.rs's field set.
type SelfNode struct {
	ID        common.NodeID
	Name      string
	BLSKey    *blscrypto.PrivateKey
	IPv4      [4]byte
	Port      uint16
	Version   uint32
	CreatedAt time.Time
}

// NewSelfNode builds a SelfNode from configuration, generating a fresh BLS
// key when none is configured.
func NewSelfNode(cfg Config) (*SelfNode, error) {
	var key *blscrypto.PrivateKey
	if cfg.PrivateKey != "" {
		seed, err := cfg.PrivateKeyBytes()
		if err != nil {
			return nil, err
		}
		key = blscrypto.PrivateKeyFromBytes(seed)
	} else {
		generated, err := blscrypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		key = generated
	}

	host, portStr, err := net.SplitHostPort(cfg.PeerAddr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}
	var ipv4 [4]byte
	if ip := net.ParseIP(host).To4(); ip != nil {
		copy(ipv4[:], ip)
	}

	return &SelfNode{
		Name:      cfg.Name,
		BLSKey:    key,
		IPv4:      ipv4,
		Port:      uint16(port),
		Version:   cfg.Version,
		CreatedAt: time.Now(),
	}, nil
}

// Record builds the bootstrap.Record this node presents for admission
// (spec.md §4.9 step 1), once ID has been assigned.
func (n *SelfNode) Record() (bootstrap.Record, error) {
	pub, err := n.BLSKey.Public()
	if err != nil {
		return bootstrap.Record{}, err
	}
	return bootstrap.Record{
		ID:        n.ID,
		Name:      n.Name,
		BLSPublic: pub,
		IPv4:      n.IPv4,
		Port:      n.Port,
		Version:   n.Version,
		CreatedAt: n.CreatedAt,
	}, nil
}
