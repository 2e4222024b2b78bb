package peer

import (
	"github.com/concilium-labs/conciliumd/codec"
	"github.com/concilium-labs/conciliumd/common"
)

// GetIDRequest carries a joining node's self-descriptor to one bootstrap
// committee member (spec.md §4.9 step 1, rpc/src/identifier/client.rs).
type GetIDRequest struct {
	Name      string
	BLSPublic common.PubKey48
	IPv4      [4]byte
	Port      uint16
	Version   uint32
	CreatedAt int64
}

func (m *GetIDRequest) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.VarBytes([]byte(m.Name))
	w.Fixed(m.BLSPublic[:])
	w.Fixed(m.IPv4[:])
	w.U32(uint32(m.Port))
	w.U32(m.Version)
	w.I64(m.CreatedAt)
	return w.Bytes(), nil
}

func (m *GetIDRequest) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	name, err := r.VarBytes()
	if err != nil {
		return err
	}
	var pub common.PubKey48
	if err := r.Fixed(pub[:]); err != nil {
		return err
	}
	var ipv4 [4]byte
	if err := r.Fixed(ipv4[:]); err != nil {
		return err
	}
	port, err := r.U32()
	if err != nil {
		return err
	}
	version, err := r.U32()
	if err != nil {
		return err
	}
	createdAt, err := r.I64()
	if err != nil {
		return err
	}
	m.Name = string(name)
	m.BLSPublic = pub
	m.IPv4 = ipv4
	m.Port = uint16(port)
	m.Version = version
	m.CreatedAt = createdAt
	return r.Done()
}

// GetIDResponse is one bootstrap committee member's assigned id and
// co-signature over the resulting record (spec.md §4.9 step 1).
// BootstrapNodeID is the responding bootstrap's own node id, letting the
// joiner register a stream to it once admission completes without a
// separate active-node-snapshot round trip.
type GetIDResponse struct {
	ID              common.NodeID
	BootstrapKey    common.PubKey48
	BootstrapNodeID common.NodeID
	Signature       common.Sig96
}

func (m *GetIDResponse) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.U32(uint32(m.ID))
	w.Fixed(m.BootstrapKey[:])
	w.U32(uint32(m.BootstrapNodeID))
	w.Fixed(m.Signature[:])
	return w.Bytes(), nil
}

func (m *GetIDResponse) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	id, err := r.U32()
	if err != nil {
		return err
	}
	var key common.PubKey48
	if err := r.Fixed(key[:]); err != nil {
		return err
	}
	bootstrapNodeID, err := r.U32()
	if err != nil {
		return err
	}
	var sig common.Sig96
	if err := r.Fixed(sig[:]); err != nil {
		return err
	}
	m.ID = common.NodeID(id)
	m.BootstrapKey = key
	m.BootstrapNodeID = common.NodeID(bootstrapNodeID)
	m.Signature = sig
	return r.Done()
}

// ConnectRequest is a joining node presenting its aggregate bootstrap
// admission proof to a peer it wants to connect to (spec.md §4.9 steps
// 2-4, rpc/src/connection/client.rs).
type ConnectRequest struct {
	RecordBytes      []byte
	AggPub           common.PubKey48
	AggSig           common.Sig96
	ContributingKeys []common.PubKey48
}

func (m *ConnectRequest) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.VarBytes(m.RecordBytes)
	w.Fixed(m.AggPub[:])
	w.Fixed(m.AggSig[:])
	w.U32(uint32(len(m.ContributingKeys)))
	for _, k := range m.ContributingKeys {
		w.Fixed(k[:])
	}
	return w.Bytes(), nil
}

func (m *ConnectRequest) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	rec, err := r.VarBytes()
	if err != nil {
		return err
	}
	var aggPub common.PubKey48
	if err := r.Fixed(aggPub[:]); err != nil {
		return err
	}
	var aggSig common.Sig96
	if err := r.Fixed(aggSig[:]); err != nil {
		return err
	}
	n, err := r.U32()
	if err != nil {
		return err
	}
	keys := make([]common.PubKey48, n)
	for i := range keys {
		if err := r.Fixed(keys[i][:]); err != nil {
			return err
		}
	}
	m.RecordBytes = rec
	m.AggPub = aggPub
	m.AggSig = aggSig
	m.ContributingKeys = keys
	return r.Done()
}

// ConnectResponse reports whether a peer admitted the presented proof.
type ConnectResponse struct {
	Accepted bool
}

func (m *ConnectResponse) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.U8(boolByte(m.Accepted))
	return w.Bytes(), nil
}

func (m *ConnectResponse) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	accepted, err := r.U8()
	if err != nil {
		return err
	}
	m.Accepted = accepted != 0
	return r.Done()
}
