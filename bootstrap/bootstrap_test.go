package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concilium-labs/conciliumd/blscrypto"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/registry"
)

func newBootstrapCommittee(t *testing.T, n int) ([]*Bootstrap, Table) {
	t.Helper()
	reg := registry.New()

	committee := make([]*Bootstrap, n)
	var table Table
	for i := 0; i < n; i++ {
		key, err := blscrypto.GenerateKey()
		require.NoError(t, err)
		pub, err := key.Public()
		require.NoError(t, err)
		table.Entries = append(table.Entries, Node{PublicKey: pub})
		committee[i] = NewBootstrap(key, reg)
	}
	return committee, table
}

func TestAdmissionQuorumSucceeds(t *testing.T) {
	committee, table := newBootstrapCommittee(t, 5)

	joinerPub := common.PubKey48{0xAA}
	replies := make([]Collected, 0, BootstrapQuorum)
	var rec Record
	for i := 0; i < BootstrapQuorum; i++ {
		r, sig, err := committee[i].GetID("node-join", joinerPub, [4]byte{10, 0, 0, byte(i + 1)}, 30303, 1, 1700000000)
		require.NoError(t, err)
		rec = r
		key, err := committee[i].blsKey.Public()
		require.NoError(t, err)
		replies = append(replies, Collected{BootstrapKey: key, Signature: sig})
	}

	adm := Admission{Table: table}
	aggSig, aggPub, err := adm.Aggregate(replies)
	require.NoError(t, err)

	contributing := make([]common.PubKey48, 0, len(replies))
	for _, r := range replies {
		contributing = append(contributing, r.BootstrapKey)
	}

	err = VerifyAdmission(table, rec, aggPub, aggSig, contributing)
	require.NoError(t, err)
}

func TestAdmissionBelowQuorumRejected(t *testing.T) {
	committee, table := newBootstrapCommittee(t, 5)

	joinerPub := common.PubKey48{0xBB}
	replies := make([]Collected, 0, BootstrapQuorum-1)
	for i := 0; i < BootstrapQuorum-1; i++ {
		_, sig, err := committee[i].GetID("node-join", joinerPub, [4]byte{10, 0, 0, byte(i + 1)}, 30303, 1, 1700000000)
		require.NoError(t, err)
		key, err := committee[i].blsKey.Public()
		require.NoError(t, err)
		replies = append(replies, Collected{BootstrapKey: key, Signature: sig})
	}

	adm := Admission{Table: table}
	_, _, err := adm.Aggregate(replies)
	require.Error(t, err)
}

func TestAdmissionRejectsNonCommitteeSigner(t *testing.T) {
	committee, table := newBootstrapCommittee(t, 5)
	outsider, err := blscrypto.GenerateKey()
	require.NoError(t, err)

	joinerPub := common.PubKey48{0xCC}
	replies := make([]Collected, 0, BootstrapQuorum)
	var rec Record
	for i := 0; i < BootstrapQuorum-1; i++ {
		r, sig, err := committee[i].GetID("node-join", joinerPub, [4]byte{10, 0, 0, byte(i + 1)}, 30303, 1, 1700000000)
		require.NoError(t, err)
		rec = r
		key, err := committee[i].blsKey.Public()
		require.NoError(t, err)
		replies = append(replies, Collected{BootstrapKey: key, Signature: sig})
	}

	outsiderSig, err := outsider.Sign(rec.Encode())
	require.NoError(t, err)
	outsiderPub, err := outsider.Public()
	require.NoError(t, err)
	replies = append(replies, Collected{BootstrapKey: outsiderPub, Signature: outsiderSig})

	adm := Admission{Table: table}
	_, _, err = adm.Aggregate(replies)
	require.Error(t, err)
}

func TestVerifyAdmissionRejectsTamperedRecord(t *testing.T) {
	committee, table := newBootstrapCommittee(t, 5)

	joinerPub := common.PubKey48{0xDD}
	replies := make([]Collected, 0, BootstrapQuorum)
	var rec Record
	for i := 0; i < BootstrapQuorum; i++ {
		r, sig, err := committee[i].GetID("node-join", joinerPub, [4]byte{10, 0, 0, byte(i + 1)}, 30303, 1, 1700000000)
		require.NoError(t, err)
		rec = r
		key, err := committee[i].blsKey.Public()
		require.NoError(t, err)
		replies = append(replies, Collected{BootstrapKey: key, Signature: sig})
	}

	adm := Admission{Table: table}
	aggSig, aggPub, err := adm.Aggregate(replies)
	require.NoError(t, err)

	contributing := make([]common.PubKey48, 0, len(replies))
	for _, r := range replies {
		contributing = append(contributing, r.BootstrapKey)
	}

	tampered := rec
	tampered.Port = rec.Port + 1
	err = VerifyAdmission(table, tampered, aggPub, aggSig, contributing)
	require.Error(t, err)
}
