package peer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concilium-labs/conciliumd/common"
)

func TestForwardRequestRoundTrip(t *testing.T) {
	want := &ForwardRequest{
		RequestID: common.NewRequestID(7, 99, 1234),
		TxBytes:   []byte{0x01, 0x02, 0x03},
	}
	b, err := want.Marshal()
	require.NoError(t, err)

	got := new(ForwardRequest)
	require.NoError(t, got.Unmarshal(b))
	require.Equal(t, want, got)
}

func TestForwardResponseRoundTrip(t *testing.T) {
	want := &ForwardResponse{
		Status:        true,
		CouncilSig:    common.Sig96{0xAA},
		BroadcastSig:  common.Sig96{0xBB},
		CommittedTxid: common.Hash256{0xCC},
	}
	b, err := want.Marshal()
	require.NoError(t, err)

	got := new(ForwardResponse)
	require.NoError(t, got.Unmarshal(b))
	require.Equal(t, want, got)
}

func TestSyncRequestMsgRoundTrip(t *testing.T) {
	want := &SyncRequestMsg{EpochID: 42, Hash: common.Hash256{0x01, 0x02}}
	b, err := want.Marshal()
	require.NoError(t, err)

	got := new(SyncRequestMsg)
	require.NoError(t, got.Unmarshal(b))
	require.Equal(t, want, got)
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	want := &InitialRequestMsg{EpochID: 1, Random: 2}
	b, err := want.Marshal()
	require.NoError(t, err)

	got := new(InitialRequestMsg)
	require.Error(t, got.Unmarshal(append(b, 0xFF)))
}
