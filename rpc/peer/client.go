package peer

import (
	"context"

	"google.golang.org/grpc"

	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/registry"
)

// Client wraps one peer's *grpc.ClientConn and implements
// registry.Streams, so the committee/pipeline/beacon packages never
// import grpc themselves.
type Client struct {
	conn *grpc.ClientConn
}

// Dial opens a connection to a peer's peer-rpc listener (spec.md §4.8).
func Dial(addr string) (*Client, error) {
	conn, err := grpc.Dial(addr, grpc.WithInsecure(), grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))) //nolint:staticcheck // plaintext transport; TLS wiring is deployment config, not protocol
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Leader() registry.LeaderStream     { return leaderClient{c.conn} }
func (c *Client) Council() registry.CouncilStream   { return councilClient{c.conn} }
func (c *Client) Broadcast() registry.BroadcastStream { return broadcastClient{c.conn} }
func (c *Client) Save() registry.SaveStream         { return saveClient{c.conn} }
func (c *Client) Epoch() registry.EpochStream       { return epochClient{c.conn} }

type leaderClient struct{ conn *grpc.ClientConn }

func (l leaderClient) Forward(ctx registry.Context, requestID common.RequestID, txBytes []byte) (registry.LeaderResponse, error) {
	req := &ForwardRequest{RequestID: requestID, TxBytes: txBytes}
	resp := new(ForwardResponse)
	if err := l.conn.Invoke(ctx.(context.Context), serviceName+"/Forward", req, resp); err != nil {
		return registry.LeaderResponse{}, err
	}
	return registry.LeaderResponse{
		Status:        resp.Status,
		CouncilSig:    resp.CouncilSig,
		BroadcastSig:  resp.BroadcastSig,
		CommittedTxid: resp.CommittedTxid,
	}, nil
}

type councilClient struct{ conn *grpc.ClientConn }

func (c councilClient) Accredit(ctx registry.Context, requestID common.RequestID, txBytes []byte) (registry.CouncilResponse, error) {
	req := &AccreditRequest{RequestID: requestID, TxBytes: txBytes}
	resp := new(AccreditResponse)
	if err := c.conn.Invoke(ctx.(context.Context), serviceName+"/Accredit", req, resp); err != nil {
		return registry.CouncilResponse{}, err
	}
	return registry.CouncilResponse{Status: resp.Status, Signature: resp.Signature}, nil
}

type broadcastClient struct{ conn *grpc.ClientConn }

func (b broadcastClient) Relay(ctx registry.Context, requestID common.RequestID, envelopeBytes []byte) (registry.BroadcastResponse, error) {
	req := &RelayRequest{RequestID: requestID, EnvelopeByte: envelopeBytes}
	resp := new(RelayResponse)
	if err := b.conn.Invoke(ctx.(context.Context), serviceName+"/Relay", req, resp); err != nil {
		return registry.BroadcastResponse{}, err
	}
	return registry.BroadcastResponse{Signature: resp.Signature}, nil
}

type saveClient struct{ conn *grpc.ClientConn }

func (s saveClient) Save(ctx registry.Context, requestID common.RequestID, txBytes []byte) error {
	req := &SaveRequest{RequestID: requestID, TxBytes: txBytes}
	return s.conn.Invoke(ctx.(context.Context), serviceName+"/Save", req, new(SaveResponse))
}

type epochClient struct{ conn *grpc.ClientConn }

func (e epochClient) InitialRequest(ctx registry.Context, epochID uint64, random uint64) error {
	req := &InitialRequestMsg{EpochID: epochID, Random: random}
	return e.conn.Invoke(ctx.(context.Context), serviceName+"/InitialRequest", req, new(EpochAck))
}

func (e epochClient) SyncRequest(ctx registry.Context, epochID uint64, hash common.Hash256) error {
	req := &SyncRequestMsg{EpochID: epochID, Hash: hash}
	return e.conn.Invoke(ctx.(context.Context), serviceName+"/SyncRequest", req, new(EpochAck))
}

// GetID asks this peer, acting as a bootstrap committee member, to assign
// or recall an id for the caller and co-sign the resulting record
// (spec.md §4.9 step 1).
func (c *Client) GetID(ctx context.Context, req *GetIDRequest) (*GetIDResponse, error) {
	resp := new(GetIDResponse)
	if err := c.conn.Invoke(ctx, serviceName+"/GetID", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Connect presents an aggregate bootstrap admission proof to this peer
// (spec.md §4.9 steps 2-4).
func (c *Client) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	resp := new(ConnectResponse)
	if err := c.conn.Invoke(ctx, serviceName+"/Connect", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

var _ registry.Streams = (*Client)(nil)
