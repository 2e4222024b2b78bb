package peer

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/concilium-labs/conciliumd/log"
)

// Server adapts caller-supplied callbacks to the Handler interface so
// pipeline and beacon, which own the actual business logic, never need to
// import grpc directly. Each field is required; NewGRPCServer panics
// if one is left nil, matching the teacher's
// node/service.go "service must be fully wired before Start" contract.
type Server struct {
	ForwardFunc        func(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error)
	AccreditFunc       func(ctx context.Context, req *AccreditRequest) (*AccreditResponse, error)
	RelayFunc          func(ctx context.Context, req *RelayRequest) (*RelayResponse, error)
	SaveFunc           func(ctx context.Context, req *SaveRequest) (*SaveResponse, error)
	InitialRequestFunc func(ctx context.Context, req *InitialRequestMsg) (*EpochAck, error)
	SyncRequestFunc    func(ctx context.Context, req *SyncRequestMsg) (*EpochAck, error)
	GetIDFunc          func(ctx context.Context, req *GetIDRequest) (*GetIDResponse, error)
	ConnectFunc        func(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error)

	log log.Logger
}

func (s *Server) Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error) {
	return s.ForwardFunc(ctx, req)
}

func (s *Server) Accredit(ctx context.Context, req *AccreditRequest) (*AccreditResponse, error) {
	return s.AccreditFunc(ctx, req)
}

func (s *Server) Relay(ctx context.Context, req *RelayRequest) (*RelayResponse, error) {
	return s.RelayFunc(ctx, req)
}

func (s *Server) Save(ctx context.Context, req *SaveRequest) (*SaveResponse, error) {
	return s.SaveFunc(ctx, req)
}

func (s *Server) InitialRequest(ctx context.Context, req *InitialRequestMsg) (*EpochAck, error) {
	return s.InitialRequestFunc(ctx, req)
}

func (s *Server) SyncRequest(ctx context.Context, req *SyncRequestMsg) (*EpochAck, error) {
	return s.SyncRequestFunc(ctx, req)
}

func (s *Server) GetID(ctx context.Context, req *GetIDRequest) (*GetIDResponse, error) {
	return s.GetIDFunc(ctx, req)
}

func (s *Server) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	return s.ConnectFunc(ctx, req)
}

// NewGRPCServer registers s against a fresh *grpc.Server. Every call must
// carry grpc.CallContentSubtype(CodecName) so the server resolves the
// concilium codec registered in codec.go's init().
func NewGRPCServer(s *Server) *grpc.Server {
	if s.ForwardFunc == nil || s.AccreditFunc == nil || s.RelayFunc == nil || s.SaveFunc == nil ||
		s.InitialRequestFunc == nil || s.SyncRequestFunc == nil || s.GetIDFunc == nil || s.ConnectFunc == nil {
		panic("peer: Server has a nil handler func")
	}
	if s.log == nil {
		s.log = log.NewModuleLogger(log.ModulePeerRPC)
	}
	srv := grpc.NewServer()
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

// Listen starts srv on addr (host:port), matching the teacher's
// node/service.go Start/Stop lifecycle shape.
func Listen(srv *grpc.Server, addr string) (net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		_ = srv.Serve(lis)
	}()
	return lis, nil
}
