package peer

import (
	"context"

	"google.golang.org/grpc"
)

// Handler is implemented by the server side of the Transaction and Epoch
// services (spec.md §4.8). rpc/peer/server.go wires one per node, backed
// by the pipeline and beacon packages.
type Handler interface {
	Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error)
	Accredit(ctx context.Context, req *AccreditRequest) (*AccreditResponse, error)
	Relay(ctx context.Context, req *RelayRequest) (*RelayResponse, error)
	Save(ctx context.Context, req *SaveRequest) (*SaveResponse, error)
	InitialRequest(ctx context.Context, req *InitialRequestMsg) (*EpochAck, error)
	SyncRequest(ctx context.Context, req *SyncRequestMsg) (*EpochAck, error)
	GetID(ctx context.Context, req *GetIDRequest) (*GetIDResponse, error)
	Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error)
}

// serviceName is the fully-qualified grpc service name the four §4.8
// sub-channels are registered under. Real bidirectional streams are
// unnecessary here: every RPC is a single request/response exchange
// multiplexed by common.RequestID, so each sub-channel is a unary method
// rather than a grpc.StreamDesc.
const serviceName = "concilium.peer.Node"

func forwardHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ForwardRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.Forward(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Forward"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.Forward(ctx, req.(*ForwardRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func accreditHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(AccreditRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.Accredit(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Accredit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.Accredit(ctx, req.(*AccreditRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func relayHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(RelayRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.Relay(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Relay"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.Relay(ctx, req.(*RelayRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func saveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SaveRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.Save(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Save"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.Save(ctx, req.(*SaveRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func initialRequestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(InitialRequestMsg)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.InitialRequest(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/InitialRequest"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.InitialRequest(ctx, req.(*InitialRequestMsg))
	}
	return interceptor(ctx, req, info, handler)
}

func syncRequestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SyncRequestMsg)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.SyncRequest(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/SyncRequest"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.SyncRequest(ctx, req.(*SyncRequestMsg))
	}
	return interceptor(ctx, req, info, handler)
}

func getIDHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetIDRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.GetID(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetID"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.GetID(ctx, req.(*GetIDRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func connectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ConnectRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	h := srv.(Handler)
	if interceptor == nil {
		return h.Connect(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Connect"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return h.Connect(ctx, req.(*ConnectRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceDesc is the hand-authored equivalent of a protoc-generated
// _grpc.pb.go ServiceDesc: one method per spec.md §4.8 sub-channel.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Forward", Handler: forwardHandler},
		{MethodName: "Accredit", Handler: accreditHandler},
		{MethodName: "Relay", Handler: relayHandler},
		{MethodName: "Save", Handler: saveHandler},
		{MethodName: "InitialRequest", Handler: initialRequestHandler},
		{MethodName: "SyncRequest", Handler: syncRequestHandler},
		{MethodName: "GetID", Handler: getIDHandler},
		{MethodName: "Connect", Handler: connectHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "concilium/peer.proto",
}
