package node

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/concilium-labs/conciliumd/beacon"
	"github.com/concilium-labs/conciliumd/bootstrap"
	"github.com/concilium-labs/conciliumd/committee"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/epoch"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/pipeline"
	"github.com/concilium-labs/conciliumd/registry"
	peerrpc "github.com/concilium-labs/conciliumd/rpc/peer"
	"github.com/concilium-labs/conciliumd/rpcapi"
	"github.com/concilium-labs/conciliumd/storage/database"
)

// Service assembles every collaborator of spec.md §2 into one running
// process — the role node/service.go's ServiceContext plays for the
// teacher, generalized from "open one database per registered service" to
// "wire the beacon/committee/pipeline/bootstrap stack over one database".
type Service struct {
	Config Config
	Self   *SelfNode

	DB       database.Database
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Pool     *epoch.Pool
	IndexMap *epoch.IndexMap
	Clock    epoch.Clock

	Beacon  *beacon.Engine
	Council *pipeline.CouncilMember
	BCast   *pipeline.BroadcastMember
	Saver   *pipeline.SaveMember
	Leader  *pipeline.Leader
	Submit  *pipeline.Submit

	Bootstrap      *bootstrap.Bootstrap
	BootstrapTable bootstrap.Table

	grpcServer *grpc.Server
	httpServer *http.Server
	log        log.Logger
}

// New opens the database and constructs every in-memory collaborator, but
// does not yet start any network listener or the beacon loop — call
// BecomeBootstrap or Join to assign Self.ID, then Start.
func New(cfg Config, self *SelfNode, table bootstrap.Table) (*Service, error) {
	db, err := database.Open(database.ParseType(cfg.DBType), cfg.DataDir, 16, 16)
	if err != nil {
		return nil, err
	}

	l := ledger.New(db)
	if err := l.EnsureGenesis(); err != nil {
		return nil, err
	}
	if err := l.Replay(); err != nil {
		return nil, err
	}

	return &Service{
		Config:         cfg,
		Self:           self,
		DB:             db,
		Ledger:         l,
		Registry:       registry.New(),
		Pool:           epoch.NewPool(),
		IndexMap:       epoch.NewIndexMap(),
		Clock:          epoch.DefaultClock(),
		BootstrapTable: table,
		log:            log.NewModuleLogger(log.ModuleCMD),
	}, nil
}

// SeedEpochs implements spec.md §4.9's "seed EpochPool with {current,
// current+1, current+2} using last_node_id = N", run once by a bootstrap
// node at genesis and by a joiner once admission completes.
func (s *Service) SeedEpochs(lastNodeID common.NodeID) {
	cur := s.Clock.Current(time.Now())
	for _, id := range []uint64{cur, cur + 1, cur + 2} {
		s.Pool.Insert(epoch.Epoch{ID: id, LastNodeID: lastNodeID, Hashes: map[common.Hash256]uint64{}})
	}
	s.Pool.Publish()
}

// bumpLastNodeID implements spec.md §4.9 step 5: a peer admitted after
// genesis raises last_node_id on the epoch located epoch_of(created_at)+5,
// so the committee draw that first sees the new peer excludes it from
// slots already decided before it joined.
func (s *Service) bumpLastNodeID(rec bootstrap.Record) {
	id := s.Clock.Of(rec.CreatedAt.Unix()) + 5
	e, err := s.Pool.Reader().Get(id)
	if err != nil {
		return
	}
	if rec.ID > e.LastNodeID {
		e.LastNodeID = rec.ID
		s.Pool.Update(e)
		s.Pool.Publish()
	}
}

// wireSelector builds the committee.Selector bound to this service's
// published epoch/permutation readers.
func (s *Service) wireSelector() committee.Selector {
	return committee.Selector{
		Epochs:      s.Pool.Reader(),
		Permutation: s.IndexMap.Reader(),
		SelfID:      s.Self.ID,
		ActiveCount: func() uint64 { return uint64(s.Registry.Len() + 1) },
	}
}

// wirePipeline constructs the leader/submit/council/broadcast/save roles
// over the already-built collaborators (spec.md §4.6).
func (s *Service) wirePipeline() {
	sel := s.wireSelector()
	s.Leader = pipeline.NewLeader(s.Self.ID, s.Self.BLSKey, s.Registry, s.Ledger, sel, s.Clock)
	s.Submit = pipeline.NewSubmit(s.Self.ID, s.Registry, sel, s.Clock, s.Leader)
	s.Council = pipeline.NewCouncilMember(s.Self.BLSKey, s.Ledger)
	s.BCast = pipeline.NewBroadcastMember(s.Self.BLSKey)
	s.Saver = pipeline.NewSaveMember(s.Ledger)
	s.Beacon = beacon.NewEngine(s.Clock, s.Pool, s.IndexMap, s.Registry, s.Self.ID)
	s.Bootstrap = bootstrap.NewBootstrap(s.Self.BLSKey, s.Registry)
}

// Start wires the pipeline, opens the peer-rpc and JSON-RPC listeners, and
// launches the beacon loop. Self.ID must already be assigned (via
// BecomeBootstrap or Join) before calling Start.
func (s *Service) Start(ctx context.Context) error {
	s.wirePipeline()

	srv := &peerrpc.Server{
		ForwardFunc:        s.handleForward,
		AccreditFunc:       s.handleAccredit,
		RelayFunc:          s.handleRelay,
		SaveFunc:           s.handleSave,
		InitialRequestFunc: s.handleInitialRequest,
		SyncRequestFunc:    s.handleSyncRequest,
		GetIDFunc:          s.handleGetID,
		ConnectFunc:        s.handleConnect,
	}
	s.grpcServer = peerrpc.NewGRPCServer(srv)
	if _, err := peerrpc.Listen(s.grpcServer, s.Config.PeerAddr); err != nil {
		return err
	}

	rpcSrv := rpcapi.NewServer(s.Submit, s.Ledger)
	s.httpServer = &http.Server{Addr: s.Config.RPCAddr, Handler: rpcSrv.Router()}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("jsonrpc server stopped", "err", err)
		}
	}()

	go func() {
		if err := s.Beacon.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("beacon engine stopped", "err", err)
		}
	}()

	return nil
}

// Stop tears down the listeners started by Start.
func (s *Service) Stop() {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	s.DB.Close()
}
