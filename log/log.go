// Package log provides the contextual, leveled logger used throughout the
// node, matching the call-site contract of the teacher's logger
// (log.New("k", v), log.NewModuleLogger(name), logger.Info(msg, "k", v...))
// but backed by go.uber.org/zap's SugaredLogger instead of log15.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the contextual logging handle every package takes a dependency
// on. Key-value pairs are variadic, matching the teacher's convention of
// logger.Info("message", "key1", val1, "key2", val2).
type Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

var (
	baseMu   sync.Mutex
	base     *zap.SugaredLogger
	minLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func root() *zap.SugaredLogger {
	baseMu.Lock()
	defer baseMu.Unlock()
	if base == nil {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg),
			zapcore.Lock(os.Stderr),
			minLevel,
		)
		base = zap.New(core).Sugar()
	}
	return base
}

// SetLevel adjusts the minimum level emitted by every Logger handed out by
// this package, matching klaytn's --verbosity CLI flag semantics.
func SetLevel(level zapcore.Level) {
	minLevel.SetLevel(level)
}

type sugared struct {
	l *zap.SugaredLogger
}

// New returns a root logger annotated with the given key-value context.
func New(ctx ...interface{}) Logger {
	return &sugared{l: root().With(ctx...)}
}

// NewModuleLogger is sugar for New("module", name), mirroring
// log.NewModuleLogger(log.CMDKCN) in the teacher's cmd/kcn/main.go.
func NewModuleLogger(name string) Logger {
	return New("module", name)
}

func (s *sugared) Debug(msg string, ctx ...interface{}) { s.l.Debugw(msg, ctx...) }
func (s *sugared) Info(msg string, ctx ...interface{})  { s.l.Infow(msg, ctx...) }
func (s *sugared) Warn(msg string, ctx ...interface{})  { s.l.Warnw(msg, ctx...) }
func (s *sugared) Error(msg string, ctx ...interface{}) { s.l.Errorw(msg, ctx...) }
func (s *sugared) New(ctx ...interface{}) Logger        { return &sugared{l: s.l.With(ctx...)} }

// Module name constants, mirroring the teacher's log.CMDKCN/log.StorageDatabase
// enumeration style.
const (
	ModuleDatabase    = "database"
	ModuleBeacon      = "beacon"
	ModuleCommittee   = "committee"
	ModulePipeline    = "pipeline"
	ModuleLedger      = "ledger"
	ModuleBootstrap   = "bootstrap"
	ModulePeerRPC     = "rpc/peer"
	ModuleJSONRPC     = "rpcapi"
	ModuleCMD         = "cmd/conciliumd"
	ModuleEpoch       = "epoch"
	ModuleRegistry    = "registry"
)
