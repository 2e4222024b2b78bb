// Package main is conciliumd's entrypoint, the role cmd/kcn/main.go plays
// for the teacher: build a cli.App, parse flags into a node.Config, and run
// the resulting node until an interrupt arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap/zapcore"
	"gopkg.in/urfave/cli.v1"

	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/node"
)

const clientIdentifier = "conciliumd"

var logger = log.NewModuleLogger(log.ModuleCMD)

var (
	NameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "Name advertised to peers in this node's descriptor",
		Value: node.DefaultConfig.Name,
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the ledger and epoch databases",
		Value: node.DefaultConfig.DataDir,
	}
	DBTypeFlag = cli.StringFlag{
		Name:  "dbtype",
		Usage: "Database type to use (leveldb, badger, memory)",
		Value: node.DefaultConfig.DBType,
	}
	PrivateKeyFlag = cli.StringFlag{
		Name:  "blskey",
		Usage: "Hex-encoded BLS12-381 private key seed (generated when empty)",
	}
	PeerAddrFlag = cli.StringFlag{
		Name:  "peeraddr",
		Usage: "Listen address for the peer gRPC service",
		Value: node.DefaultConfig.PeerAddr,
	}
	RPCAddrFlag = cli.StringFlag{
		Name:  "rpcaddr",
		Usage: "Listen address for the JSON-RPC HTTP edge",
		Value: node.DefaultConfig.RPCAddr,
	}
	VersionFlag = cli.UintFlag{
		Name:  "nodeversion",
		Usage: "Protocol version advertised in this node's descriptor",
		Value: uint64(node.DefaultConfig.Version),
	}
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file (explicitly set flags override its values)",
	}
	BootstrapFlag = cli.StringSliceFlag{
		Name:  "bootstrap",
		Usage: "Bootstrap entry as hexpubkey@host:port (repeatable, spec.md §6 BOOTSTRAP_NODES)",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=error,1=warn,2=info,3=debug",
		Value: 2,
	}
)

var nodeFlags = []cli.Flag{
	NameFlag,
	DataDirFlag,
	DBTypeFlag,
	PrivateKeyFlag,
	PeerAddrFlag,
	RPCAddrFlag,
	VersionFlag,
	ConfigFileFlag,
	BootstrapFlag,
	VerbosityFlag,
}

func main() {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Usage = "the concilium permissioned-ledger node"
	app.Flags = nodeFlags
	app.Action = run
	app.Commands = []cli.Command{genBLSKeyCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run is the app's default Action: build a node.Config from flags (or a
// TOML file), join or bootstrap the network, and block until interrupted.
func run(ctx *cli.Context) error {
	log.SetLevel(verbosityLevel(ctx.Int(VerbosityFlag.Name)))

	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}

	self, err := node.NewSelfNode(cfg)
	if err != nil {
		return err
	}

	table, err := cfg.BootstrapTable()
	if err != nil {
		return err
	}

	svc, err := node.New(cfg, self, table)
	if err != nil {
		return err
	}

	if len(table.Entries) == 0 {
		logger.Info("no bootstrap entries configured, becoming the bootstrap node")
		svc.BecomeBootstrap()
	} else {
		bg := context.Background()
		if err := svc.Join(bg, table); err != nil {
			return fmt.Errorf("join bootstrap committee: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(runCtx); err != nil {
		return err
	}
	logger.Info("conciliumd started", "id", self.ID, "peeraddr", cfg.PeerAddr, "rpcaddr", cfg.RPCAddr)

	waitForShutdown()

	cancel()
	svc.Stop()
	logger.Info("conciliumd stopped")
	return nil
}

// waitForShutdown blocks until the first SIGINT/SIGTERM arrives, then
// returns so the caller can stop the service.
func waitForShutdown() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	<-sigc
	logger.Info("got interrupt, shutting down")
}

func verbosityLevel(v int) zapcore.Level {
	switch {
	case v <= 0:
		return zapcore.ErrorLevel
	case v == 1:
		return zapcore.WarnLevel
	case v == 2:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// buildConfig loads node.DefaultConfig, overlays a TOML file when
// -config is set, then overlays any explicitly-set flags, matching the
// teacher's flag-overlays-file precedence in cmd/utils.SetNodeConfig.
func buildConfig(ctx *cli.Context) (node.Config, error) {
	cfg := node.DefaultConfig

	if file := ctx.String(ConfigFileFlag.Name); file != "" {
		if err := node.LoadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.IsSet(NameFlag.Name) {
		cfg.Name = ctx.String(NameFlag.Name)
	}
	if ctx.IsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.String(DataDirFlag.Name)
	}
	if ctx.IsSet(DBTypeFlag.Name) {
		cfg.DBType = ctx.String(DBTypeFlag.Name)
	}
	if ctx.IsSet(PrivateKeyFlag.Name) {
		cfg.PrivateKey = ctx.String(PrivateKeyFlag.Name)
	}
	if ctx.IsSet(PeerAddrFlag.Name) {
		cfg.PeerAddr = ctx.String(PeerAddrFlag.Name)
	}
	if ctx.IsSet(RPCAddrFlag.Name) {
		cfg.RPCAddr = ctx.String(RPCAddrFlag.Name)
	}
	if ctx.IsSet(VersionFlag.Name) {
		cfg.Version = uint32(ctx.Uint(VersionFlag.Name))
	}
	if entries := ctx.StringSlice(BootstrapFlag.Name); len(entries) > 0 {
		parsed, err := parseBootstrapEntries(entries)
		if err != nil {
			return cfg, err
		}
		cfg.Bootstrap = parsed
	}

	return cfg, nil
}

// parseBootstrapEntries parses "hexpubkey@host:port" flag values into
// node.BootstrapEntry values.
func parseBootstrapEntries(raw []string) ([]node.BootstrapEntry, error) {
	entries := make([]node.BootstrapEntry, len(raw))
	for i, s := range raw {
		var pub, addr string
		for j := 0; j < len(s); j++ {
			if s[j] == '@' {
				pub, addr = s[:j], s[j+1:]
				break
			}
		}
		if pub == "" || addr == "" {
			return nil, fmt.Errorf("invalid -bootstrap entry %q, want hexpubkey@host:port", s)
		}
		entries[i] = node.BootstrapEntry{PublicKey: pub, Addr: addr}
	}
	return entries, nil
}
