// Package node wires the epoch/beacon/committee/ledger/pipeline/bootstrap
// collaborators into a single running process, and owns process
// configuration — the role cmd/ranger/config.go and node/config.go play in
// the teacher.
package node

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"

	"github.com/concilium-labs/conciliumd/bootstrap"
	"github.com/concilium-labs/conciliumd/common"
)

// tomlSettings mirrors the teacher's cmd/ranger/config.go: TOML keys use
// the same names as the Go struct fields, verbatim.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see %s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// BootstrapEntry is one TOML-configured compile-time bootstrap identity
// (spec.md §6: 5 entries of hex BLS public key + host:port).
type BootstrapEntry struct {
	PublicKey string
	Addr      string
}

// Config is the full on-disk node configuration.
type Config struct {
	Name       string
	DataDir    string
	DBType     string // "leveldb" (default), "badger", or "memory"
	PrivateKey string // hex-encoded BLS12-381 private key seed
	PeerAddr   string // listen address for the rpc/peer gRPC service
	RPCAddr    string // listen address for the rpcapi JSON-RPC HTTP edge
	Version    uint32

	Bootstrap []BootstrapEntry
}

// DefaultConfig mirrors the teacher's node.DefaultConfig pattern: a
// complete, locally-runnable configuration absent a config file.
var DefaultConfig = Config{
	Name:     "conciliumd",
	DataDir:  "./data",
	DBType:   "leveldb",
	PeerAddr: "0.0.0.0:30303",
	RPCAddr:  "0.0.0.0:8545",
	Version:  1,
}

// BootstrapTable converts the configured bootstrap entries into a
// bootstrap.Table, parsing each hex-encoded BLS public key (spec.md §6:
// "BOOTSTRAP_NODES is a compile-time list of (BLS public key, address)").
func (c Config) BootstrapTable() (bootstrap.Table, error) {
	entries := make([]bootstrap.Node, len(c.Bootstrap))
	for i, e := range c.Bootstrap {
		b, err := hex.DecodeString(e.PublicKey)
		if err != nil {
			return bootstrap.Table{}, err
		}
		var pub common.PubKey48
		if len(b) != len(pub) {
			return bootstrap.Table{}, errors.New("node: bootstrap public key must be 48 bytes")
		}
		copy(pub[:], b)
		entries[i] = bootstrap.Node{PublicKey: pub, Addr: e.Addr}
	}
	return bootstrap.Table{Entries: entries}, nil
}

// LoadConfig reads and decodes a TOML file into cfg, matching the
// teacher's loadConfig error-annotation behavior.
func LoadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		return fmt.Errorf("%s, %w", file, err)
	}
	return err
}

// PrivateKeyBytes decodes the hex-encoded BLS private key seed.
func (c Config) PrivateKeyBytes() (common.PrivKey32, error) {
	var out common.PrivKey32
	b, err := hex.DecodeString(c.PrivateKey)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, errors.New("node: private key must be 32 bytes")
	}
	copy(out[:], b)
	return out, nil
}
