package main

import (
	"encoding/hex"
	"fmt"

	"gopkg.in/urfave/cli.v1"

	"github.com/concilium-labs/conciliumd/blscrypto"
)

// genBLSKeyCommand prints a fresh BLS12-381 private key seed and its
// public key, the role cmd/utils/nodecmd/gennodekeycmd.go plays for the
// teacher's p2p node key.
var genBLSKeyCommand = cli.Command{
	Action:      genBLSKey,
	Name:        "genblskey",
	Usage:       "Generate a new BLS12-381 node key and print it",
	ArgsUsage:   " ",
	Description: "Generates a BLS12-381 private key seed suitable for the -blskey flag and prints the corresponding public key.",
}

func genBLSKey(ctx *cli.Context) error {
	key, err := blscrypto.GenerateKey()
	if err != nil {
		return err
	}
	pub, err := key.Public()
	if err != nil {
		return err
	}
	seed := key.Bytes()
	fmt.Printf("privatekey: %s\n", hex.EncodeToString(seed[:]))
	fmt.Printf("publickey:  %s\n", hex.EncodeToString(pub[:]))
	return nil
}
