package main

import (
	"encoding/hex"
	"fmt"

	"github.com/mnaamani/joystream/crypto"
	"github.com/spf13/cobra"
)

var pubkeySkey string

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the public key and address of a private validator key",
	RunE: func(cmd *cobra.Command, args []string) error {
		pv, err := crypto.LoadFilePV(pubkeySkey)
		if err != nil {
			return err
		}
		fmt.Println("pubkey:", hex.EncodeToString(pv.PublicKey()))
		fmt.Println("address:", pv.Address())
		return nil
	},
}

func init() {
	skeyFlag(pubkeyCmd, &pubkeySkey)
}
