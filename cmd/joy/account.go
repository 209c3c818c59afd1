package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type accountArguments struct {
	Url     string
	Address string
	Index   uint64
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show an account by index or address",
	Args:  cobra.NoArgs,
	RunE:  accountRun,
}

func init() {
	urlFlag(accountCmd, &accountArgs.Url)
	accountCmd.Flags().StringVarP(&accountArgs.Address, "address", "a", "", "account address")
	accountCmd.Flags().Uint64VarP(&accountArgs.Index, "index", "i", 0, "account index")
}

func accountRun(cmd *cobra.Command, args []string) error {
	cli, err := newClient(accountArgs.Url)
	if err != nil {
		return err
	}
	act, err := queryAccount(cmd.Context(), cli, accountArgs.Index, accountArgs.Address)
	if err != nil {
		return err
	}
	fmt.Printf("index:%v nonce:%v roles:%v addr:%v pk:%x\n",
		act.Index, act.Nonce, act.Roles, act.Address(), act.PubKey)
	return nil
}
