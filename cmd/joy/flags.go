package main

import "github.com/spf13/cobra"

const defaultRPCUrl = "http://127.0.0.1:26657"

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
	FlagAccounts  = "account"
)

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", defaultRPCUrl, "joy node rpc url")
}

func skeyFlag(cmd *cobra.Command, skey *string) {
	cmd.Flags().StringVarP(skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
}
