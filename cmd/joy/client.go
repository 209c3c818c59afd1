package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/mnaamani/joystream/app"
	"github.com/mnaamani/joystream/crypto"
	"github.com/mnaamani/joystream/state"
	"github.com/mnaamani/joystream/tx"
	"github.com/spf13/cobra"
)

// txArguments are the flags shared by every command that sends a
// governance transaction.
type txArguments struct {
	Url    string
	Index  uint64
	Nonce  uint64
	Skey   string
	NoSend bool
}

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	skeyFlag(cmd, &args.Skey)
	cmd.Flags().Uint64VarP(&args.Index, "index", "i", 0, "sender account index")
	cmd.Flags().Uint64VarP(&args.Nonce, "nonce", "n", 0, "sender nonce, queried from the node when unset")
	cmd.Flags().BoolVar(&args.NoSend, "nosend", false, "print the signed transaction instead of sending it")
}

func newClient(url string) (*http.HTTP, error) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return cli, nil
}

func abciQuery(ctx context.Context, cli *http.HTTP, path string, data []byte, v any) error {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return err
	}
	switch res.Response.Code {
	case 0:
	case app.CodeQueryNotFound:
		return fmt.Errorf("%s: not found", path)
	default:
		return fmt.Errorf("%s: code %d %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, v)
}

func queryAccount(ctx context.Context, cli *http.HTTP, index uint64, address string) (*state.Account, error) {
	var dat []byte
	if len(address) > 0 {
		var err error
		if dat, err = hex.DecodeString(address); err != nil {
			return nil, fmt.Errorf("invalid address %v: %w", address, err)
		}
	} else {
		dat = app.EncodeIndex(index)
	}
	var act state.Account
	if err := abciQuery(ctx, cli, "/accounts/", dat, &act); err != nil {
		return nil, err
	}
	return &act, nil
}

// sendGovTx signs body as the sender account and broadcasts it.
func sendGovTx(cmd *cobra.Command, args *txArguments, tp tx.GovTxType, body any) error {
	ctx := cmd.Context()
	cli, err := newClient(args.Url)
	if err != nil {
		return err
	}
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis: %w", err)
	}
	nonce := args.Nonce
	if !cmd.Flags().Changed("nonce") {
		act, err := queryAccount(ctx, cli, args.Index, "")
		if err != nil {
			return err
		}
		nonce = act.Nonce
	}
	pv, err := crypto.LoadFilePV(args.Skey)
	if err != nil {
		return err
	}

	btx := tx.NewGovTx(tp, args.Index, nonce, body)
	if err = pv.SignGovTx(btx, gres.Genesis.ChainID); err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.MarshalGovTx(btx)
	if err != nil {
		return err
	}
	if args.NoSend {
		fmt.Println(string(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	out, _ := json.Marshal(res)
	fmt.Println(string(out))
	if res.Code != 0 {
		return fmt.Errorf("tx rejected: code %d %s", res.Code, res.Log)
	}
	return nil
}
