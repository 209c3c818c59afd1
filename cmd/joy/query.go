package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mnaamani/joystream/app"
	"github.com/spf13/cobra"
)

var queryUrl string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query governance state from a node",
}

// queryPathCmd prints the JSON answer of an ABCI query path. When withId is
// set the single argument is a proposal id.
func queryPathCmd(use, short, path string, withId bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if withId {
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return err
				}
				data = app.EncodeIndex(id)
			}
			cli, err := newClient(queryUrl)
			if err != nil {
				return err
			}
			var v json.RawMessage
			if err = abciQuery(cmd.Context(), cli, path, data, &v); err != nil {
				return err
			}
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	if withId {
		cmd.Args = cobra.ExactArgs(1)
	}
	return cmd
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryUrl, "url", "u", defaultRPCUrl, "joy node rpc url")
	queryCmd.AddCommand(
		queryPathCmd("proposal <id>", "Show a proposal with its payload and tally", "/proposals/", true),
		queryPathCmd("votes <id>", "List the votes of a proposal", "/votes/", true),
		queryPathCmd("tally <id>", "Show the tally result of a finalized proposal", "/tally/", true),
		queryPathCmd("active", "List active proposal ids", "/active/", false),
		queryPathCmd("params", "Show the governance parameters", "/params/", false),
	)
}
