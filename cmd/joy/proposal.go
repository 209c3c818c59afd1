package main

import (
	"strconv"
	"strings"

	"github.com/mnaamani/joystream/codex"
	"github.com/mnaamani/joystream/engine"
	"github.com/mnaamani/joystream/tx"
	"github.com/mnaamani/joystream/types"
	"github.com/spf13/cobra"
)

type proposeArguments struct {
	txArguments
	Title        string
	Body         string
	VotingPeriod uint64
	Quorum       string
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Create a proposal",
}

var proposeTextCmd = &cobra.Command{
	Use:   "text <text>",
	Short: "Propose a signal-only text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := codex.NewTextProposal(proposeArgs.Title, proposeArgs.Body, args[0])
		return sendProposal(cmd, req)
	},
}

type paramsArguments struct {
	TitleMaxLen         uint64
	BodyMaxLen          uint64
	DefaultVotingPeriod uint64
	DefaultQuorum       string
	RejectWhenAllVoted  bool
}

var paramsArgs paramsArguments

var proposeParamsCmd = &cobra.Command{
	Use:   "update-params",
	Short: "Propose new governance parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := types.ParseQuorumRule(paramsArgs.DefaultQuorum)
		if err != nil {
			return err
		}
		p := &types.GovParams{
			TitleMaxLen:         paramsArgs.TitleMaxLen,
			BodyMaxLen:          paramsArgs.BodyMaxLen,
			DefaultVotingPeriod: paramsArgs.DefaultVotingPeriod,
			DefaultQuorum:       q,
			RejectWhenAllVoted:  paramsArgs.RejectWhenAllVoted,
		}
		if err = p.Validate(); err != nil {
			return err
		}
		return sendProposal(cmd, codex.NewUpdateParamsProposal(proposeArgs.Title, proposeArgs.Body, types.Parameters{}, p))
	},
}

var proposeRolesCmd = &cobra.Command{
	Use:   "set-roles <account> <role>[,<role>...]",
	Short: "Propose a new role set for an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		roles, err := parseRoles(args[1], ",")
		if err != nil {
			return err
		}
		s := &codex.SetRoles{Account: account, Roles: roles}
		return sendProposal(cmd, codex.NewSetRolesProposal(proposeArgs.Title, proposeArgs.Body, types.Parameters{}, s))
	},
}

func init() {
	f := proposeCmd.PersistentFlags()
	f.StringVarP(&proposeArgs.Title, "title", "t", "", "proposal title")
	f.StringVarP(&proposeArgs.Body, "body", "b", "", "proposal body")
	f.Uint64Var(&proposeArgs.VotingPeriod, "voting-period", 0, "voting period in blocks, 0 for the default")
	f.StringVar(&proposeArgs.Quorum, "quorum", "", `quorum as "N" approvals or "N%" of voters, empty for the default`)
	for _, c := range []*cobra.Command{proposeTextCmd, proposeParamsCmd, proposeRolesCmd} {
		txFlags(c, &proposeArgs.txArguments)
		proposeCmd.AddCommand(c)
	}

	d := types.DefaultGovParams()
	pf := proposeParamsCmd.Flags()
	pf.Uint64Var(&paramsArgs.TitleMaxLen, "title-max-len", d.TitleMaxLen, "maximum title length in bytes")
	pf.Uint64Var(&paramsArgs.BodyMaxLen, "body-max-len", d.BodyMaxLen, "maximum body length in bytes")
	pf.Uint64Var(&paramsArgs.DefaultVotingPeriod, "default-voting-period", d.DefaultVotingPeriod, "default voting period in blocks")
	pf.StringVar(&paramsArgs.DefaultQuorum, "default-quorum", d.DefaultQuorum.String(), "default quorum")
	pf.BoolVar(&paramsArgs.RejectWhenAllVoted, "reject-when-all-voted", d.RejectWhenAllVoted, "reject once every voter voted without quorum")
}

func parseRoles(s, sep string) (types.Role, error) {
	var roles types.Role
	for _, name := range strings.Split(s, sep) {
		r, err := types.ParseRole(name)
		if err != nil {
			return 0, err
		}
		roles |= r
	}
	return roles, nil
}

// sendProposal applies the command-line voting rules, which override the
// presets of req.
func sendProposal(cmd *cobra.Command, req *engine.CreateRequest) error {
	if cmd.Flags().Changed("voting-period") {
		req.Parameters.VotingPeriod = proposeArgs.VotingPeriod
	}
	if proposeArgs.Quorum != "" {
		q, err := types.ParseQuorumRule(proposeArgs.Quorum)
		if err != nil {
			return err
		}
		req.Parameters.Quorum = q
	}
	return sendGovTx(cmd, &proposeArgs.txArguments, tx.GovTxTypeCreateProposal, &tx.CreateProposalTx{
		Parameters:  req.Parameters,
		Title:       req.Title,
		Body:        req.Body,
		PayloadType: req.PayloadType,
		Payload:     req.Payload,
	})
}

type proposalTxArguments struct {
	txArguments
	Proposal uint64
}

func proposalTxCmd(use, short string, args *proposalTxArguments, run func(cmd *cobra.Command, rest []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE:  run,
	}
	txFlags(cmd, &args.txArguments)
	cmd.Flags().Uint64VarP(&args.Proposal, "proposal", "p", 0, "proposal id")
	cmd.MarkFlagRequired("proposal")
	return cmd
}

var (
	voteArgs   proposalTxArguments
	cancelArgs proposalTxArguments
	vetoArgs   proposalTxArguments
)

var voteCmd = proposalTxCmd("vote <approve|reject|abstain>", "Vote on an active proposal", &voteArgs,
	func(cmd *cobra.Command, args []string) error {
		kind, err := types.ParseVoteKind(args[0])
		if err != nil {
			return err
		}
		return sendGovTx(cmd, &voteArgs.txArguments, tx.GovTxTypeVote, &tx.VoteTx{Proposal: voteArgs.Proposal, Kind: kind})
	})

var cancelCmd = proposalTxCmd("cancel", "Cancel one of your active proposals", &cancelArgs,
	func(cmd *cobra.Command, args []string) error {
		return sendGovTx(cmd, &cancelArgs.txArguments, tx.GovTxTypeCancelProposal, &tx.CancelProposalTx{Proposal: cancelArgs.Proposal})
	})

var vetoCmd = proposalTxCmd("veto", "Veto an active proposal", &vetoArgs,
	func(cmd *cobra.Command, args []string) error {
		return sendGovTx(cmd, &vetoArgs.txArguments, tx.GovTxTypeVetoProposal, &tx.VetoProposalTx{Proposal: vetoArgs.Proposal})
	})

func init() {
	voteCmd.Args = cobra.ExactArgs(1)
	cancelCmd.Args = cobra.NoArgs
	vetoCmd.Args = cobra.NoArgs
}
