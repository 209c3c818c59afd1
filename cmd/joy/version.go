package main

import (
	"fmt"
	"runtime/debug"

	cmtversion "github.com/cometbft/cometbft/version"
	"github.com/spf13/cobra"
)

// AppVersion is reported by joy; set commit with
// -ldflags "-X main.commit=$(git rev-parse HEAD)".
const AppVersion = "0.1.0"

var commit string

// buildCommit falls back to the vcs revision stamped by the go toolchain.
func buildCommit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

func versionString() string {
	v := AppVersion
	if c := buildCommit(); len(c) >= 8 {
		v += "-" + c[:8]
	}
	return v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the joy, CometBFT and ABCI versions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("joy %s\ncometbft %s\nabci %s\n", versionString(), cmtversion.TMCoreSemVer, cmtversion.ABCISemVer)
	},
}
