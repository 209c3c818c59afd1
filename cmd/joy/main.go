package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pubkeyCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(vetoCmd)
	rootCmd.AddCommand(queryCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
