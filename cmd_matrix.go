package main

import (
	"github.com/spf13/cobra"

	"github.com/matrixci/matrixci/pkg/cliutil"
)

var argparserMatrix = &cobra.Command{
	Use:   "matrix {[flags]|SUBCOMMAND...}",
	Short: "Inspect the expanded job matrix",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

func init() {
	argparser.AddCommand(argparserMatrix)
}
