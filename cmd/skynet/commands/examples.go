package commands

import (
	"fmt"

	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/spf13/cobra"
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "List example equations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, eq := range balancer.Examples {
			fmt.Fprintln(cmd.OutOrStdout(), eq)
		}
	},
}

func init() {
	rootCmd.AddCommand(examplesCmd)
}
