package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:           "searchbrief",
		Short:         "AI search backend: provider fan-out, streamed summaries and sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCMD(), migrateCMD(), askCMD(), tokenCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
