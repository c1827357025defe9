// SPDX-License-Identifier: GPL-3.0-or-later

// Command sockpipe exercises socket event pipelines from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sockpipe: %s\n", err.Error())
		os.Exit(1)
	}
}

// newRootCommand creates the sockpipe root command.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sockpipe",
		Short:         "Run socket event pipelines",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(newDNSCommand())
	return cmd
}
