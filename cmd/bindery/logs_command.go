package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: limit})
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(stdout, line)
				}
				if !follow {
					return nil
				}
				offset := resp.Offset
				for {
					resp, err := client.LogTail(ipc.LogTailRequest{
						Offset:     offset,
						Follow:     true,
						WaitMillis: 2000,
					})
					if err != nil {
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(stdout, line)
					}
					offset = resp.Offset
				}
			})
		},
	}
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	logsCmd.Flags().IntVar(&limit, "limit", 100, "Initial number of lines to show")
	return logsCmd
}
