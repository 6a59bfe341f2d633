package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past job submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryList(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "No history")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						entry.SubmittedAt,
						entry.Nicename,
						entry.ScriptID,
						entry.Status,
						entry.Error,
					})
				}
				cols := textColumns("Submitted", "Name", "Script", "Status", "Error")
				cols[4].wide = true
				fmt.Fprintln(stdout, renderTable(cols, rows))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")
	return historyCmd
}
