package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification via the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Sent {
					fmt.Fprintln(stdout, "Test notification sent")
				} else {
					fmt.Fprintln(stdout, resp.Message)
				}
				return nil
			})
		},
	}
}
