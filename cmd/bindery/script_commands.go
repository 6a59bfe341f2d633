package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/ipc"
)

func newScriptsCommand(ctx *commandContext) *cobra.Command {
	scriptsCmd := &cobra.Command{
		Use:   "scripts",
		Short: "List available conversion scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScriptList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Scripts) == 0 {
					fmt.Fprintln(stdout, "No scripts available; is the engine running?")
					return nil
				}
				rows := make([][]string, 0, len(resp.Scripts))
				for _, script := range resp.Scripts {
					rows = append(rows, []string{script.ID, script.Nicename, script.Version, script.Description})
				}
				cols := textColumns("ID", "Name", "Version", "Description")
				cols[3].wide = true
				fmt.Fprintln(stdout, renderTable(cols, rows))
				return nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <script-id>",
		Short: "Show a script's inputs and options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScriptShow(args[0])
				if err != nil {
					return err
				}
				printScriptDetail(cmd, resp.Script)
				return nil
			})
		},
	}

	scriptsCmd.AddCommand(showCmd)
	return scriptsCmd
}

func printScriptDetail(cmd *cobra.Command, script ipc.ScriptDetail) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "%s (%s)\n", script.Nicename, script.ID)
	if script.Version != "" {
		fmt.Fprintf(stdout, "Version: %s\n", script.Version)
	}
	if script.Description != "" {
		fmt.Fprintf(stdout, "%s\n", script.Description)
	}

	if len(script.Inputs) > 0 {
		fmt.Fprintln(stdout, "\nInputs:")
		rows := make([][]string, 0, len(script.Inputs))
		for _, input := range script.Inputs {
			rows = append(rows, []string{
				input.Name,
				requirementLabel(input.Required, input.Sequence),
				input.MediaType,
				input.Nicename,
			})
		}
		fmt.Fprintln(stdout, renderTable(
			textColumns("Port", "Required", "Media type", "Name"), rows))
	}

	if len(script.Options) > 0 {
		fmt.Fprintln(stdout, "\nOptions:")
		rows := make([][]string, 0, len(script.Options))
		for _, opt := range script.Options {
			value := opt.Type
			if len(opt.Choices) > 0 {
				value = strings.Join(opt.Choices, " | ")
			}
			rows = append(rows, []string{
				opt.Name,
				requirementLabel(opt.Required, opt.Sequence),
				value,
				opt.Default,
				opt.Nicename,
			})
		}
		cols := textColumns("Option", "Required", "Type", "Default", "Name")
		cols[2].wide = true
		fmt.Fprintln(stdout, renderTable(cols, rows))
	}
}

func requirementLabel(required, sequence bool) string {
	label := "no"
	if required {
		label = "yes"
	}
	if sequence {
		label += " (list)"
	}
	return label
}
