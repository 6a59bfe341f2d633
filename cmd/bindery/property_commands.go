package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/ipc"
)

func newPropertiesCommand(ctx *commandContext) *cobra.Command {
	propsCmd := &cobra.Command{
		Use:   "properties",
		Short: "Inspect and change engine properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropertyList(ctx, cmd)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List engine properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropertyList(ctx, cmd)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <name=value> [name=value...]",
		Short: "Set engine properties; TTS credential changes trigger reconnection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties := make([]ipc.PropertyInfo, 0, len(args))
			for _, arg := range args {
				name, value, found := strings.Cut(arg, "=")
				if !found || strings.TrimSpace(name) == "" {
					return fmt.Errorf("invalid name=value pair %q", arg)
				}
				properties = append(properties, ipc.PropertyInfo{Name: name, Value: value})
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PropertySet(properties)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Applied {
					fmt.Fprintf(stdout, "Property update incomplete: %s\n", resp.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Properties applied")
				return nil
			})
		},
	}

	propsCmd.AddCommand(listCmd, setCmd)
	return propsCmd
}

func runPropertyList(ctx *commandContext, cmd *cobra.Command) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.PropertyList()
		if err != nil {
			return err
		}
		stdout := cmd.OutOrStdout()
		if len(resp.Properties) == 0 {
			fmt.Fprintln(stdout, "No properties reported")
			return nil
		}
		rows := make([][]string, 0, len(resp.Properties))
		for _, p := range resp.Properties {
			rows = append(rows, []string{p.Name, maskSecret(p.Name, p.Value)})
		}
		fmt.Fprintln(stdout, renderTable(textColumns("Name", "Value"), rows))
		return nil
	})
}

// maskSecret hides credential values in listings.
func maskSecret(name, value string) string {
	if value == "" {
		return ""
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "key") || strings.Contains(lower, "secret") || strings.Contains(lower, "password") {
		return strings.Repeat("*", 8)
	}
	return value
}
