package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobList(ctx, cmd, false)
		},
	}

	var listHidden bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobList(ctx, cmd, listHidden)
		},
	}
	listCmd.Flags().BoolVar(&listHidden, "all", false, "Include closed jobs")

	showCmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with messages and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobShow(args[0])
				if err != nil {
					return err
				}
				printJobDetail(cmd, resp.Job)
				return nil
			})
		},
	}

	var submitScript, submitNicename, submitPriority, submitBatch string
	var submitInputs, submitOptions []string
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Create and submit a conversion job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(submitScript) == "" {
				return fmt.Errorf("--script is required")
			}
			inputs, err := parseKeyValues(submitInputs)
			if err != nil {
				return err
			}
			options, err := parseKeyValues(submitOptions)
			if err != nil {
				return err
			}

			req := ipc.JobSubmitRequest{
				ScriptHref: submitScript,
				Nicename:   submitNicename,
				Priority:   submitPriority,
				BatchID:    submitBatch,
				Inputs:     inputs,
				Options:    flattenValues(options),
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobSubmit(req)
				if err != nil {
					return err
				}
				job := resp.Job
				stdout := cmd.OutOrStdout()
				if job.Error != "" {
					fmt.Fprintf(stdout, "Job %s rejected: %s\n", job.InternalID, job.Error)
					return nil
				}
				fmt.Fprintf(stdout, "Job %s submitted (engine id %s)\n", job.InternalID, job.EngineJobID)
				return nil
			})
		},
	}
	submitCmd.Flags().StringVar(&submitScript, "script", "", "Script href to run")
	submitCmd.Flags().StringVar(&submitNicename, "nicename", "", "Human-readable job name")
	submitCmd.Flags().StringVar(&submitPriority, "priority", "", "Job priority (high, medium, low)")
	submitCmd.Flags().StringVar(&submitBatch, "batch", "", "Batch identifier to group jobs")
	submitCmd.Flags().StringArrayVar(&submitInputs, "input", nil, "Input as name=value; repeat for sequences")
	submitCmd.Flags().StringArrayVar(&submitOptions, "option", nil, "Option as name=value")

	cancelCmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Withdraw a job that was not yet submitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.JobCancel(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job cancelled")
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a finished job from the engine and the local list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.JobDelete(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job deleted")
				return nil
			})
		},
	}

	closeCmd := &cobra.Command{
		Use:   "close <job-id>",
		Short: "Dismiss a finished job from the visible list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.JobClose(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job closed")
				return nil
			})
		},
	}

	logCmd := &cobra.Command{
		Use:   "log <job-id>",
		Short: "Print a job's engine execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobLog(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Log)
				return nil
			})
		},
	}

	jobsCmd.AddCommand(listCmd, showCmd, submitCmd, cancelCmd, deleteCmd, closeCmd, logCmd)
	return jobsCmd
}

func runJobList(ctx *commandContext, cmd *cobra.Command, includeHidden bool) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.JobList(includeHidden)
		if err != nil {
			return err
		}
		stdout := cmd.OutOrStdout()
		if len(resp.Jobs) == 0 {
			fmt.Fprintln(stdout, "No jobs")
			return nil
		}
		rows := make([][]string, 0, len(resp.Jobs))
		for _, job := range resp.Jobs {
			status := job.Status
			if status == "" {
				status = job.State
			}
			rows = append(rows, []string{
				job.InternalID,
				job.Nicename,
				job.Script,
				status,
				fmt.Sprintf("%d%%", job.Progress),
				job.Error,
			})
		}
		cols := textColumns("ID", "Name", "Script", "Status", "Progress", "Error")
		cols[4].right = true
		cols[5].wide = true
		fmt.Fprintln(stdout, renderTable(cols, rows))
		return nil
	})
}

func printJobDetail(cmd *cobra.Command, job ipc.JobDetail) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Job:      %s\n", job.InternalID)
	fmt.Fprintf(stdout, "Name:     %s\n", job.Nicename)
	fmt.Fprintf(stdout, "Script:   %s\n", job.Script)
	fmt.Fprintf(stdout, "State:    %s\n", job.State)
	if job.Status != "" {
		fmt.Fprintf(stdout, "Status:   %s (%d%%)\n", job.Status, job.Progress)
	}
	if job.BatchID != "" {
		fmt.Fprintf(stdout, "Batch:    %s\n", job.BatchID)
	}
	if job.Error != "" {
		fmt.Fprintf(stdout, "Error:    %s\n", job.Error)
	}
	fmt.Fprintf(stdout, "Actions:  run=%s cancel=%s delete=%s close=%s\n",
		yesNo(job.CanRun), yesNo(job.CanCancel), yesNo(job.CanDelete), yesNo(job.CanClose))

	if len(job.Messages) > 0 {
		fmt.Fprintln(stdout, "\nMessages:")
		for _, msg := range job.Messages {
			fmt.Fprintf(stdout, "  [%s] %s\n", msg.Level, msg.Content)
		}
	}
	if len(job.Results) > 0 {
		fmt.Fprintln(stdout, "\nResults:")
		for _, file := range job.Results {
			fmt.Fprintf(stdout, "  %s  %s (%d bytes)\n", file.Name, file.Href, file.Size)
		}
	}
}

// parseKeyValues splits repeated name=value flags, collecting repeated names
// into value lists.
func parseKeyValues(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid name=value pair %q", pair)
		}
		out[name] = append(out[name], value)
	}
	return out, nil
}

// flattenValues keeps the last value per name, the shape options take.
func flattenValues(values map[string][]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for name, list := range values {
		out[name] = list[len(list)-1]
	}
	return out
}
