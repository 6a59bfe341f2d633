package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bindery/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bindery daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if client, err := ctx.dialClient(); err == nil {
				client.Close()
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")
			if err := launchDaemon(exe, ctx); err != nil {
				return err
			}
			if err := waitForSocket(ctx, 10*time.Second); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the bindery daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				_, err := client.Stop()
				return err
			})
			if err != nil {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and engine status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(os.Stdout)

				daemonKind := statusError
				if status.Running {
					daemonKind = statusOK
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", daemonKind, fmt.Sprintf("pid %d", status.PID), colorize))

				engineKind := statusError
				engineDetail := "not reachable"
				if status.EngineRunning {
					engineKind = statusOK
					engineDetail = status.EngineVersion
				}
				fmt.Fprintln(stdout, renderStatusLine("Engine", engineKind, engineDetail, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Jobs", statusInfo,
					fmt.Sprintf("%d tracked, %d running", status.TotalJobs, status.RunningJobs), colorize))
				if status.LastError != "" {
					fmt.Fprintln(stdout, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
				}

				for _, check := range status.Checks {
					kind := statusError
					if check.Passed {
						kind = statusOK
					}
					fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
				}

				fmt.Fprintln(stdout, renderStatusLine("History DB", statusInfo, status.HistoryDBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

// daemonExecutable finds binderyd, preferring a sibling of the current binary.
func daemonExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "binderyd")
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath("binderyd")
	if err != nil {
		return "", fmt.Errorf("binderyd executable not found: %w", err)
	}
	return path, nil
}

func launchDaemon(exe string, ctx *commandContext) error {
	cmd := exec.Command(exe)
	if ctx.configFlag != nil && *ctx.configFlag != "" {
		cmd.Args = append(cmd.Args, "--config", *ctx.configFlag)
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return cmd.Process.Release()
}

func waitForSocket(ctx *commandContext, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client, err := ctx.dialClient(); err == nil {
			client.Close()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not come up within %s", timeout)
}
