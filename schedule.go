package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

// cronMarker tags the crontab line devsync manages, so install and remove
// only ever touch their own entry.
const cronMarker = "# devsync scheduled backup"

var scheduleCmd = &cobra.Command{
	Use:               "schedule",
	Short:             "Manage the crontab entry for periodic backups",
	PersistentPreRunE: refuseRoot,
}

var scheduleInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install (or replace) the scheduled backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		expr, _ := cmd.Flags().GetString("cron")
		if expr != "@reboot" {
			if _, err := cron.ParseStandard(expr); err != nil {
				return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
			}
		}

		job, err := scheduledJob(cmd, expr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		current, err := currentCrontab(ctx)
		if err != nil {
			return err
		}
		kept, _ := stripScheduled(current)

		if err := writeCrontab(ctx, kept+job+"\n"); err != nil {
			return err
		}
		fmt.Printf("scheduled backup installed: %s\n", expr)
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the scheduled backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		current, err := currentCrontab(ctx)
		if err != nil {
			return err
		}

		kept, removed := stripScheduled(current)
		if !removed {
			fmt.Println("no scheduled backup installed")
			return nil
		}
		if err := writeCrontab(ctx, kept); err != nil {
			return err
		}
		fmt.Println("scheduled backup removed")
		return nil
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a scheduled backup is installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := currentCrontab(cmd.Context())
		if err != nil {
			return err
		}
		for _, line := range strings.Split(current, "\n") {
			if strings.Contains(line, cronMarker) {
				fmt.Printf("scheduled backup installed:\n%s\n", line)
				return nil
			}
		}
		fmt.Println("no scheduled backup installed")
		return nil
	},
}

func init() {
	scheduleInstallCmd.Flags().String("cron", "@daily", "cron schedule expression")

	scheduleCmd.AddCommand(scheduleInstallCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// scheduledJob builds the crontab line for this binary.
func scheduledJob(cmd *cobra.Command, expr string) (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}
	execPath, err = filepath.Abs(execPath)
	if err != nil {
		return "", err
	}

	// Paths are quoted: crontab hands the line to sh, and home directories
	// with spaces are common enough on macOS.
	job := fmt.Sprintf("%s %q backup --quiet", expr, execPath)
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		job += fmt.Sprintf(" --config %q", configPath)
	}
	return job + " " + cronMarker, nil
}

// currentCrontab returns the user's crontab. A missing crontab (crontab -l
// exits 1) is treated as empty.
func currentCrontab(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "crontab", "-l")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("listing crontab: %w", err)
	}
	return out.String(), nil
}

func writeCrontab(ctx context.Context, content string) error {
	cmd := exec.CommandContext(ctx, "crontab", "-")
	cmd.Stdin = bytes.NewBufferString(content)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("updating crontab: %w", err)
	}
	return nil
}

// stripScheduled removes devsync's own entry from a crontab, reporting
// whether one was present.
func stripScheduled(crontab string) (string, bool) {
	if crontab == "" {
		return "", false
	}

	var kept []string
	removed := false
	for line := range strings.Lines(crontab) {
		if strings.Contains(line, cronMarker) {
			removed = true
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "")
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, removed
}
