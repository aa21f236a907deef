package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xxwfufu/devsync/internal/archive"
	"github.com/xxwfufu/devsync/internal/config"
)

// hookTypes are the hooks a sync config may define, named exactly like
// their config keys. Before/after restore hooks are how a config quiesces
// whatever owns the files being replaced.
var hookTypes = []string{"before_backup", "after_backup", "before_restore", "after_restore"}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Run a configured hook by itself",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := refuseRoot(cmd, args); err != nil {
			return err
		}
		hookType, _ := cmd.Flags().GetString("type")
		for _, t := range hookTypes {
			if hookType == t {
				return nil
			}
		}
		return fmt.Errorf("type must be one of: %s", strings.Join(hookTypes, ", "))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		hookType, _ := cmd.Flags().GetString("type")
		inputPath, _ := cmd.Flags().GetString("input")

		var cfg *config.Config
		if inputPath != "" {
			pkgCfg, err := packageConfig(inputPath)
			if err != nil {
				return err
			}
			cfg = pkgCfg
		} else {
			var err error
			cfg, _, err = loadSyncConfig(cmd)
			if err != nil {
				return err
			}
		}

		script, err := hookScript(cfg, hookType)
		if err != nil {
			return err
		}
		if script == "" {
			log.Printf("no %s hook configured", hookType)
			return nil
		}
		return runHook(cmd.Context(), hookType, script)
	},
}

func init() {
	hookCmd.Flags().StringP("type", "t", "", fmt.Sprintf("hook type (%s)", strings.Join(hookTypes, "|")))
	hookCmd.Flags().StringP("input", "i", "", "read hooks from this sync package instead of the config file")
	hookCmd.MarkFlagRequired("type")

	rootCmd.AddCommand(hookCmd)
}

// runHook executes a shell hook. An empty script is a no-op.
func runHook(ctx context.Context, name, script string) error {
	if script == "" {
		return nil
	}

	out, err := runCommand(ctx, "sh", "-c", script)
	if err != nil {
		return fmt.Errorf("%s hook failed: %w", name, err)
	}
	if strings.TrimSpace(out) != "" {
		log.Printf("%s hook output:\n%s", name, out)
	}
	return nil
}

func hookScript(cfg *config.Config, hookType string) (string, error) {
	switch hookType {
	case "before_backup":
		return cfg.BeforeBackup, nil
	case "after_backup":
		return cfg.AfterBackup, nil
	case "before_restore":
		return cfg.BeforeRestore, nil
	case "after_restore":
		return cfg.AfterRestore, nil
	}
	return "", fmt.Errorf("unknown hook type %q", hookType)
}

// packageConfig reads the config snapshot embedded in a sync package.
func packageConfig(pkgPath string) (*config.Config, error) {
	password := ""
	if archive.IsEncrypted(pkgPath) {
		password = os.Getenv("DEVSYNC_PASSWORD")
		if password == "" {
			var err error
			password, err = readPassword(false)
			if err != nil {
				return nil, err
			}
		}
	}

	pkg, err := archive.Open(pkgPath, password)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	var cfg config.Config
	if err := pkg.DecodeYAML(archive.ConfigName, &cfg); err != nil {
		return nil, fmt.Errorf("reading config from package: %w", err)
	}
	return &cfg, nil
}
