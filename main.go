package main

import (
	"log"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "devsync",
	Short: "Sync development environment configuration across machines",
	Long: `devsync collects editor settings, git configuration, SSH config and
public keys, package manager inventories, and shell dotfiles into a
portable sync package, and restores such a package on another machine.`,
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rootCmd.Version = buildVersion()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "sync config path (default ~/.devsync/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "unknown"
}
