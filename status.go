package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/xxwfufu/devsync/internal/archive"
	"github.com/xxwfufu/devsync/internal/collector"
	"github.com/xxwfufu/devsync/internal/manifest"
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the latest sync package covers and what has drifted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadSyncConfig(cmd)
		if err != nil {
			return err
		}
		return status(cfg.BackupDir)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func status(backupDir string) error {
	pkgs, err := listPackages(backupDir)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		fmt.Printf("no sync packages in %s yet, run `devsync backup` first\n", backupDir)
		return nil
	}

	latest := pkgs[0]
	fmt.Printf("latest package: %s (created %s, %d total)\n\n",
		latest.path, latest.createdAt.Format(time.DateTime), len(pkgs))

	if archive.IsEncrypted(latest.path) && os.Getenv("DEVSYNC_PASSWORD") == "" {
		fmt.Println(dimStyle.Render("latest package is encrypted; set DEVSYNC_PASSWORD to inspect its contents"))
		return nil
	}

	pkg, err := archive.Open(latest.path, os.Getenv("DEVSYNC_PASSWORD"))
	if err != nil {
		return err
	}
	defer pkg.Close()

	var m manifest.Manifest
	if err := pkg.DecodeYAML(archive.ManifestName, &m); err != nil {
		return fmt.Errorf("reading %s: %w", archive.ManifestName, err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	counts := m.ToolCounts()
	drift := driftByTool(m.Diff(home))

	reg := collector.Registry(collector.Options{Home: home, GOOS: runtime.GOOS})
	for _, name := range collector.Order {
		describe := reg[name].Describe()
		n := counts[name]
		if n == 0 {
			fmt.Printf("%s %s: not collected\n", missingStyle.Render("✗"), describe)
			continue
		}

		line := fmt.Sprintf("%s %s: %d entries", okStyle.Render("✓"), describe, n)
		if d := drift[name]; d.modified > 0 || d.missing > 0 {
			var parts []string
			if d.modified > 0 {
				parts = append(parts, fmt.Sprintf("%d modified", d.modified))
			}
			if d.missing > 0 {
				parts = append(parts, fmt.Sprintf("%d missing", d.missing))
			}
			line += " " + warnStyle.Render("("+strings.Join(parts, ", ")+")")
		}
		fmt.Println(line)
	}

	planned := make([]string, 0, len(collector.Planned))
	for name := range collector.Planned {
		planned = append(planned, name)
	}
	sort.Strings(planned)
	for _, name := range planned {
		fmt.Printf("%s %s: not supported yet\n", dimStyle.Render("-"), collector.Planned[name])
	}

	var meta manifest.Metadata
	if err := pkg.DecodeYAML(archive.MetadataName, &meta); err != nil {
		log.Printf("package has no readable metadata: %v", err)
		return nil
	}
	fmt.Printf("\ncreated on %s (%s/%s) by devsync %s\n", meta.Hostname, meta.OS, meta.Arch, meta.Version)
	return nil
}

type driftCounts struct {
	modified int
	missing  int
}

func driftByTool(drifts []manifest.Drift) map[string]driftCounts {
	byTool := make(map[string]driftCounts)
	for _, d := range drifts {
		c := byTool[d.Entry.Tool]
		switch d.State {
		case manifest.StateModified:
			c.modified++
		case manifest.StateMissing:
			c.missing++
		}
		byTool[d.Entry.Tool] = c
	}
	return byTool
}
