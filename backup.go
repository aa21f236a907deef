package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xxwfufu/devsync/internal/archive"
	"github.com/xxwfufu/devsync/internal/collector"
	"github.com/xxwfufu/devsync/internal/config"
	"github.com/xxwfufu/devsync/internal/manifest"
)

const workerCount = 4

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Collect configuration and write a sync package",
	PreRunE: refuseRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, rawCfg, err := loadSyncConfig(cmd)
		if err != nil {
			return err
		}

		opts := backupOptions{}
		opts.output, _ = cmd.Flags().GetString("output")
		opts.only, _ = cmd.Flags().GetStringSlice("only")
		opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.quiet, _ = cmd.Flags().GetBool("quiet")

		if encrypt, _ := cmd.Flags().GetBool("encrypt"); encrypt && !opts.dryRun {
			opts.password, err = readPassword(true)
			if err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		if !opts.dryRun {
			if err := runHook(ctx, "before_backup", cfg.BeforeBackup); err != nil {
				return err
			}
		}

		if _, err := backup(ctx, cfg, rawCfg, opts); err != nil {
			return err
		}

		if !opts.dryRun {
			if err := runHook(ctx, "after_backup", cfg.AfterBackup); err != nil {
				return err
			}
			if err := prunePackages(cfg.BackupDir, cfg.MaxPackages); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringP("output", "o", "", "package output path (default <backup_dir>/devsync_<timestamp>.zip)")
	backupCmd.Flags().StringSlice("only", nil, "collect only the listed tools")
	backupCmd.Flags().Bool("dry-run", false, "report what would be collected without writing a package")
	backupCmd.Flags().Bool("encrypt", false, "seal the package with a password")

	rootCmd.AddCommand(backupCmd)
}

type backupOptions struct {
	output   string
	only     []string
	dryRun   bool
	password string
	quiet    bool
}

// backup runs the enabled collectors and writes their entries into a sync
// package. It returns the path of the written package.
func backup(ctx context.Context, cfg *config.Config, rawCfg []byte, opts backupOptions) (string, error) {
	cols, err := selectCollectors(cfg, opts.only)
	if err != nil {
		return "", err
	}

	var entries []collector.Entry
	for _, c := range cols {
		es, err := c.Collect(ctx)
		if err != nil {
			return "", fmt.Errorf("collecting %s: %w", c.Name(), err)
		}
		entries = append(entries, es...)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("nothing to back up: no tracked files found")
	}

	log.Printf("%d entries to back up", len(entries))

	if opts.dryRun {
		for _, e := range entries {
			if e.SourcePath != "" {
				fmt.Printf("would archive %s (from %s)\n", archive.EntryPath(e.Tool, e.Rel), e.SourcePath)
			} else {
				fmt.Printf("would archive %s (captured)\n", archive.EntryPath(e.Tool, e.Rel))
			}
		}
		return "", nil
	}

	outputPath := opts.output
	if outputPath == "" {
		if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
			return "", fmt.Errorf("creating backup directory: %w", err)
		}
		outputPath = filepath.Join(cfg.BackupDir, defaultPackageName())
	}

	// Encrypted output is written as a plain zip to a temp file first, then
	// sealed in one pass.
	writePath := outputPath
	if opts.password != "" {
		if !strings.HasSuffix(outputPath, archive.EncSuffix) {
			outputPath += archive.EncSuffix
		}
		tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".devsync-*.zip")
		if err != nil {
			return "", fmt.Errorf("creating temp package: %w", err)
		}
		tmp.Close()
		writePath = tmp.Name()
		defer os.Remove(writePath)
	}

	m, skipped, err := writePackage(writePath, rawCfg, entries, opts.quiet)
	if err != nil {
		return "", err
	}

	if opts.password != "" {
		plain, err := os.ReadFile(writePath)
		if err != nil {
			return "", err
		}
		sealed, err := archive.Encrypt(plain, opts.password)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(outputPath, sealed, 0o600); err != nil {
			return "", fmt.Errorf("writing encrypted package: %w", err)
		}
	}

	fmt.Printf("\nbackup complete: %s (%d entries)\n", outputPath, len(m.Entries))
	if skipped > 0 {
		fmt.Printf("skipped entries: %d\n", skipped)
	}
	return outputPath, nil
}

// writePackage streams the entries into a zip at path using a small worker
// pool. The zip writer is shared; archive.Writer serializes access to it.
func writePackage(path string, rawCfg []byte, entries []collector.Entry, quiet bool) (*manifest.Manifest, int64, error) {
	outFile, err := os.Create(path)
	if err != nil {
		return nil, 0, fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	w := archive.NewWriter(outFile)

	// Config snapshot first, so a truncated package is still identifiable.
	if err := w.WriteEntry(archive.ConfigName, rawCfg, 0o644); err != nil {
		return nil, 0, err
	}

	bar := newProgressBar(int64(len(entries)), "backing up", quiet)

	var (
		mu      sync.Mutex
		m       manifest.Manifest
		skipped int64
	)

	tasks := make(chan collector.Entry, 1000)
	var wg sync.WaitGroup
	for range workerCount {
		wg.Go(func() {
			for e := range tasks {
				me, err := archiveEntry(w, e)
				if err != nil {
					log.Printf("archiving failed: %s: %v", e.SourcePath, err)
					atomic.AddInt64(&skipped, 1)
					continue
				}
				mu.Lock()
				m.Entries = append(m.Entries, me)
				mu.Unlock()
				bar.Add(1)
			}
		})
	}

	for _, e := range entries {
		tasks <- e
	}
	close(tasks)
	wg.Wait()

	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Path < m.Entries[j].Path })

	manifestBytes, err := yaml.Marshal(&m)
	if err != nil {
		return nil, 0, err
	}
	if err := w.WriteEntry(archive.ManifestName, manifestBytes, 0o644); err != nil {
		return nil, 0, err
	}

	meta := manifest.NewMetadata(buildVersion(), m.ToolCounts())
	metaBytes, err := yaml.Marshal(meta)
	if err != nil {
		return nil, 0, err
	}
	if err := w.WriteEntry(archive.MetadataName, metaBytes, 0o644); err != nil {
		return nil, 0, err
	}

	if err := w.Close(); err != nil {
		return nil, 0, err
	}
	if err := outFile.Close(); err != nil {
		return nil, 0, err
	}
	return &m, skipped, nil
}

func archiveEntry(w *archive.Writer, e collector.Entry) (manifest.Entry, error) {
	name := archive.EntryPath(e.Tool, e.Rel)
	me := manifest.Entry{
		Path:   name,
		Origin: e.Origin,
		Tool:   e.Tool,
		Mode:   uint32(e.Mode),
	}

	data := e.Content
	if e.SourcePath != "" {
		var err error
		data, err = os.ReadFile(e.SourcePath)
		if err != nil {
			return manifest.Entry{}, err
		}
	}

	me.SHA256 = manifest.HashBytes(data)
	me.Size = int64(len(data))
	return me, w.WriteEntry(name, data, e.Mode)
}
