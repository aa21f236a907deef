package main

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xxwfufu/devsync/internal/archive"
	"github.com/xxwfufu/devsync/internal/collector"
	"github.com/xxwfufu/devsync/internal/config"
	"github.com/xxwfufu/devsync/internal/manifest"
)

var restoreCmd = &cobra.Command{
	Use:     "restore",
	Short:   "Restore configuration from a sync package",
	PreRunE: refuseRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := restoreOptions{}
		var err error
		opts.pkgPath, err = cmd.Flags().GetString("input")
		if err != nil {
			return err
		}
		if opts.pkgPath == "" {
			return fmt.Errorf("package path must not be empty")
		}
		opts.targetDir, _ = cmd.Flags().GetString("target")
		opts.only, _ = cmd.Flags().GetStringSlice("only")
		opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.skipExtensions, _ = cmd.Flags().GetBool("skip-extensions")
		opts.quiet, _ = cmd.Flags().GetBool("quiet")

		if archive.IsEncrypted(opts.pkgPath) {
			opts.password, err = readPassword(false)
			if err != nil {
				return err
			}
		}

		return restore(cmd.Context(), opts)
	},
}

func init() {
	restoreCmd.Flags().StringP("input", "i", "", "sync package path")
	restoreCmd.Flags().StringP("target", "t", "", "restore under this directory instead of the recorded origins")
	restoreCmd.Flags().StringSlice("only", nil, "restore only the listed tools")
	restoreCmd.Flags().Bool("dry-run", false, "report what would be restored without writing files")
	restoreCmd.Flags().Bool("skip-extensions", false, "do not reinstall editor extensions")

	rootCmd.AddCommand(restoreCmd)
}

type restoreOptions struct {
	pkgPath        string
	targetDir      string
	password       string
	only           []string
	dryRun         bool
	skipExtensions bool
	quiet          bool
}

type restoreTask struct {
	file   *zip.File
	entry  manifest.Entry
	target string
}

func restore(ctx context.Context, opts restoreOptions) error {
	pkg, err := archive.Open(opts.pkgPath, opts.password)
	if err != nil {
		return err
	}
	defer pkg.Close()

	var m manifest.Manifest
	if err := pkg.DecodeYAML(archive.ManifestName, &m); err != nil {
		return fmt.Errorf("reading %s: %w", archive.ManifestName, err)
	}
	if len(m.Entries) == 0 {
		return fmt.Errorf("package has an empty %s, refusing to restore", archive.ManifestName)
	}

	// The config snapshot inside the package is the recipe it was built
	// with; its hooks travel with it.
	var pkgCfg config.Config
	if err := pkg.DecodeYAML(archive.ConfigName, &pkgCfg); err != nil {
		log.Printf("package has no readable config snapshot: %v", err)
	}

	if !opts.dryRun {
		if err := runHook(ctx, "before_restore", pkgCfg.BeforeRestore); err != nil {
			return err
		}
		defer func() {
			if err := runHook(ctx, "after_restore", pkgCfg.AfterRestore); err != nil {
				log.Printf("after_restore hook failed: %v", err)
			}
		}()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	onlySet := make(map[string]bool, len(opts.only))
	for _, t := range opts.only {
		onlySet[t] = true
	}

	var tasks []restoreTask
	for _, f := range pkg.Files() {
		if archive.IsDocument(f.Name) {
			continue
		}
		e, ok := m.Lookup(f.Name)
		if !ok {
			log.Printf("skipping unknown entry: %s", f.Name)
			continue
		}
		if len(onlySet) > 0 && !onlySet[e.Tool] {
			continue
		}
		if e.Origin == "" {
			// Captured command output stays in the package.
			continue
		}
		target, err := restoreTarget(e, opts.targetDir, home)
		if err != nil {
			return err
		}
		tasks = append(tasks, restoreTask{file: f, entry: e, target: target})
	}

	// Editor settings are checked before anything touches the disk, so a
	// corrupt package cannot leave a half-restored editor config behind.
	for _, t := range tasks {
		if t.entry.Tool == "vscode" && strings.HasSuffix(t.file.Name, ".json") {
			data, err := pkg.ReadEntry(t.file.Name)
			if err != nil {
				return err
			}
			if err := collector.ValidateJSONC(data); err != nil {
				return fmt.Errorf("%s: %w", t.file.Name, err)
			}
		}
	}

	if opts.dryRun {
		for _, t := range tasks {
			fmt.Printf("would restore %s -> %s\n", t.file.Name, t.target)
		}
		return nil
	}

	bar := newProgressBar(int64(len(tasks)), "restoring", opts.quiet)

	g := new(errgroup.Group)
	sem := make(chan struct{}, runtime.NumCPU())

	for _, t := range tasks {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := extractFile(t.file, t.target, t.entry); err != nil {
				return fmt.Errorf("restoring %s: %w", t.target, err)
			}

			bar.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if !opts.skipExtensions && (len(onlySet) == 0 || onlySet["vscode"]) {
		installExtensions(ctx, pkg)
	}

	log.Printf("restore complete: %d files", len(tasks))
	return nil
}

// restoreTarget resolves where an entry lands on this machine. Without
// --target, home-relative origins land under the current home; with it,
// everything is re-rooted below the target directory.
func restoreTarget(e manifest.Entry, targetDir, home string) (string, error) {
	if targetDir == "" {
		return manifest.ResolveOrigin(e.Origin, home)
	}

	rel := strings.TrimPrefix(e.Origin, "~/")
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("entry %s escapes the target directory", e.Path)
	}
	return filepath.Join(targetDir, filepath.FromSlash(rel)), nil
}

func extractFile(f *zip.File, targetPath string, e manifest.Entry) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dirMode := fs.FileMode(0o755)
	if e.Tool == "ssh" {
		dirMode = 0o700
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), dirMode); err != nil {
		return err
	}

	mode := e.FileMode()
	if mode == 0 {
		mode = 0o644
	}
	outFile, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, rc)
	return err
}

// installExtensions reinstalls the editor extensions recorded at backup
// time. Individual failures are logged and skipped.
func installExtensions(ctx context.Context, pkg *archive.Package) {
	data, err := pkg.ReadEntry(archive.EntryPath("vscode", "extensions.txt"))
	if err != nil {
		return
	}

	installed := 0
	for _, line := range strings.Split(string(data), "\n") {
		ext := strings.TrimSpace(line)
		if ext == "" {
			continue
		}
		if _, err := runCommand(ctx, "code", "--install-extension", ext); err != nil {
			log.Printf("installing extension %s failed: %v", ext, err)
			continue
		}
		installed++
	}
	if installed > 0 {
		log.Printf("reinstalled %d editor extensions", installed)
	}
}
