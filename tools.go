package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xxwfufu/devsync/internal/archive"
	"github.com/xxwfufu/devsync/internal/collector"
	"github.com/xxwfufu/devsync/internal/config"
)

const (
	packagePrefix     = "devsync_"
	packageTimeFormat = "20060102-150405"
)

// runCommand executes a system command and returns its combined output.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("command failed (%s %v): %w, output: %s",
			name, args, err, string(output))
	}
	return string(output), nil
}

// refuseRoot guards commands that resolve paths under the invoking user's
// home directory.
func refuseRoot(cmd *cobra.Command, args []string) error {
	if os.Geteuid() == 0 {
		return fmt.Errorf("refusing to run as root: devsync manages files in the invoking user's home directory")
	}
	return nil
}

func newProgressBar(count int64, description string, quiet bool) *progressbar.ProgressBar {
	if quiet {
		return progressbar.DefaultSilent(count, description)
	}
	return progressbar.Default(count, description)
}

// readPassword returns the package password from $DEVSYNC_PASSWORD or, when
// unset, prompts for it without echo.
func readPassword(confirm bool) (string, error) {
	if p := os.Getenv("DEVSYNC_PASSWORD"); p != "" {
		return p, nil
	}

	fmt.Fprint(os.Stderr, "package password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "confirm password: ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passwords do not match")
		}
	}

	return string(first), nil
}

// loadSyncConfig resolves the --config flag and loads the sync config,
// returning the raw bytes as well for embedding into packages.
func loadSyncConfig(cmd *cobra.Command) (*config.Config, []byte, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
	}
	return config.Load(path)
}

func collectorOptions(cfg *config.Config) (collector.Options, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return collector.Options{}, fmt.Errorf("resolving home directory: %w", err)
	}
	return collector.Options{
		Home:          home,
		GOOS:          runtime.GOOS,
		Run:           runCommand,
		ExtraDotfiles: cfg.ExtraDotfiles,
		ExcludeFiles:  cfg.ExcludeFiles,
	}, nil
}

func selectCollectors(cfg *config.Config, only []string) ([]collector.Collector, error) {
	opts, err := collectorOptions(cfg)
	if err != nil {
		return nil, err
	}
	names := cfg.Tools
	if len(only) > 0 {
		names = only
	}
	return collector.Select(opts, names)
}

type packageInfo struct {
	path      string
	createdAt time.Time
}

func defaultPackageName() string {
	return fmt.Sprintf("%s%s.zip", packagePrefix, time.Now().Format(packageTimeFormat))
}

// listPackages returns the sync packages in dir, newest first. The creation
// time is parsed from the file name, so foreign files are ignored.
func listPackages(dir string) ([]packageInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pkgs []packageInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), archive.EncSuffix)
		if !strings.HasPrefix(name, packagePrefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, packagePrefix), ".zip")
		t, perr := time.Parse(packageTimeFormat, stamp)
		if perr != nil {
			continue
		}
		pkgs = append(pkgs, packageInfo{path: filepath.Join(dir, e.Name()), createdAt: t})
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].createdAt.After(pkgs[j].createdAt) })
	return pkgs, nil
}

// prunePackages removes the oldest packages beyond the retention limit.
func prunePackages(dir string, maxPackages int) error {
	if maxPackages <= 0 {
		return nil
	}
	pkgs, err := listPackages(dir)
	if err != nil {
		return err
	}
	if len(pkgs) <= maxPackages {
		return nil
	}
	for _, old := range pkgs[maxPackages:] {
		if err := os.Remove(old.path); err != nil {
			return fmt.Errorf("pruning %s: %w", old.path, err)
		}
	}
	return nil
}
