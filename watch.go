package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/xxwfufu/devsync/internal/config"
)

// watchDebounce is the default quiet window after the last change before a
// backup fires.
const watchDebounce = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Back up automatically when tracked files change",
	PreRunE: refuseRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, rawCfg, err := loadSyncConfig(cmd)
		if err != nil {
			return err
		}
		debounce, _ := cmd.Flags().GetDuration("debounce")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return watch(ctx, cfg, rawCfg, debounce, quiet)
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", watchDebounce, "quiet window before a change triggers a backup")

	rootCmd.AddCommand(watchCmd)
}

func watch(ctx context.Context, cfg *config.Config, rawCfg []byte, debounce time.Duration, quiet bool) error {
	dirs, err := watchDirs(ctx, cfg)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no tracked files to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := make(map[string]struct{})
	addDir := func(path string) {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return
		}
		if _, ok := watched[path]; ok {
			return
		}
		if err := watcher.Add(path); err != nil {
			log.Printf("watch add failed for %s: %v", path, err)
			return
		}
		watched[path] = struct{}{}
	}
	for _, d := range dirs {
		addDir(d)
	}

	log.Printf("watching %d directories (debounce %s)", len(watched), debounce)

	// Bursts of writes collapse into one backup: every relevant event
	// pushes the timer out, and only the timer firing triggers work.
	var timer *time.Timer
	trigger := make(chan struct{}, 1)
	bump := func() {
		if timer == nil {
			timer = time.AfterFunc(debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				addDir(event.Name)
			}
			bump()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)

		case <-trigger:
			if _, err := backup(ctx, cfg, rawCfg, backupOptions{quiet: quiet}); err != nil {
				log.Printf("automatic backup failed: %v", err)
			}
		}
	}
}

// watchDirs collects the parent directories of every tracked file. A
// collector that fails here only logs; watch still covers the rest.
func watchDirs(ctx context.Context, cfg *config.Config) ([]string, error) {
	cols, err := selectCollectors(cfg, nil)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, c := range cols {
		entries, err := c.Collect(ctx)
		if err != nil {
			log.Printf("watch: collecting %s failed: %v", c.Name(), err)
			continue
		}
		for _, e := range entries {
			if e.SourcePath == "" {
				continue
			}
			set[filepath.Dir(e.SourcePath)] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}
