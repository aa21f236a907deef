// Package collector gathers development environment configuration into
// entries destined for a sync package. One collector per tool: VS Code,
// git, SSH, package managers, and shell dotfiles.
package collector

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxwfufu/devsync/internal/manifest"
)

// Entry is one item a collector wants in the package. File entries carry a
// SourcePath to copy from and an Origin to restore to; generated entries
// (captured command output) carry Content instead and are informational.
type Entry struct {
	Tool       string
	Rel        string // path under data/<tool>/ in the package
	Origin     string // "~/"-collapsed restore destination, "" for generated
	SourcePath string // absolute path on disk, "" for generated
	Content    []byte
	Mode       fs.FileMode
}

// Runner executes an external command and returns its combined output.
// Collectors shell out through it so tests can stub the tool CLIs.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Options configures all collectors.
type Options struct {
	Home          string
	GOOS          string
	Run           Runner
	ExtraDotfiles []string
	ExcludeFiles  []string
}

func (o Options) excluded(fileName string) bool {
	for _, pattern := range o.ExcludeFiles {
		if match, _ := filepath.Match(pattern, fileName); match {
			return true
		}
	}
	return false
}

// fileEntry stats absPath and builds a file entry for it. Returns false
// when the path is missing, not a regular file, or excluded.
func (o Options) fileEntry(tool, rel, absPath string) (Entry, bool) {
	if o.excluded(filepath.Base(absPath)) {
		return Entry{}, false
	}
	info, err := os.Stat(absPath)
	if err != nil || !info.Mode().IsRegular() {
		return Entry{}, false
	}
	return Entry{
		Tool:       tool,
		Rel:        filepath.ToSlash(rel),
		Origin:     manifest.CollapseHome(absPath, o.Home),
		SourcePath: absPath,
		Mode:       info.Mode().Perm(),
	}, true
}

func noteEntry(tool, rel string, content []byte) Entry {
	return Entry{
		Tool:    tool,
		Rel:     filepath.ToSlash(rel),
		Content: content,
		Mode:    0o644,
	}
}

// Collector gathers the entries for one tool.
type Collector interface {
	Name() string
	Describe() string
	Collect(ctx context.Context) ([]Entry, error)
}

// Order is the canonical tool ordering used for selection and display.
var Order = []string{"vscode", "git", "ssh", "packages", "dotfiles"}

// Planned names tools that show up in status output but have no collector
// yet, mirroring the tool table devsync advertises.
var Planned = map[string]string{
	"bookmarks": "Browser bookmarks",
	"fonts":     "Custom fonts",
}

// Registry returns all implemented collectors keyed by name.
func Registry(opts Options) map[string]Collector {
	return map[string]Collector{
		"vscode":   NewVSCode(opts),
		"git":      NewGit(opts),
		"ssh":      NewSSH(opts),
		"packages": NewPackages(opts),
		"dotfiles": NewDotfiles(opts),
	}
}

// Select resolves tool names to collectors, preserving canonical order.
func Select(opts Options, names []string) ([]Collector, error) {
	reg := Registry(opts)
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := reg[n]; !ok {
			return nil, fmt.Errorf("unknown tool %q (known: %s)", n, strings.Join(Order, ", "))
		}
		want[n] = true
	}

	var out []Collector
	for _, n := range Order {
		if want[n] {
			out = append(out, reg[n])
		}
	}
	return out, nil
}
