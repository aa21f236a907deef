package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// VSCode collects the user settings, keybindings, snippets, and the
// installed extension list.
type VSCode struct {
	opts Options
}

func NewVSCode(opts Options) *VSCode {
	return &VSCode{opts: opts}
}

func (c *VSCode) Name() string     { return "vscode" }
func (c *VSCode) Describe() string { return "Visual Studio Code settings" }

// UserDir returns the per-OS VS Code user configuration directory.
func (c *VSCode) UserDir() string {
	switch c.opts.GOOS {
	case "windows":
		return filepath.Join(c.opts.Home, "AppData", "Roaming", "Code", "User")
	case "darwin":
		return filepath.Join(c.opts.Home, "Library", "Application Support", "Code", "User")
	default:
		return filepath.Join(c.opts.Home, ".config", "Code", "User")
	}
}

func (c *VSCode) Collect(ctx context.Context) ([]Entry, error) {
	dir := c.UserDir()
	if _, err := os.Stat(dir); err != nil {
		log.Printf("vscode: user directory not found, skipping")
		return nil, nil
	}

	var entries []Entry
	for _, name := range []string{"settings.json", "keybindings.json"} {
		p := filepath.Join(dir, name)
		e, ok := c.opts.fileEntry("vscode", name, p)
		if !ok {
			continue
		}
		// VS Code writes JSONC. A file that no longer parses would brick the
		// editor on restore, so it is rejected at collection time.
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := ValidateJSONC(data); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		entries = append(entries, e)
	}

	snippets := filepath.Join(dir, "snippets")
	err := filepath.WalkDir(snippets, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if e, ok := c.opts.fileEntry("vscode", rel, path); ok {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if c.opts.Run != nil {
		out, err := c.opts.Run(ctx, "code", "--list-extensions")
		if err != nil {
			log.Printf("vscode: listing extensions failed, skipping: %v", err)
		} else if strings.TrimSpace(out) != "" {
			entries = append(entries, noteEntry("vscode", "extensions.txt", []byte(out)))
		}
	}

	return entries, nil
}

// ValidateJSONC checks that data is valid JSON-with-comments.
func ValidateJSONC(data []byte) error {
	var v any
	if err := json.Unmarshal(jsonc.ToJSON(data), &v); err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	return nil
}
