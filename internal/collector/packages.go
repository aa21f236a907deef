package collector

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
)

// Packages captures installed-package inventories from the package managers
// present on the machine. A missing manager is skipped, not an error: the
// point is a best-effort snapshot of whatever this machine uses.
type Packages struct {
	opts Options
}

func NewPackages(opts Options) *Packages {
	return &Packages{opts: opts}
}

func (c *Packages) Name() string     { return "packages" }
func (c *Packages) Describe() string { return "Package manager inventories" }

func (c *Packages) Collect(ctx context.Context) ([]Entry, error) {
	if c.opts.Run == nil {
		return nil, nil
	}

	var entries []Entry

	if out, err := c.opts.Run(ctx, "npm", "list", "-g", "--depth=0", "--json"); err != nil {
		log.Printf("packages: npm not available, skipping: %v", err)
	} else if data, perr := npmGlobalList([]byte(out)); perr != nil {
		log.Printf("packages: unreadable npm output, skipping: %v", perr)
	} else {
		entries = append(entries, noteEntry("packages", "npm_global.json", data))
	}

	if out, err := c.opts.Run(ctx, "pip", "list", "--format=json"); err != nil {
		log.Printf("packages: pip not available, skipping: %v", err)
	} else if json.Valid([]byte(out)) {
		entries = append(entries, noteEntry("packages", "pip_packages.json", []byte(out)))
	}

	if out, err := c.opts.Run(ctx, "cargo", "install", "--list"); err != nil {
		log.Printf("packages: cargo not available, skipping: %v", err)
	} else if strings.TrimSpace(out) != "" {
		entries = append(entries, noteEntry("packages", "cargo_packages.txt", []byte(out)))
	}

	if c.opts.GOOS == "darwin" {
		if out, err := c.opts.Run(ctx, "brew", "list", "--formula", "-1"); err != nil {
			log.Printf("packages: brew not available, skipping: %v", err)
		} else {
			entries = append(entries, noteEntry("packages", "brew_formulae.txt", []byte(out)))
			if casks, cerr := c.opts.Run(ctx, "brew", "list", "--cask", "-1"); cerr == nil {
				entries = append(entries, noteEntry("packages", "brew_casks.txt", []byte(casks)))
			}
		}
	}

	return entries, nil
}

// npmGlobalList reduces `npm list -g --json` output to a sorted name list.
func npmGlobalList(out []byte) ([]byte, error) {
	var parsed struct {
		Dependencies map[string]json.RawMessage `json:"dependencies"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(parsed.Dependencies))
	for name := range parsed.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return json.MarshalIndent(names, "", "  ")
}
