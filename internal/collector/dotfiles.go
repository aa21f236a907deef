package collector

import (
	"context"
	"path/filepath"
)

// knownDotfiles are the shell and editor configuration files collected by
// default. Additional files come from the extra_dotfiles config list.
var knownDotfiles = []string{
	".bashrc", ".bash_profile", ".zshrc", ".zprofile",
	".profile", ".aliases", ".functions",
	".vimrc", ".tmux.conf", ".screenrc",
}

// Dotfiles collects shell configuration files from the home directory.
type Dotfiles struct {
	opts Options
}

func NewDotfiles(opts Options) *Dotfiles {
	return &Dotfiles{opts: opts}
}

func (c *Dotfiles) Name() string     { return "dotfiles" }
func (c *Dotfiles) Describe() string { return "Shell configuration files" }

func (c *Dotfiles) Collect(ctx context.Context) ([]Entry, error) {
	names := append(append([]string(nil), knownDotfiles...), c.opts.ExtraDotfiles...)

	var entries []Entry
	for _, name := range names {
		// Extra dotfiles may live in subdirectories (".config/starship.toml");
		// the relative path is preserved inside the package.
		p := filepath.Join(c.opts.Home, name)
		if e, ok := c.opts.fileEntry("dotfiles", name, p); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
