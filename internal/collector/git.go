package collector

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Git collects the global git configuration and the configured identity.
type Git struct {
	opts Options
}

func NewGit(opts Options) *Git {
	return &Git{opts: opts}
}

func (c *Git) Name() string     { return "git" }
func (c *Git) Describe() string { return "Git configuration" }

// Identity is the global user.name/user.email pair, captured separately so
// it survives even when .gitconfig includes machine-local sections.
type Identity struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

func (c *Git) Collect(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	for _, name := range []string{".gitconfig", ".gitignore_global"} {
		p := filepath.Join(c.opts.Home, name)
		if e, ok := c.opts.fileEntry("git", name, p); ok {
			entries = append(entries, e)
		}
	}

	if c.opts.Run != nil {
		if id, ok := c.identity(ctx); ok {
			data, err := yaml.Marshal(id)
			if err != nil {
				return nil, err
			}
			entries = append(entries, noteEntry("git", "identity.yaml", data))
		}
	}

	return entries, nil
}

func (c *Git) identity(ctx context.Context) (Identity, bool) {
	name, err := c.opts.Run(ctx, "git", "config", "--global", "user.name")
	if err != nil {
		log.Printf("git: reading user.name failed, skipping identity: %v", err)
		return Identity{}, false
	}
	email, err := c.opts.Run(ctx, "git", "config", "--global", "user.email")
	if err != nil {
		log.Printf("git: reading user.email failed, skipping identity: %v", err)
		return Identity{}, false
	}

	id := Identity{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	return id, id.Name != "" || id.Email != ""
}
