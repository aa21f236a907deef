package collector

import (
	"context"
	"log"
	"os"
	"path/filepath"
)

// safeSSHFiles are the only non-glob names ever collected from ~/.ssh.
// Private key material must never enter a sync package, so collection is a
// strict allowlist: these two files plus "*.pub".
var safeSSHFiles = []string{"config", "known_hosts"}

// SSH collects the client config, known hosts, and public keys.
type SSH struct {
	opts Options
}

func NewSSH(opts Options) *SSH {
	return &SSH{opts: opts}
}

func (c *SSH) Name() string     { return "ssh" }
func (c *SSH) Describe() string { return "SSH config and public keys" }

func (c *SSH) Collect(ctx context.Context) ([]Entry, error) {
	dir := filepath.Join(c.opts.Home, ".ssh")
	if _, err := os.Stat(dir); err != nil {
		log.Printf("ssh: %s not found, skipping", dir)
		return nil, nil
	}

	var entries []Entry
	for _, name := range safeSSHFiles {
		if e, ok := c.opts.fileEntry("ssh", name, filepath.Join(dir, name)); ok {
			entries = append(entries, e)
		}
	}

	pubs, err := filepath.Glob(filepath.Join(dir, "*.pub"))
	if err != nil {
		return nil, err
	}
	for _, p := range pubs {
		if e, ok := c.opts.fileEntry("ssh", filepath.Base(p), p); ok {
			entries = append(entries, e)
		}
	}

	return entries, nil
}
