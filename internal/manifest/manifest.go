// Package manifest defines the documents embedded in a sync package: the
// per-file manifest that maps archive entries back to their origins, and
// the metadata stamp describing the machine the package was created on.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Entry records one archived file.
//
// Origin is the path the file came from, with the home directory collapsed
// to "~/" so a package restores cleanly under a different user name.
// Generated entries (command output captured at backup time, like the
// extensions list) carry an empty Origin and are never written back to disk.
type Entry struct {
	Path   string `yaml:"path"`
	Origin string `yaml:"origin,omitempty"`
	Tool   string `yaml:"tool"`
	Mode   uint32 `yaml:"mode"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// FileMode returns the recorded permission bits.
func (e Entry) FileMode() fs.FileMode {
	return fs.FileMode(e.Mode)
}

// Manifest is the full entry list, stored as manifest.yaml in the package.
type Manifest struct {
	Entries []Entry `yaml:"entries"`
}

// Lookup finds the entry with the given archive path.
func (m *Manifest) Lookup(path string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}

// ToolCounts returns the number of entries per tool.
func (m *Manifest) ToolCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range m.Entries {
		counts[e.Tool]++
	}
	return counts
}

// Drift states reported by Diff.
const (
	StateUnchanged = "unchanged"
	StateModified  = "modified"
	StateMissing   = "missing"
)

// Drift describes how a file on disk compares to its manifest entry.
type Drift struct {
	Entry Entry
	State string
}

// Diff compares every entry that has an origin against the file currently
// on disk. Entries whose origin cannot be resolved are reported as missing.
func (m *Manifest) Diff(home string) []Drift {
	var drifts []Drift
	for _, e := range m.Entries {
		if e.Origin == "" {
			continue
		}
		path, err := ResolveOrigin(e.Origin, home)
		if err != nil {
			drifts = append(drifts, Drift{Entry: e, State: StateMissing})
			continue
		}
		sum, _, err := HashFile(path)
		switch {
		case err != nil:
			drifts = append(drifts, Drift{Entry: e, State: StateMissing})
		case sum != e.SHA256:
			drifts = append(drifts, Drift{Entry: e, State: StateModified})
		default:
			drifts = append(drifts, Drift{Entry: e, State: StateUnchanged})
		}
	}
	return drifts
}

// ResolveOrigin expands a manifest origin to an absolute path under the
// given home directory. Origins containing ".." elements are rejected so a
// crafted manifest cannot direct a restore outside its recorded locations.
func ResolveOrigin(origin, home string) (string, error) {
	if origin == "" {
		return "", fmt.Errorf("empty origin")
	}
	for _, part := range strings.Split(filepath.ToSlash(origin), "/") {
		if part == ".." {
			return "", fmt.Errorf("origin %q contains a parent-directory element", origin)
		}
	}
	if origin == "~" || strings.HasPrefix(origin, "~/") {
		if home == "" {
			return "", fmt.Errorf("origin %q needs a home directory", origin)
		}
		return filepath.Join(home, strings.TrimPrefix(origin, "~")), nil
	}
	if !filepath.IsAbs(origin) {
		return "", fmt.Errorf("origin %q is neither home-relative nor absolute", origin)
	}
	return filepath.Clean(origin), nil
}

// CollapseHome rewrites an absolute path under home to the portable "~/"
// form used in manifest origins.
func CollapseHome(path, home string) string {
	if home == "" {
		return path
	}
	rel, err := filepath.Rel(home, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	if rel == "." {
		return "~"
	}
	return "~/" + filepath.ToSlash(rel)
}

// HashBytes returns the hex sha256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex sha256 digest and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Metadata is the machine stamp stored as metadata.yaml in the package.
type Metadata struct {
	CreatedAt time.Time      `yaml:"created_at"`
	Hostname  string         `yaml:"hostname"`
	OS        string         `yaml:"os"`
	Arch      string         `yaml:"arch"`
	Version   string         `yaml:"version"`
	Tools     map[string]int `yaml:"tools"`
}

// NewMetadata stamps the current machine and time.
func NewMetadata(version string, tools map[string]int) Metadata {
	hostname, _ := os.Hostname()
	return Metadata{
		CreatedAt: time.Now().UTC(),
		Hostname:  hostname,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Version:   version,
		Tools:     tools,
	}
}
