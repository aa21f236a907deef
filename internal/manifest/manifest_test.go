package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		home    string
		want    string
		wantErr bool
	}{
		{name: "home relative", origin: "~/.bashrc", home: "/home/u", want: "/home/u/.bashrc"},
		{name: "bare tilde", origin: "~", home: "/home/u", want: "/home/u"},
		{name: "absolute", origin: "/etc/gitconfig", home: "/home/u", want: "/etc/gitconfig"},
		{name: "parent elements rejected", origin: "~/../../etc/passwd", home: "/home/u", wantErr: true},
		{name: "relative rejected", origin: "sneaky/path", home: "/home/u", wantErr: true},
		{name: "empty rejected", origin: "", home: "/home/u", wantErr: true},
		{name: "home relative without home", origin: "~/.bashrc", home: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOrigin(tt.origin, tt.home)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollapseHome(t *testing.T) {
	assert.Equal(t, "~/.bashrc", CollapseHome("/home/u/.bashrc", "/home/u"))
	assert.Equal(t, "~/.ssh/config", CollapseHome("/home/u/.ssh/config", "/home/u"))
	assert.Equal(t, "~", CollapseHome("/home/u", "/home/u"))
	assert.Equal(t, "/etc/gitconfig", CollapseHome("/etc/gitconfig", "/home/u"))
	assert.Equal(t, "/home/unrelated/.bashrc", CollapseHome("/home/unrelated/.bashrc", "/home/u"))
}

func TestCollapseHomeRoundTrips(t *testing.T) {
	home := "/home/u"
	for _, path := range []string{"/home/u/.bashrc", "/home/u/.config/Code/User/settings.json"} {
		origin := CollapseHome(path, home)
		resolved, err := ResolveOrigin(origin, home)
		require.NoError(t, err)
		assert.Equal(t, path, resolved)
	}
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	content := []byte("some tracked content")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sum, size, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(content), sum)
	assert.Equal(t, int64(len(content)), size)
}

func TestDiff(t *testing.T) {
	home := t.TempDir()

	unchanged := []byte("stable")
	require.NoError(t, os.WriteFile(filepath.Join(home, ".bashrc"), unchanged, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".vimrc"), []byte("edited since backup"), 0o644))

	m := Manifest{Entries: []Entry{
		{Path: "data/dotfiles/.bashrc", Origin: "~/.bashrc", Tool: "dotfiles", SHA256: HashBytes(unchanged)},
		{Path: "data/dotfiles/.vimrc", Origin: "~/.vimrc", Tool: "dotfiles", SHA256: HashBytes([]byte("original"))},
		{Path: "data/dotfiles/.zshrc", Origin: "~/.zshrc", Tool: "dotfiles", SHA256: HashBytes([]byte("gone"))},
		{Path: "data/packages/npm_global.json", Tool: "packages", SHA256: HashBytes([]byte("[]"))},
	}}

	drifts := m.Diff(home)
	require.Len(t, drifts, 3, "entries without an origin are not diffed")

	states := map[string]string{}
	for _, d := range drifts {
		states[d.Entry.Path] = d.State
	}
	assert.Equal(t, StateUnchanged, states["data/dotfiles/.bashrc"])
	assert.Equal(t, StateModified, states["data/dotfiles/.vimrc"])
	assert.Equal(t, StateMissing, states["data/dotfiles/.zshrc"])
}

func TestToolCountsAndLookup(t *testing.T) {
	m := Manifest{Entries: []Entry{
		{Path: "data/git/.gitconfig", Tool: "git"},
		{Path: "data/ssh/config", Tool: "ssh"},
		{Path: "data/ssh/known_hosts", Tool: "ssh"},
	}}

	assert.Equal(t, map[string]int{"git": 1, "ssh": 2}, m.ToolCounts())

	e, ok := m.Lookup("data/ssh/config")
	assert.True(t, ok)
	assert.Equal(t, "ssh", e.Tool)

	_, ok = m.Lookup("data/ssh/id_rsa")
	assert.False(t, ok)
}

func TestNewMetadata(t *testing.T) {
	meta := NewMetadata("v1.2.0", map[string]int{"git": 3})
	assert.Equal(t, "v1.2.0", meta.Version)
	assert.Equal(t, 3, meta.Tools["git"])
	assert.NotEmpty(t, meta.OS)
	assert.NotEmpty(t, meta.Arch)
	assert.False(t, meta.CreatedAt.IsZero())
}
