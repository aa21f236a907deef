package collector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVSCodeUserDir(t *testing.T) {
	tests := []struct {
		goos string
		want []string
	}{
		{goos: "linux", want: []string{".config", "Code", "User"}},
		{goos: "darwin", want: []string{"Library", "Application Support", "Code", "User"}},
		{goos: "windows", want: []string{"AppData", "Roaming", "Code", "User"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			c := NewVSCode(Options{Home: "/home/u", GOOS: tt.goos})
			want := filepath.Join(append([]string{"/home/u"}, tt.want...)...)
			assert.Equal(t, want, c.UserDir())
		})
	}
}

func TestVSCodeCollect(t *testing.T) {
	home := t.TempDir()
	c := NewVSCode(Options{
		Home: home,
		GOOS: "linux",
		Run: fakeRunner(map[string]string{
			"code --list-extensions": "golang.go\nms-python.python\n",
		}),
	})

	dir := c.UserDir()
	writeFile(t, filepath.Join(dir, "settings.json"), `{
  // editor basics
  "editor.tabSize": 4,
}`, 0o644)
	writeFile(t, filepath.Join(dir, "keybindings.json"), "[]", 0o644)
	writeFile(t, filepath.Join(dir, "snippets", "go.json"), "{}", 0o644)

	entries, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"settings.json", "keybindings.json", "snippets/go.json", "extensions.txt"},
		rels(entries))

	ext := findEntry(t, entries, "extensions.txt")
	assert.Empty(t, ext.Origin, "generated entries have no restore destination")
	assert.Contains(t, string(ext.Content), "golang.go")

	settings := findEntry(t, entries, "settings.json")
	assert.Equal(t, "~/.config/Code/User/settings.json", settings.Origin)
}

func TestVSCodeCollectInvalidSettings(t *testing.T) {
	home := t.TempDir()
	c := NewVSCode(Options{Home: home, GOOS: "linux"})

	writeFile(t, filepath.Join(c.UserDir(), "settings.json"), `{"editor.tabSize": }`, 0o644)

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings.json")
}

func TestVSCodeCollectMissingDir(t *testing.T) {
	c := NewVSCode(Options{Home: t.TempDir(), GOOS: "linux"})
	entries, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVSCodeCollectNoCodeBinary(t *testing.T) {
	home := t.TempDir()
	c := NewVSCode(Options{
		Home: home,
		GOOS: "linux",
		Run:  fakeRunner(nil),
	})
	writeFile(t, filepath.Join(c.UserDir(), "settings.json"), "{}", 0o644)

	entries, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"settings.json"}, rels(entries))
}

func TestValidateJSONC(t *testing.T) {
	assert.NoError(t, ValidateJSONC([]byte(`{
  // comment
  "a": 1, /* block */
  "b": [1, 2,],
}`)))
	assert.Error(t, ValidateJSONC([]byte(`{"a": `)))
}
