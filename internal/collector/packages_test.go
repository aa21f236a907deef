package collector

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackagesCollect(t *testing.T) {
	c := NewPackages(Options{
		GOOS: "linux",
		Run: fakeRunner(map[string]string{
			"npm list -g --depth=0 --json": `{"dependencies":{"typescript":{"version":"5.4.0"},"eslint":{"version":"9.0.0"}}}`,
			"pip list --format=json":       `[{"name":"requests","version":"2.32.0"}]`,
			"cargo install --list":         "ripgrep v14.1.0:\n    rg\n",
		}),
	})

	entries, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"npm_global.json", "pip_packages.json", "cargo_packages.txt"},
		rels(entries))

	// brew never runs off darwin.
	for _, e := range entries {
		assert.NotContains(t, e.Rel, "brew")
	}
}

func TestPackagesCollectDarwin(t *testing.T) {
	c := NewPackages(Options{
		GOOS: "darwin",
		Run: fakeRunner(map[string]string{
			"brew list --formula -1": "git\njq\n",
			"brew list --cask -1":    "visual-studio-code\n",
		}),
	})

	entries, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"brew_formulae.txt", "brew_casks.txt"}, rels(entries))
	assert.Contains(t, string(findEntry(t, entries, "brew_formulae.txt").Content), "jq")
}

func TestPackagesCollectNoManagers(t *testing.T) {
	c := NewPackages(Options{GOOS: "linux", Run: fakeRunner(nil)})
	entries, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPackagesCollectInvalidPipOutput(t *testing.T) {
	c := NewPackages(Options{
		GOOS: "linux",
		Run: fakeRunner(map[string]string{
			"pip list --format=json": "WARNING: pip is being invoked weirdly",
		}),
	})

	entries, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "non-JSON pip output is dropped")
}

func TestNpmGlobalList(t *testing.T) {
	out, err := npmGlobalList([]byte(`{"dependencies":{"zzz":{},"aaa":{},"mmm":{}}}`))
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal(out, &names))
	assert.Equal(t, []string{"aaa", "mmm", "zzz"}, names)

	_, err = npmGlobalList([]byte("not json"))
	assert.Error(t, err)
}
