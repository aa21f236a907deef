package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPackage(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg.zip")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := NewWriter(f)
	for name, content := range entries {
		require.NoError(t, w.WriteEntry(name, []byte(content), 0o644))
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	return path
}

func TestWriterRoundTrip(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(srcPath, []byte("Host example\n"), 0o600))

	pkgPath := filepath.Join(t.TempDir(), "pkg.zip")
	f, err := os.Create(pkgPath)
	require.NoError(t, err)

	w := NewWriter(f)
	require.NoError(t, w.WriteEntry(ManifestName, []byte("entries: []\n"), 0o644))
	require.NoError(t, w.AddFile("data/ssh/config", srcPath))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	pkg, err := Open(pkgPath, "")
	require.NoError(t, err)
	defer pkg.Close()

	data, err := pkg.ReadEntry("data/ssh/config")
	require.NoError(t, err)
	assert.Equal(t, "Host example\n", string(data))

	for _, zf := range pkg.Files() {
		if zf.Name == "data/ssh/config" {
			assert.Equal(t, os.FileMode(0o600), zf.Mode().Perm())
		}
	}

	_, err = pkg.ReadEntry("data/ssh/id_rsa")
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	path := buildPackage(t, map[string]string{
		MetadataName: "hostname: buildbox\nos: linux\n",
	})

	pkg, err := Open(path, "")
	require.NoError(t, err)
	defer pkg.Close()

	var meta struct {
		Hostname string `yaml:"hostname"`
		OS       string `yaml:"os"`
	}
	require.NoError(t, pkg.DecodeYAML(MetadataName, &meta))
	assert.Equal(t, "buildbox", meta.Hostname)
	assert.Equal(t, "linux", meta.OS)
}

func TestReplaceEntry(t *testing.T) {
	path := buildPackage(t, map[string]string{
		ConfigName:           "tools: [git]\n",
		"data/git/.gitconfig": "[user]\n",
	})

	require.NoError(t, ReplaceEntry(path, ConfigName, []byte("tools: [git, ssh]\n")))

	pkg, err := Open(path, "")
	require.NoError(t, err)
	defer pkg.Close()

	data, err := pkg.ReadEntry(ConfigName)
	require.NoError(t, err)
	assert.Equal(t, "tools: [git, ssh]\n", string(data))

	// Untouched entries survive the rewrite.
	data, err = pkg.ReadEntry("data/git/.gitconfig")
	require.NoError(t, err)
	assert.Equal(t, "[user]\n", string(data))
}

func TestReplaceEntryMissing(t *testing.T) {
	path := buildPackage(t, map[string]string{ConfigName: "tools: []\n"})
	assert.Error(t, ReplaceEntry(path, "nope.yaml", []byte("x")))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("zip bytes stand-in")

	sealed, err := Encrypt(plain, "correct horse")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "zip bytes")

	out, err := Decrypt(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	_, err = Decrypt(sealed, "wrong password")
	assert.Error(t, err)
}

func TestDecryptRejectsTruncatedInput(t *testing.T) {
	_, err := Decrypt([]byte("short"), "pw")
	assert.Error(t, err)
}

func TestEncryptRejectsEmptyPassword(t *testing.T) {
	_, err := Encrypt([]byte("data"), "")
	assert.Error(t, err)
}

func TestOpenEncrypted(t *testing.T) {
	plainPath := buildPackage(t, map[string]string{ConfigName: "tools: [git]\n"})
	plain, err := os.ReadFile(plainPath)
	require.NoError(t, err)

	sealed, err := Encrypt(plain, "pw")
	require.NoError(t, err)

	encPath := filepath.Join(t.TempDir(), "pkg.zip"+EncSuffix)
	require.NoError(t, os.WriteFile(encPath, sealed, 0o600))
	assert.True(t, IsEncrypted(encPath))

	pkg, err := Open(encPath, "pw")
	require.NoError(t, err)
	defer pkg.Close()

	data, err := pkg.ReadEntry(ConfigName)
	require.NoError(t, err)
	assert.Equal(t, "tools: [git]\n", string(data))

	_, err = Open(encPath, "other")
	assert.Error(t, err)
}

func TestEntryPath(t *testing.T) {
	assert.Equal(t, "data/ssh/config", EntryPath("ssh", "config"))
	assert.Equal(t, "data/vscode/snippets/go.json", EntryPath("vscode", "snippets/go.json"))
}

func TestIsDocument(t *testing.T) {
	assert.True(t, IsDocument(ManifestName))
	assert.True(t, IsDocument(MetadataName))
	assert.True(t, IsDocument(ConfigName))
	assert.False(t, IsDocument("data/git/.gitconfig"))
}
