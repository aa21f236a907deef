// Package archive reads and writes sync packages: zip files compressed with
// klauspost deflate, optionally sealed whole with AES-GCM.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"gopkg.in/yaml.v3"
)

// Well-known entry names inside a sync package.
const (
	ManifestName = "manifest.yaml"
	MetadataName = "metadata.yaml"
	ConfigName   = "config.yaml"

	// DataDir is the directory inside the package holding collected files.
	DataDir = "data"

	// EncSuffix marks a package sealed with Encrypt.
	EncSuffix = ".enc"
)

// IsDocument reports whether name is one of the embedded package documents
// rather than a collected file.
func IsDocument(name string) bool {
	return name == ManifestName || name == MetadataName || name == ConfigName
}

// EntryPath builds the archive path for a collected file:
// data/<tool>/<rel>.
func EntryPath(tool, rel string) string {
	return path.Join(DataDir, tool, filepath.ToSlash(rel))
}

// IsEncrypted reports whether the package at path is sealed.
func IsEncrypted(pkgPath string) bool {
	return strings.HasSuffix(pkgPath, EncSuffix)
}

// Writer wraps a zip.Writer so worker goroutines can add entries
// concurrently. The zip format is inherently sequential, so every entry is
// created and copied under one lock.
type Writer struct {
	mu sync.Mutex
	zw *zip.Writer
}

// NewWriter returns a Writer compressing entries at flate.BestCompression.
func NewWriter(w io.Writer) *Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	return &Writer{zw: zw}
}

// WriteEntry adds a single entry with the given content and mode.
func (w *Writer) WriteEntry(name string, data []byte, mode fs.FileMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ew, err := w.create(name, mode)
	if err != nil {
		return err
	}
	_, err = ew.Write(data)
	return err
}

// AddFile copies the file at srcPath into the archive under name,
// preserving its permission bits.
func (w *Writer) AddFile(name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ew, err := w.create(name, info.Mode().Perm())
	if err != nil {
		return err
	}
	_, err = io.Copy(ew, src)
	return err
}

func (w *Writer) create(name string, mode fs.FileMode) (io.Writer, error) {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if mode != 0 {
		hdr.SetMode(mode)
	}
	return w.zw.CreateHeader(hdr)
}

// Close flushes the zip central directory.
func (w *Writer) Close() error {
	return w.zw.Close()
}

// Package is an opened sync package.
type Package struct {
	files  []*zip.File
	closer io.Closer
}

// Open opens the package at pkgPath. Encrypted packages (the .enc suffix)
// are decrypted in memory with the given password; for plain packages the
// password is ignored.
func Open(pkgPath, password string) (*Package, error) {
	if IsEncrypted(pkgPath) {
		data, err := os.ReadFile(pkgPath)
		if err != nil {
			return nil, fmt.Errorf("reading package (%s): %w", pkgPath, err)
		}
		plain, err := Decrypt(data, password)
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(plain), int64(len(plain)))
		if err != nil {
			return nil, fmt.Errorf("opening decrypted package: %w", err)
		}
		registerDecompressor(zr)
		return &Package{files: zr.File}, nil
	}

	r, err := zip.OpenReader(pkgPath)
	if err != nil {
		return nil, fmt.Errorf("opening package (%s): %w", pkgPath, err)
	}
	registerDecompressor(&r.Reader)
	return &Package{files: r.File, closer: r}, nil
}

func registerDecompressor(r *zip.Reader) {
	r.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Files returns the entries in the package.
func (p *Package) Files() []*zip.File {
	return p.files
}

// ReadEntry returns the content of the named entry.
func (p *Package) ReadEntry(name string) ([]byte, error) {
	for _, f := range p.files {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening entry %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %s not found in package", name)
}

// DecodeYAML unmarshals the named entry into out.
func (p *Package) DecodeYAML(name string, out any) error {
	data, err := p.ReadEntry(name)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// Close releases the underlying file, if any.
func (p *Package) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// ReplaceEntry rewrites the package at pkgPath with the named entry
// replaced by data. The archive is rebuilt into a temp file next to the
// original and renamed over it. Encrypted packages must be opened and
// rewritten explicitly; rewriting them in place is not supported.
func ReplaceEntry(pkgPath, name string, data []byte) error {
	if IsEncrypted(pkgPath) {
		return fmt.Errorf("cannot rewrite encrypted package %s in place", pkgPath)
	}

	src, err := zip.OpenReader(pkgPath)
	if err != nil {
		return fmt.Errorf("opening package (%s): %w", pkgPath, err)
	}
	defer src.Close()
	registerDecompressor(&src.Reader)

	if !slices.ContainsFunc(src.File, func(f *zip.File) bool { return f.Name == name }) {
		return fmt.Errorf("entry %s not found in package", name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(pkgPath), filepath.Base(pkgPath)+".tmp")
	if err != nil {
		return fmt.Errorf("creating temp package: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	dst := NewWriter(tmp)
	for _, f := range src.File {
		if f.Name == name {
			if err := dst.WriteEntry(f.Name, data, f.Mode().Perm()); err != nil {
				return fmt.Errorf("writing entry %s: %w", name, err)
			}
			continue
		}
		if err := copyZipFile(f, dst); err != nil {
			return fmt.Errorf("copying entry %s: %w", f.Name, err)
		}
	}
	if err := dst.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), pkgPath); err != nil {
		return fmt.Errorf("replacing package: %w", err)
	}
	return nil
}

func copyZipFile(src *zip.File, dst *Writer) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return dst.WriteEntry(src.Name, data, src.Mode().Perm())
}
