package crypto

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

// mimetypeEntry must be the first, uncompressed member of an e-book archive.
const mimetypeEntry = "mimetype"

// ArchiveEntry is one member of an archive.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// DecryptArchive decrypts every member of a zip archive. The mimetype
// member and directories are copied as-is; the mimetype member is written
// first and stored uncompressed.
func (p *Provider) DecryptArchive(key vendor.Key, src, dst string) error {
	in, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	return writeAtomic(dst, func(w io.Writer) error {
		out := zip.NewWriter(w)

		if f := findEntry(in.File, mimetypeEntry); f != nil {
			data, err := readEntry(f)
			if err != nil {
				return err
			}
			if err := writeEntry(out, mimetypeEntry, data, zip.Store); err != nil {
				return err
			}
		}

		for _, f := range in.File {
			if f.Name == mimetypeEntry {
				continue
			}
			if strings.HasSuffix(f.Name, "/") {
				if _, err := out.Create(f.Name); err != nil {
					return fmt.Errorf("create directory %s: %w", f.Name, err)
				}
				continue
			}

			data, err := readEntry(f)
			if err != nil {
				return err
			}
			plaintext, err := Open(data, key)
			if err != nil {
				return fmt.Errorf("decrypt member %s: %w", f.Name, err)
			}
			if err := writeEntry(out, f.Name, plaintext, zip.Deflate); err != nil {
				return err
			}
		}

		return out.Close()
	})
}

// SealArchive builds a zip whose members (except mimetype) are sealed with key.
func SealArchive(key vendor.Key, entries []ArchiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	out := zip.NewWriter(&buf)

	for _, e := range entries {
		if strings.HasSuffix(e.Name, "/") {
			if _, err := out.Create(e.Name); err != nil {
				return nil, fmt.Errorf("create directory %s: %w", e.Name, err)
			}
			continue
		}

		data, method := e.Data, zip.Deflate
		if e.Name == mimetypeEntry {
			method = zip.Store
		} else {
			sealed, err := Seal(e.Data, key)
			if err != nil {
				return nil, err
			}
			data = sealed
		}
		if err := writeEntry(out, e.Name, data, method); err != nil {
			return nil, err
		}
	}

	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return buf.Bytes(), nil
}

// ReadArchive returns the members of a plain zip, in archive order.
func ReadArchive(path string) ([]ArchiveEntry, error) {
	in, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	var entries []ArchiveEntry
	for _, f := range in.File {
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ArchiveEntry{Name: f.Name, Data: data})
	}
	return entries, nil
}

func findEntry(files []*zip.File, name string) *zip.File {
	for _, f := range files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", f.Name, err)
	}
	return data, nil
}

func writeEntry(out *zip.Writer, name string, data []byte, method uint16) error {
	w, err := out.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return fmt.Errorf("create member %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write member %s: %w", name, err)
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeAtomic streams into a temp file next to path, then renames it into place.
func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
