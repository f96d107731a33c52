package library

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/TheMichaelB/shelfkey/internal/models"
)

const (
	decryptedMarker = ".decrypted."
	keyFileExt      = ".dat"
)

// scanStorage locates a book's content and key files inside basePath.
//
// Entries are visited in the order the directory returns them. The first
// name that starts with bookID and ends with ".<format>" is the content file,
// the first that starts with bookID and ends with ".dat" is the key file.
// Workspace outputs (names containing ".decrypted.") never match.
func scanStorage(basePath, bookID, format string) models.StorageInfo {
	info := models.StorageInfo{BasePath: models.SlashPath(basePath)}

	f, err := os.Open(basePath)
	if err != nil {
		return info
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return info
	}

	ext := "." + format
	for _, e := range entries {
		name := e.Name()
		if strings.Contains(name, decryptedMarker) || !strings.HasPrefix(name, bookID) {
			continue
		}

		if info.Filename == "" && strings.HasSuffix(name, ext) {
			info.Filename = name
			info.CreateTime = birthTime(filepath.Join(basePath, name))
		}
		if info.KeyFilename == "" && strings.HasSuffix(name, keyFileExt) {
			info.KeyFilename = name
		}

		if info.Filename != "" && info.KeyFilename != "" {
			break
		}
	}

	return info
}
