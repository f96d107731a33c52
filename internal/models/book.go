package models

import (
	"path/filepath"
	"strings"
)

// DefaultFormat is assumed when book metadata carries no file format.
const DefaultFormat = "epub"

// StorageInfo describes where a book's files live on disk.
type StorageInfo struct {
	BasePath    string `json:"basePath"`
	Filename    string `json:"filename"`
	KeyFilename string `json:"keyFilename"`
	CreateTime  string `json:"createTime"`
}

// AsMap renders the storage info the way it is injected into book metadata.
func (s StorageInfo) AsMap() map[string]any {
	return map[string]any{
		"basePath":    s.BasePath,
		"filename":    s.Filename,
		"keyFilename": s.KeyFilename,
		"createTime":  s.CreateTime,
	}
}

// BookRecord is a decrypted metadata object with an injected "storage" field.
type BookRecord map[string]any

// Format returns data.file.format, or DefaultFormat when absent or not a string.
func (b BookRecord) Format() string {
	file, ok := b["file"].(map[string]any)
	if !ok {
		return DefaultFormat
	}
	format, ok := file["format"].(string)
	if !ok {
		return DefaultFormat
	}
	return format
}

// Title returns the record's title if one is present.
func (b BookRecord) Title() string {
	if title, ok := b["title"].(map[string]any); ok {
		if main, ok := title["main"].(string); ok {
			return main
		}
	}
	if title, ok := b["title"].(string); ok {
		return title
	}
	return ""
}

// SetStorage injects storage info, replacing any existing value.
func (b BookRecord) SetStorage(info StorageInfo) {
	b["storage"] = info.AsMap()
}

// Library maps user ID to book ID to record.
type Library map[string]map[string]BookRecord

// BookCount returns the number of books across all users.
func (l Library) BookCount() int {
	n := 0
	for _, books := range l {
		n += len(books)
	}
	return n
}

// ParseUserID extracts a user ID from a datastore directory name.
// One leading underscore is stripped; the rest must be ASCII digits.
// A bare "_" yields an empty but accepted ID.
func ParseUserID(dirName string) (string, bool) {
	id := strings.TrimPrefix(dirName, "_")
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return "", false
		}
	}
	return id, true
}

// SlashPath renders a filesystem path with forward slashes on every platform.
func SlashPath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), "\\", "/")
}
