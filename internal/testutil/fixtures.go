// Package testutil builds encrypted vendor data roots for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/shelfkey/internal/crypto"
	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

// DeviceSecret is the secret every fixture provider derives its global key from.
const DeviceSecret = "fixture-device-secret"

// DeviceID is the default device identifier written to global settings.
const DeviceID = "0a1b2c3d4e5f60718293a4b5c6d7e8f9"

// KeyBlobOffset is where the content key sits inside a decrypted key blob.
const KeyBlobOffset = 68

// Vendor is a fixture vendor data root sealed with the reference provider.
type Vendor struct {
	t        testing.TB
	Root     string
	Provider *crypto.Provider
	Layout   vendor.Layout
}

// NewVendor creates an empty data root under t.TempDir().
func NewVendor(t testing.TB) *Vendor {
	t.Helper()
	root := t.TempDir()
	return &Vendor{
		t:        t,
		Root:     root,
		Provider: crypto.NewProvider(root, DeviceSecret),
		Layout:   vendor.Layout{Root: root},
	}
}

// BaseKey is the key a store initialised from WriteSettings(DeviceID) holds.
func (v *Vendor) BaseKey() vendor.Key {
	return vendor.Key(DeviceID[:16])
}

// WriteSettings writes global settings carrying deviceID.
func (v *Vendor) WriteSettings(deviceID string) {
	v.t.Helper()
	v.WriteSettingsRaw(MustJSON(v.t, map[string]any{
		"data": map[string]any{
			"device": map[string]any{"deviceId": deviceID},
		},
	}))
}

// WriteSettingsRaw seals raw text as the global settings blob.
func (v *Vendor) WriteSettingsRaw(raw string) {
	v.t.Helper()
	key, err := v.Provider.GlobalKey()
	require.NoError(v.t, err)
	v.seal(v.Layout.SettingsPath(), key, []byte(raw))
}

// UserDir creates and returns the datastore directory named dirName.
func (v *Vendor) UserDir(dirName string) string {
	v.t.Helper()
	dir := filepath.Join(v.Layout.UsersDir(), dirName)
	require.NoError(v.t, os.MkdirAll(dir, 0o755))
	return dir
}

// WriteIndex seals raw as the user's book index.
func (v *Vendor) WriteIndex(dirName, userID, raw string) {
	v.t.Helper()
	key, err := v.Provider.UserKey(vendor.IndexStoreName, userID)
	require.NoError(v.t, err)
	v.seal(v.Layout.IndexPath(v.UserDir(dirName)), key, []byte(raw))
}

// WriteIndexBooks writes an index listing bookIDs.
func (v *Vendor) WriteIndexBooks(dirName, userID string, bookIDs ...string) {
	v.t.Helper()
	items := make([]map[string]any, 0, len(bookIDs))
	for _, id := range bookIDs {
		items = append(items, map[string]any{"bId": id})
	}
	v.WriteIndex(dirName, userID, MustJSON(v.t, map[string]any{"data": items}))
}

// WriteMeta seals raw as a book's metadata blob.
func (v *Vendor) WriteMeta(dirName, userID, bookID, raw string) {
	v.t.Helper()
	key, err := v.Provider.UserKey(bookID, userID)
	require.NoError(v.t, err)
	v.seal(v.Layout.MetaPath(v.UserDir(dirName), bookID), key, []byte(raw))
}

// WriteBookMeta writes metadata whose data object is data.
func (v *Vendor) WriteBookMeta(dirName, userID, bookID string, data map[string]any) {
	v.t.Helper()
	v.WriteMeta(dirName, userID, bookID, MustJSON(v.t, map[string]any{"data": data}))
}

// WriteFile writes plain bytes at path, creating parents.
func (v *Vendor) WriteFile(path string, data []byte) {
	v.t.Helper()
	require.NoError(v.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(v.t, os.WriteFile(path, data, 0o600))
}

// BookFile returns the path of name inside a book's library directory.
func (v *Vendor) BookFile(userID, bookID, name string) string {
	return filepath.Join(v.Layout.BookDir(userID, bookID), name)
}

// WriteKeyFile writes a key blob that carries contentKey at KeyBlobOffset,
// sealed with the base key.
func (v *Vendor) WriteKeyFile(path string, contentKey vendor.Key) {
	v.t.Helper()
	require.Len(v.t, string(contentKey), 16)
	blob := strings.Repeat("k", KeyBlobOffset) + string(contentKey) + strings.Repeat("z", 12)
	v.seal(path, v.BaseKey(), []byte(blob))
}

// WriteArchive writes archive-structured content sealed with contentKey.
func (v *Vendor) WriteArchive(path string, contentKey vendor.Key, entries []crypto.ArchiveEntry) {
	v.t.Helper()
	data, err := crypto.SealArchive(contentKey, entries)
	require.NoError(v.t, err)
	v.WriteFile(path, data)
}

// WriteBinary writes raw content sealed with contentKey.
func (v *Vendor) WriteBinary(path string, contentKey vendor.Key, plaintext []byte) {
	v.t.Helper()
	v.seal(path, contentKey, plaintext)
}

func (v *Vendor) seal(path string, key vendor.Key, plaintext []byte) {
	v.t.Helper()
	sealed, err := crypto.Seal(plaintext, key)
	require.NoError(v.t, err)
	v.WriteFile(path, sealed)
}

// MustJSON marshals v or fails the test.
func MustJSON(t testing.TB, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, fmt.Sprintf("marshal %T", v))
	return string(data)
}
