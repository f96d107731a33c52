package library_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/library"
	"github.com/TheMichaelB/shelfkey/internal/models"
	"github.com/TheMichaelB/shelfkey/internal/testutil"
)

func newAggregator(v *testutil.Vendor) *library.Aggregator {
	return library.New(v.Provider, events.Discard())
}

func storageOf(t *testing.T, rec models.BookRecord) map[string]any {
	t.Helper()
	s, ok := rec["storage"].(map[string]any)
	require.True(t, ok, "storage injected")
	return s
}

func TestBuildSkipsBrokenUser(t *testing.T) {
	v := testutil.NewVendor(t)

	v.WriteIndexBooks("_1001", "1001", "BID1")
	v.WriteBookMeta("_1001", "1001", "BID1", map[string]any{"title": map[string]any{"main": "Good"}})

	v.WriteIndex("_2002", "2002", "{not json")

	lib, err := newAggregator(v).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, lib, 1)
	require.Contains(t, lib, "1001")
	assert.Equal(t, "Good", lib["1001"]["BID1"].Title())
}

func TestBuildUserFilter(t *testing.T) {
	v := testutil.NewVendor(t)

	for _, dir := range []struct{ name, id string }{
		{"_1001", "1001"},
		{"2002", "2002"},
		{"_", ""},
		{"abc", "abc"},
		{"_12a", "12a"},
		{"__3", "_3"},
	} {
		v.WriteIndexBooks(dir.name, dir.id, "B")
		v.WriteBookMeta(dir.name, dir.id, "B", map[string]any{})
	}
	v.WriteFile(filepath.Join(v.Layout.UsersDir(), "_4004"), []byte("a file, not a user"))

	lib, err := newAggregator(v).Build(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(lib))
	for id := range lib {
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []string{"1001", "2002", ""}, ids)
}

func TestBuildStorageScan(t *testing.T) {
	v := testutil.NewVendor(t)
	v.WriteIndexBooks("_1001", "1001", "BID123")
	v.WriteBookMeta("_1001", "1001", "BID123", map[string]any{
		"storage": "stale",
	})

	for _, name := range []string{"BID123.decrypted.epub", "BID123.epub", "BID123.dat", "OTHER.epub", "BID123.pdf"} {
		v.WriteFile(v.BookFile("1001", "BID123", name), []byte(name))
	}

	lib, err := newAggregator(v).Build(context.Background())
	require.NoError(t, err)

	s := storageOf(t, lib["1001"]["BID123"])
	assert.Equal(t, models.SlashPath(v.Layout.BookDir("1001", "BID123")), s["basePath"])
	assert.Equal(t, "BID123.epub", s["filename"])
	assert.Equal(t, "BID123.dat", s["keyFilename"])
	assert.Regexp(t, `^[0-9]*$`, s["createTime"])
}

func TestBuildFormat(t *testing.T) {
	v := testutil.NewVendor(t)
	v.WriteIndexBooks("_1001", "1001", "P1")
	v.WriteBookMeta("_1001", "1001", "P1", map[string]any{
		"file": map[string]any{"format": "pdf"},
	})
	v.WriteFile(v.BookFile("1001", "P1", "P1.epub"), []byte("x"))
	v.WriteFile(v.BookFile("1001", "P1", "P1.pdf"), []byte("x"))

	lib, err := newAggregator(v).Build(context.Background())
	require.NoError(t, err)

	rec := lib["1001"]["P1"]
	assert.Equal(t, "pdf", rec.Format())
	s := storageOf(t, rec)
	assert.Equal(t, "P1.pdf", s["filename"])
	assert.Equal(t, "", s["keyFilename"])
}

func TestBuildMissingBookDirectory(t *testing.T) {
	v := testutil.NewVendor(t)
	v.WriteIndexBooks("_1001", "1001", "NODIR")
	v.WriteBookMeta("_1001", "1001", "NODIR", map[string]any{})

	lib, err := newAggregator(v).Build(context.Background())
	require.NoError(t, err)

	s := storageOf(t, lib["1001"]["NODIR"])
	assert.NotEmpty(t, s["basePath"])
	assert.Equal(t, "", s["filename"])
	assert.Equal(t, "", s["keyFilename"])
	assert.Equal(t, "", s["createTime"])
}

func TestBuildSkipsBadBooks(t *testing.T) {
	v := testutil.NewVendor(t)
	v.WriteIndex("_1001", "1001", testutil.MustJSON(t, map[string]any{
		"data": []any{
			map[string]any{"bId": "OK"},
			map[string]any{"title": "no id"},
			map[string]any{"bId": 42},
			"not an object",
			map[string]any{"bId": "NOMETA"},
			map[string]any{"bId": "BADMETA"},
			map[string]any{"bId": "ARRAYDATA"},
		},
	}))
	v.WriteBookMeta("_1001", "1001", "OK", map[string]any{})
	v.WriteMeta("_1001", "1001", "BADMETA", "{")
	v.WriteMeta("_1001", "1001", "ARRAYDATA", `{"data":[1,2]}`)

	lib, err := newAggregator(v).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, lib["1001"], 1)
	assert.Contains(t, lib["1001"], "OK")
}

func TestBuildOmitsUsersWithoutBooks(t *testing.T) {
	v := testutil.NewVendor(t)
	v.WriteIndexBooks("_1001", "1001")
	v.WriteIndexBooks("_2002", "2002", "GONE")
	v.WriteIndex("_3003", "3003", `{"data":{}}`)

	lib, err := newAggregator(v).Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lib)
}

func TestBuildLibraryNotFound(t *testing.T) {
	v := testutil.NewVendor(t)

	_, err := newAggregator(v).Build(context.Background())
	assert.ErrorIs(t, err, models.ErrLibraryNotFound)

	v.WriteFile(v.Layout.UsersDir(), []byte("not a dir"))
	_, err = newAggregator(v).Build(context.Background())
	assert.ErrorIs(t, err, models.ErrLibraryNotFound)
}

func TestBuildDataRootUnavailable(t *testing.T) {
	m := testutil.NewMockCapability()
	m.On("DataRoot").Return("", errors.New("vendor app not installed"))

	_, err := library.New(m, events.Discard()).Build(context.Background())
	assert.ErrorIs(t, err, models.ErrLibraryNotFound)
	assert.ErrorContains(t, err, "vendor app not installed")
}

func TestBuildRunsToCompletion(t *testing.T) {
	v := testutil.NewVendor(t)
	v.WriteIndexBooks("_1001", "1001", "B")
	v.WriteBookMeta("_1001", "1001", "B", map[string]any{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lib, err := newAggregator(v).Build(ctx)
	require.NoError(t, err, "a started walk is not interrupted")
	assert.Contains(t, lib["1001"], "B")
}

func TestJSON(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		v := testutil.NewVendor(t)
		require.NoError(t, os.MkdirAll(v.Layout.UsersDir(), 0o755))

		out, err := newAggregator(v).JSON(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "{}", out)
	})

	t.Run("numbers survive", func(t *testing.T) {
		v := testutil.NewVendor(t)
		v.WriteIndexBooks("_1001", "1001", "B")
		v.WriteMeta("_1001", "1001", "B", `{"data":{"size":12345678901234567,"ratio":0.5}}`)

		out, err := newAggregator(v).JSON(context.Background())
		require.NoError(t, err)
		assert.Contains(t, out, `"size":12345678901234567`)

		var decoded map[string]map[string]map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		storage, ok := decoded["1001"]["B"]["storage"].(map[string]any)
		require.True(t, ok)
		assert.ElementsMatch(t, []string{"basePath", "filename", "keyFilename", "createTime"}, keysOf(storage))
	})
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
