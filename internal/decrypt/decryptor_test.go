package decrypt_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/shelfkey/internal/crypto"
	"github.com/TheMichaelB/shelfkey/internal/decrypt"
	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/keystore"
	"github.com/TheMichaelB/shelfkey/internal/models"
	"github.com/TheMichaelB/shelfkey/internal/testutil"
	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

const contentKey = vendor.Key("CONTENTKEY123456")

func setup(t *testing.T) (*testutil.Vendor, *decrypt.Decryptor) {
	t.Helper()
	v := testutil.NewVendor(t)
	v.WriteSettings(testutil.DeviceID)

	keys := keystore.New()
	require.NoError(t, keys.Init(v.Provider))

	return v, decrypt.New(v.Provider, keys, events.Discard())
}

func TestDecryptArchive(t *testing.T) {
	v, d := setup(t)

	keyPath := v.BookFile("1001", "BID123", "BID123.dat")
	filePath := v.BookFile("1001", "BID123", "BID123.epub")
	v.WriteKeyFile(keyPath, contentKey)
	v.WriteArchive(filePath, contentKey, []crypto.ArchiveEntry{
		{Name: "mimetype", Data: []byte("application/epub+zip")},
		{Name: "OEBPS/chapter1.xhtml", Data: []byte("<p>hello</p>")},
	})

	target := filepath.Join(t.TempDir(), "out", "book.decrypted.epub")
	require.NoError(t, d.Decrypt(context.Background(), keyPath, filePath, target))

	entries, err := crypto.ReadArchive(target)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "mimetype", entries[0].Name)
	assert.Equal(t, "application/epub+zip", string(entries[0].Data))
	assert.Equal(t, "<p>hello</p>", string(entries[1].Data))
}

func TestDecryptFallsBackToBinary(t *testing.T) {
	v, d := setup(t)

	keyPath := v.BookFile("1001", "BID9", "BID9.dat")
	filePath := v.BookFile("1001", "BID9", "BID9.pdf")
	v.WriteKeyFile(keyPath, contentKey)
	v.WriteBinary(filePath, contentKey, []byte("%PDF-1.7 body"))

	target := filepath.Join(t.TempDir(), "book.decrypted.pdf")
	require.NoError(t, d.Decrypt(context.Background(), keyPath, filePath, target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))
}

func TestDecryptAllStrategiesFail(t *testing.T) {
	v, d := setup(t)

	keyPath := v.BookFile("1001", "BID9", "BID9.dat")
	filePath := v.BookFile("1001", "BID9", "BID9.epub")
	v.WriteKeyFile(keyPath, contentKey)
	v.WriteBinary(filePath, vendor.Key("SOMEOTHERKEY0000"), []byte("data"))

	err := d.Decrypt(context.Background(), keyPath, filePath, filepath.Join(t.TempDir(), "out.epub"))
	require.Error(t, err)

	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
	assert.EqualError(t, err, "decrypt content: decryption failed", "binary error is returned unchanged")

	var decErr *models.DecryptError
	assert.False(t, errors.As(err, &decErr))
}

func TestDecryptNotInitialized(t *testing.T) {
	m := testutil.NewMockCapability()
	d := decrypt.New(m, keystore.New(), events.Discard())

	err := d.Decrypt(context.Background(), "k.dat", "f.epub", filepath.Join(t.TempDir(), "o.epub"))
	assert.ErrorIs(t, err, models.ErrNotInitialized)
	m.AssertNotCalled(t, "DecryptKeyFile", mock.Anything, mock.Anything)
}

func TestDecryptKeyBlob(t *testing.T) {
	base := vendor.Key("0123456789abcdef")

	newDecryptor := func(t *testing.T, m *testutil.MockCapability) *decrypt.Decryptor {
		keys := keystore.New()
		require.NoError(t, keys.Set(base))
		return decrypt.New(m, keys, events.Discard())
	}

	t.Run("extracts the fixed window", func(t *testing.T) {
		blob := strings.Repeat("x", decrypt.KeyOffset) + "ABCDEFGHIJKLMNOP" + "tail"
		target := filepath.Join(t.TempDir(), "o.epub")

		m := testutil.NewMockCapability()
		m.On("DecryptKeyFile", base, "k.dat").Return(blob, nil)
		m.On("DecryptArchive", vendor.Key("ABCDEFGHIJKLMNOP"), "f.epub", target).Return(nil)

		require.NoError(t, newDecryptor(t, m).Decrypt(context.Background(), "k.dat", "f.epub", target))
		m.AssertExpectations(t)
		m.AssertNotCalled(t, "DecryptBinary", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("short blob", func(t *testing.T) {
		m := testutil.NewMockCapability()
		m.On("DecryptKeyFile", base, "k.dat").Return(strings.Repeat("x", decrypt.KeyOffset+decrypt.KeyLength-1), nil)

		err := newDecryptor(t, m).Decrypt(context.Background(), "k.dat", "f.epub", filepath.Join(t.TempDir(), "o.epub"))

		var decErr *models.DecryptError
		require.ErrorAs(t, err, &decErr)
		assert.Equal(t, models.StrategyKey, decErr.Strategy)
		m.AssertNotCalled(t, "DecryptArchive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("key file unreadable", func(t *testing.T) {
		m := testutil.NewMockCapability()
		m.On("DecryptKeyFile", base, "k.dat").Return("", errors.New("bad tag"))

		err := newDecryptor(t, m).Decrypt(context.Background(), "k.dat", "f.epub", filepath.Join(t.TempDir(), "o.epub"))
		assert.ErrorContains(t, err, "bad tag")
	})
}

func TestDecryptReturnsLastError(t *testing.T) {
	base := vendor.Key("0123456789abcdef")
	keys := keystore.New()
	require.NoError(t, keys.Set(base))

	blob := strings.Repeat("x", decrypt.KeyOffset) + string(contentKey)
	target := filepath.Join(t.TempDir(), "o.epub")

	m := testutil.NewMockCapability()
	m.On("DecryptKeyFile", base, "k.dat").Return(blob, nil)
	m.On("DecryptArchive", contentKey, "f.epub", target).Return(errors.New("archive broke"))
	m.On("DecryptBinary", contentKey, "f.epub", target).Return(errors.New("binary broke"))

	err := decrypt.New(m, keys, events.Discard()).Decrypt(context.Background(), "k.dat", "f.epub", target)
	assert.EqualError(t, err, "binary broke")
	m.AssertExpectations(t)
}

func TestDecryptIgnoresCancellation(t *testing.T) {
	base := vendor.Key("0123456789abcdef")
	keys := keystore.New()
	require.NoError(t, keys.Set(base))

	blob := strings.Repeat("x", decrypt.KeyOffset) + string(contentKey)
	target := filepath.Join(t.TempDir(), "o.epub")

	ctx, cancel := context.WithCancel(context.Background())

	m := testutil.NewMockCapability()
	m.On("DecryptKeyFile", base, "k.dat").Return(blob, nil)
	m.On("DecryptArchive", contentKey, "f.epub", target).
		Run(func(mock.Arguments) { cancel() }).
		Return(errors.New("archive broke"))
	m.On("DecryptBinary", contentKey, "f.epub", target).Return(errors.New("binary broke"))

	err := decrypt.New(m, keys, events.Discard()).Decrypt(ctx, "k.dat", "f.epub", target)
	assert.EqualError(t, err, "binary broke", "binary strategy still runs after cancel")
	m.AssertExpectations(t)
}
