package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

// MockCapability mocks the vendor decryption backend.
type MockCapability struct {
	mock.Mock
}

var _ vendor.Capability = (*MockCapability)(nil)

func NewMockCapability() *MockCapability {
	return &MockCapability{}
}

func (m *MockCapability) DataRoot() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockCapability) GlobalKey() (vendor.Key, error) {
	args := m.Called()
	return args.Get(0).(vendor.Key), args.Error(1)
}

func (m *MockCapability) UserKey(name, userID string) (vendor.Key, error) {
	args := m.Called(name, userID)
	return args.Get(0).(vendor.Key), args.Error(1)
}

func (m *MockCapability) DecryptStore(key vendor.Key, path string) (string, error) {
	args := m.Called(key, path)
	return args.String(0), args.Error(1)
}

func (m *MockCapability) DecryptKeyFile(key vendor.Key, path string) (string, error) {
	args := m.Called(key, path)
	return args.String(0), args.Error(1)
}

func (m *MockCapability) DecryptArchive(key vendor.Key, src, dst string) error {
	args := m.Called(key, src, dst)
	return args.Error(0)
}

func (m *MockCapability) DecryptBinary(key vendor.Key, src, dst string) error {
	args := m.Called(key, src, dst)
	return args.Error(0)
}
