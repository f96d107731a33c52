// Package keystore holds the process-wide base key.
//
// The key is derived once from the vendor's global settings and stored in a
// write-once cell. Every key-dependent component receives the *Store
// explicitly; there is no package-level state.
package keystore

import (
	"fmt"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/TheMichaelB/shelfkey/internal/models"
	"github.com/TheMichaelB/shelfkey/internal/vendor"
)

// BaseKeyLength is the number of device ID characters kept as the base key.
const BaseKeyLength = 16

// Store is a write-once cell for the base key.
type Store struct {
	key atomic.Pointer[vendor.Key]
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Init derives the base key and stores it. A second call re-derives the key
// and then fails with models.ErrAlreadyInitialized.
func (s *Store) Init(backend vendor.Capability) error {
	key, err := Derive(backend)
	if err != nil {
		return err
	}
	return s.Set(key)
}

// Set stores key if the cell is empty.
func (s *Store) Set(key vendor.Key) error {
	if !s.key.CompareAndSwap(nil, &key) {
		return models.ErrAlreadyInitialized
	}
	return nil
}

// Get returns the base key or models.ErrNotInitialized.
func (s *Store) Get() (vendor.Key, error) {
	if k := s.key.Load(); k != nil {
		return *k, nil
	}
	return "", models.ErrNotInitialized
}

// Initialized reports whether the base key has been set.
func (s *Store) Initialized() bool {
	return s.key.Load() != nil
}

// settings is the part of the global settings blob we read.
type settings struct {
	Data struct {
		Device struct {
			DeviceID any `json:"deviceId"`
		} `json:"device"`
	} `json:"data"`
}

// Derive reads data.device.deviceId from the global settings blob and
// returns its first BaseKeyLength characters.
func Derive(backend vendor.Capability) (vendor.Key, error) {
	root, err := backend.DataRoot()
	if err != nil {
		return "", fmt.Errorf("%w: resolve data root: %w", models.ErrKeyDerivation, err)
	}

	global, err := backend.GlobalKey()
	if err != nil {
		return "", fmt.Errorf("%w: global key: %w", models.ErrKeyDerivation, err)
	}

	text, err := backend.DecryptStore(global, vendor.Layout{Root: root}.SettingsPath())
	if err != nil {
		return "", fmt.Errorf("%w: decrypt settings: %w", models.ErrKeyDerivation, err)
	}

	var s settings
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return "", fmt.Errorf("%w: parse settings: %w", models.ErrKeyDerivation, err)
	}

	deviceID, ok := s.Data.Device.DeviceID.(string)
	if !ok {
		return "", fmt.Errorf("%w: deviceId not found", models.ErrKeyDerivation)
	}

	runes := []rune(deviceID)
	if len(runes) < BaseKeyLength {
		return "", fmt.Errorf("%w: deviceId shorter than %d characters", models.ErrKeyDerivation, BaseKeyLength)
	}

	return vendor.Key(string(runes[:BaseKeyLength])), nil
}
