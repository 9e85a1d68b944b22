package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no bundle exists for an order.
var ErrNotFound = errors.New("bundle not found")

// Store keeps finished bundles keyed by order id.
type Store interface {
	Save(ctx context.Context, orderID string, data []byte) error
	Get(ctx context.Context, orderID string) ([]byte, error)
}

// MemoryStore keeps bundles in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, orderID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[orderID] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orderID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.bundles[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Reset drops every bundle.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles = make(map[string][]byte)
}

// DirStore writes bundles as <orderID>.zip files under Dir.
type DirStore struct {
	Dir string
}

func (d DirStore) path(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" || orderID != filepath.Base(orderID) || strings.HasPrefix(orderID, ".") {
		return "", fmt.Errorf("invalid order id %q", orderID)
	}
	return filepath.Join(d.Dir, orderID+".zip"), nil
}

func (d DirStore) Save(_ context.Context, orderID string, data []byte) error {
	p, err := d.path(orderID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("creating bundle dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	return os.Rename(tmp, p)
}

func (d DirStore) Get(_ context.Context, orderID string) ([]byte, error) {
	p, err := d.path(orderID)
	if err != nil {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	return data, nil
}
