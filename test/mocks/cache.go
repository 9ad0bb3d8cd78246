package mocks

import (
	"context"
	"sync"
	"time"
)

// MockCache is an in-memory mock of the Redis cache. Expirations are ignored.
type MockCache struct {
	data map[string]string
	mu   sync.Mutex

	// AcquireErr, when set, is returned by AcquireLock.
	AcquireErr error
}

// NewMockCache creates a new mock cache instance.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string]string)}
}

// Get retrieves a value, returning "" for missing keys like Redis.
func (m *MockCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

// AcquireLock sets key to token if it is free (SET NX).
func (m *MockCache) AcquireLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = token
	return true, nil
}

// ReleaseLock deletes key if it still holds token.
func (m *MockCache) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[key] != token {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

// Clear resets the mock cache.
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]string)
}
