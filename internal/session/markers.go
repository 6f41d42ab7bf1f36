// Package session holds short-lived server-side markers that authorize a
// single password change after a reset code was verified.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrMarkerNotFound is returned for unknown, consumed, or expired markers.
var ErrMarkerNotFound = errors.New("reset marker not found")

// ResetMarkers maps an opaque token to the user allowed to set a new password.
type ResetMarkers interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	Lookup(ctx context.Context, token string) (int64, error)
	// Consume returns the bound user and removes the marker in one step.
	// Only one caller can consume a given token.
	Consume(ctx context.Context, token string) (int64, error)
}

func newToken() string {
	return uuid.NewString()
}

type memoryMarker struct {
	userID    int64
	expiresAt time.Time
}

// MemoryMarkers keeps markers in process memory.
type MemoryMarkers struct {
	mu      sync.Mutex
	markers map[string]memoryMarker
	now     func() time.Time
}

var _ ResetMarkers = (*MemoryMarkers)(nil)

// NewMemoryMarkers returns an empty marker store. A nil now uses time.Now.
func NewMemoryMarkers(now func() time.Time) *MemoryMarkers {
	if now == nil {
		now = time.Now
	}
	return &MemoryMarkers{markers: map[string]memoryMarker{}, now: now}
}

func (m *MemoryMarkers) Create(_ context.Context, userID int64, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for token, marker := range m.markers {
		if !now.Before(marker.expiresAt) {
			delete(m.markers, token)
		}
	}
	token := newToken()
	m.markers[token] = memoryMarker{userID: userID, expiresAt: now.Add(ttl)}
	return token, nil
}

func (m *MemoryMarkers) Lookup(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(token)
}

func (m *MemoryMarkers) Consume(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, err := m.live(token)
	if err != nil {
		return 0, err
	}
	delete(m.markers, token)
	return userID, nil
}

// live must be called with mu held.
func (m *MemoryMarkers) live(token string) (int64, error) {
	marker, ok := m.markers[token]
	if !ok {
		return 0, ErrMarkerNotFound
	}
	if !m.now().Before(marker.expiresAt) {
		delete(m.markers, token)
		return 0, ErrMarkerNotFound
	}
	return marker.userID, nil
}
