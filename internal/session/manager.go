package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record created at login. The broker never sees
// it; it only anchors token minting and role lookups.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager gives typed session and role access on top of a Store.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager wraps a store with the configured session TTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Create starts a session for the user and records the role for policy
// lookups.
func (m *Manager) Create(ctx context.Context, userID, username, role string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := m.store.Put(ctx, "sess:"+sess.ID, data, m.ttl); err != nil {
		return nil, err
	}
	if role != "" {
		if err := m.store.Put(ctx, "role:"+userID, []byte(role), m.ttl); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Get loads a session by ID, returning ErrNotFound when absent or expired.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	data, err := m.store.Get(ctx, "sess:"+id)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete ends a session. Deleting an absent session is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, "sess:"+id)
}

// UserRole returns the recorded role for a user, or empty when none is known.
func (m *Manager) UserRole(ctx context.Context, userID string) (string, error) {
	data, err := m.store.Get(ctx, "role:"+userID)
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SweepExpired drops expired entries from the backing store.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	return m.store.SweepExpired(ctx)
}
