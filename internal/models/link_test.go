package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLink_IsExpired(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, false},
		{"expired", &past, true},
		{"not yet expired", &future, false},
		{"expires exactly now", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Link{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, l.IsExpired(now))
		})
	}
}

func TestLink_HasPassword(t *testing.T) {
	empty := ""
	hash := "$2a$10$abc"

	assert.False(t, (&Link{}).HasPassword())
	assert.False(t, (&Link{PasswordHash: &empty}).HasPassword())
	assert.True(t, (&Link{PasswordHash: &hash}).HasPassword())
}

func TestLink_OwnedBy(t *testing.T) {
	owner := uuid.New()

	assert.True(t, (&Link{OwnerID: &owner}).OwnedBy(owner))
	assert.False(t, (&Link{OwnerID: &owner}).OwnedBy(uuid.New()))
	assert.False(t, (&Link{}).OwnedBy(owner))
}
