package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPIKeyService_GenerateAndValidate(t *testing.T) {
	repo := newFakeAPIKeys()
	svc := NewAPIKeyService(repo, zap.NewNop())
	user := uuid.New()

	raw, key, err := svc.GenerateKey(context.Background(), user, "ci", 120)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "lp_live_"))
	assert.Len(t, raw, len("lp_live_")+32)
	assert.NotContains(t, key.KeyHash, raw, "only the hash is stored")
	assert.Equal(t, user, key.UserID)

	got, err := svc.ValidateKey(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, key.ID, got.ID)

	select {
	case id := <-repo.touched:
		assert.Equal(t, key.ID, id)
	case <-time.After(time.Second):
		t.Fatal("last used timestamp was not updated")
	}
}

func TestAPIKeyService_UnknownOrRevokedKey(t *testing.T) {
	repo := newFakeAPIKeys()
	svc := NewAPIKeyService(repo, zap.NewNop())

	got, err := svc.ValidateKey(context.Background(), "lp_live_nope")
	assert.NoError(t, err)
	assert.Nil(t, got)

	raw, key, err := svc.GenerateKey(context.Background(), uuid.New(), "old", 60)
	require.NoError(t, err)
	key.IsActive = false

	got, err = svc.ValidateKey(context.Background(), raw)
	assert.NoError(t, err)
	assert.Nil(t, got)
}
