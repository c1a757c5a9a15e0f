package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/syncbox/pkg/errdefs"
	"github.com/marmos91/syncbox/pkg/models"
	"github.com/marmos91/syncbox/pkg/store"
)

func newTestValidator(t *testing.T, adminKey string) (*Validator, *store.GORMStore, string) {
	t.Helper()

	s, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tenantID, err := s.CreateStore(context.Background(), &models.Store{Name: "t"})
	require.NoError(t, err)

	return NewValidator(s, adminKey), s, tenantID
}

func TestGenerateKeyShape(t *testing.T) {
	storeID := "a1b2c3d4-e5f6-7890-abcd-ef0123456789"

	key, err := GenerateKey(storeID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "sk_store_a1b2c3_"), "got %q", key)
	assert.True(t, IsStoreShape(key))
	assert.False(t, IsAdminShape(key))

	// 24 bytes of entropy, base64url without padding.
	secret := key[len("sk_store_a1b2c3_"):]
	assert.Len(t, secret, 32)
	assert.NotContains(t, secret, "=")

	other, err := GenerateKey(storeID)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestDisplayPrefix(t *testing.T) {
	assert.Equal(t, "sk_store_a1b2c3_", DisplayPrefix("sk_store_a1b2c3_supersecretmaterial"))
	assert.Equal(t, "short", DisplayPrefix("short"))
}

func TestAuthenticateAdmin(t *testing.T) {
	v, _, _ := newTestValidator(t, "sk_admin_topsecret")

	id, err := v.Authenticate(context.Background(), "sk_admin_topsecret")
	require.NoError(t, err)
	assert.True(t, id.Admin)

	_, err = v.Authenticate(context.Background(), "sk_admin_wrong")
	assert.Error(t, err)

	// No admin key configured means admin auth always fails.
	v2, _, _ := newTestValidator(t, "")
	_, err = v2.Authenticate(context.Background(), "sk_admin_topsecret")
	assert.Error(t, err)
}

func TestAuthenticateStoreKey(t *testing.T) {
	v, s, tenantID := newTestValidator(t, "")
	ctx := context.Background()

	plaintext, err := GenerateKey(tenantID)
	require.NoError(t, err)

	keyID, err := s.CreateAPIKey(ctx, &models.APIKey{
		StoreID:     tenantID,
		Name:        "laptop",
		KeyPrefix:   DisplayPrefix(plaintext),
		KeyHash:     HashKey(plaintext),
		Permissions: "read,write",
	})
	require.NoError(t, err)

	id, err := v.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, tenantID, id.StoreID)
	assert.Equal(t, keyID, id.KeyID)
	assert.False(t, id.Admin)
	assert.True(t, id.CanRead())
	assert.True(t, id.CanWrite())
}

func TestAuthenticateFailures(t *testing.T) {
	v, s, tenantID := newTestValidator(t, "")
	ctx := context.Background()

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"wrong shape", "not-a-key"},
		{"unknown store key", "sk_store_abc123_nosuchsecret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Authenticate(ctx, tt.plaintext)
			require.Error(t, err)
			assert.Equal(t, errdefs.CodeUnauthorized, errdefs.FromError(err).Code)
		})
	}

	t.Run("revoked key", func(t *testing.T) {
		plaintext, err := GenerateKey(tenantID)
		require.NoError(t, err)
		keyID, err := s.CreateAPIKey(ctx, &models.APIKey{
			StoreID: tenantID, Name: "old", KeyPrefix: DisplayPrefix(plaintext),
			KeyHash: HashKey(plaintext), Permissions: "read",
		})
		require.NoError(t, err)
		require.NoError(t, s.RevokeAPIKey(ctx, keyID))

		_, err = v.Authenticate(ctx, plaintext)
		require.Error(t, err)
		assert.Equal(t, errdefs.CodeUnauthorized, errdefs.FromError(err).Code)
	})
}

func TestReadOnlyIdentity(t *testing.T) {
	v, s, tenantID := newTestValidator(t, "")
	ctx := context.Background()

	plaintext, err := GenerateKey(tenantID)
	require.NoError(t, err)
	_, err = s.CreateAPIKey(ctx, &models.APIKey{
		StoreID: tenantID, Name: "viewer", KeyPrefix: DisplayPrefix(plaintext),
		KeyHash: HashKey(plaintext), Permissions: "read",
	})
	require.NoError(t, err)

	id, err := v.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	assert.True(t, id.CanRead())
	assert.False(t, id.CanWrite())
}
