package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/syncbox/pkg/content"
	"github.com/marmos91/syncbox/pkg/models"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()

	s, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestTenant(t *testing.T, s *GORMStore) string {
	t.Helper()

	id, err := s.CreateStore(context.Background(), &models.Store{Name: "test"})
	require.NoError(t, err)
	return id
}

func TestCreateEmptyIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	first, err := s.CreateEmpty(ctx, tenant, "notes/a.md")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, content.EmptyHash, first.File.Hash)
	assert.Equal(t, int64(0), first.File.Size)
	assert.Equal(t, "md", first.File.Extension)
	assert.False(t, first.File.IsBinary)

	second, err := s.CreateEmpty(ctx, tenant, "notes/a.md")
	require.NoError(t, err)
	assert.False(t, second.Created, "second create must discover, not create")
	assert.Equal(t, first.File.ID, second.File.ID)
}

func TestUpsertComputesDerivedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	res, err := s.Upsert(ctx, tenant, "img/logo.PNG", "aGVsbG8=")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, content.Hash("aGVsbG8="), res.File.Hash)
	assert.Equal(t, int64(8), res.File.Size)
	assert.Equal(t, "png", res.File.Extension)
	assert.True(t, res.File.IsBinary)

	// Update path: content rewritten, same row.
	res2, err := s.Upsert(ctx, tenant, "img/logo.PNG", "d29ybGQ=")
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Equal(t, res.File.ID, res2.File.ID)
	assert.Equal(t, content.Hash("d29ybGQ="), res2.File.Hash)

	got, err := s.GetFile(ctx, tenant, "img/logo.PNG")
	require.NoError(t, err)
	assert.Equal(t, "d29ybGQ=", got.Content)
	assert.Equal(t, content.Hash(got.Content), got.Hash)
	assert.Equal(t, int64(len(got.Content)), got.Size)
}

func TestCreateStrictConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	_, err := s.CreateStrict(ctx, tenant, "z.md", "one")
	require.NoError(t, err)

	_, err = s.CreateStrict(ctx, tenant, "z.md", "two")
	assert.ErrorIs(t, err, models.ErrFileExists)

	got, err := s.GetFile(ctx, tenant, "z.md")
	require.NoError(t, err)
	assert.Equal(t, "one", got.Content, "loser must not overwrite the winner")
}

func TestSoftDeleteAndTombstoneInvisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	res, err := s.Upsert(ctx, tenant, "x.md", "hello")
	require.NoError(t, err)

	deleted, err := s.SoftDelete(ctx, tenant, "x.md")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Invisible to normal reads.
	_, err = s.GetFile(ctx, tenant, "x.md")
	assert.ErrorIs(t, err, models.ErrFileNotFound)

	// Still there with tombstone state.
	tomb, err := s.GetFileIncludingDeleted(ctx, tenant, "x.md")
	require.NoError(t, err)
	assert.Equal(t, res.File.ID, tomb.ID)
	assert.True(t, tomb.Deleted())
	assert.Empty(t, tomb.Content)
	assert.Equal(t, int64(0), tomb.Size)
	assert.Equal(t, content.EmptyHash, tomb.Hash)

	// Second delete is a no-op.
	deleted, err = s.SoftDelete(ctx, tenant, "x.md")
	require.NoError(t, err)
	assert.False(t, deleted)

	// Deleting a missing path is not an error either.
	deleted, err = s.SoftDelete(ctx, tenant, "missing.md")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestResurrectionKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	res, err := s.Upsert(ctx, tenant, "x.md", "hello")
	require.NoError(t, err)
	originalID := res.File.ID

	_, err = s.SoftDelete(ctx, tenant, "x.md")
	require.NoError(t, err)

	res2, err := s.Upsert(ctx, tenant, "x.md", "again")
	require.NoError(t, err)
	assert.True(t, res2.Created, "resurrection reports created")
	assert.Equal(t, originalID, res2.File.ID, "resurrection reuses the row")
	assert.Nil(t, res2.File.ExpiresAt)
	assert.Equal(t, "again", res2.File.Content)

	// CreateStrict over a tombstone resurrects too.
	_, err = s.SoftDelete(ctx, tenant, "x.md")
	require.NoError(t, err)
	created, err := s.CreateStrict(ctx, tenant, "x.md", "strict")
	require.NoError(t, err)
	assert.Equal(t, originalID, created.ID)
	assert.Nil(t, created.ExpiresAt)
}

func TestSoftDeleteAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)
	other := newTestTenant(t, s)

	for _, p := range []string{"a.md", "b.md", "c.md"} {
		_, err := s.Upsert(ctx, tenant, p, "x")
		require.NoError(t, err)
	}
	_, err := s.Upsert(ctx, other, "a.md", "x")
	require.NoError(t, err)

	count, err := s.SoftDeleteAll(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// The other tenant is untouched.
	_, err = s.GetFile(ctx, other, "a.md")
	assert.NoError(t, err)
}

func TestRenameOverDestination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	_, err := s.Upsert(ctx, tenant, "a.md", "A")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, tenant, "b.md", "B")
	require.NoError(t, err)

	res, err := s.Rename(ctx, tenant, "a.md", "b.md")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "b.md", res.File.Path)
	assert.Equal(t, "A", res.File.Content)

	// Exactly one record at b.md, the moved one, and nothing at a.md.
	got, err := s.GetFile(ctx, tenant, "b.md")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Content)

	_, err = s.GetFile(ctx, tenant, "a.md")
	assert.ErrorIs(t, err, models.ErrFileNotFound)

	// No tombstone survives at the destination: the unique key is free.
	_, err = s.GetFileIncludingDeleted(ctx, tenant, "b.md")
	require.NoError(t, err)
	var n int64
	require.NoError(t, s.DB().Model(&models.File{}).
		Where("store_id = ? AND path = ?", tenant, "b.md").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRenameRecomputesMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	_, err := s.Upsert(ctx, tenant, "doc.md", "text")
	require.NoError(t, err)

	res, err := s.Rename(ctx, tenant, "doc.md", "doc.png")
	require.NoError(t, err)
	assert.Equal(t, "png", res.File.Extension)
	assert.True(t, res.File.IsBinary)
}

func TestRenameMissingSourceCreatesDestination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	res, err := s.Rename(ctx, tenant, "ghost.md", "real.md")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "real.md", res.File.Path)
	assert.Empty(t, res.File.Content)

	got, err := s.GetFile(ctx, tenant, "real.md")
	require.NoError(t, err)
	assert.Equal(t, content.EmptyHash, got.Hash)
}

func TestRenameMissingSourceTombstonesActiveDestination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	_, err := s.Upsert(ctx, tenant, "real.md", "keepers")
	require.NoError(t, err)

	res, err := s.Rename(ctx, tenant, "ghost.md", "real.md")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.File.Content, "destination content is replaced by empty")
	assert.Nil(t, res.File.ExpiresAt)
}

func TestCleanupExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	res, err := s.Upsert(ctx, tenant, "old.md", "x")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, tenant, "fresh.md", "y")
	require.NoError(t, err)

	deleted, err := s.SoftDelete(ctx, tenant, "old.md")
	require.NoError(t, err)
	require.True(t, deleted)
	_, err = s.SoftDelete(ctx, tenant, "fresh.md")
	require.NoError(t, err)

	// Age one tombstone past its TTL.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.DB().Model(&models.File{}).
		Where("id = ?", res.File.ID).Update("expires_at", past).Error)

	count, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = s.GetFileIncludingDeleted(ctx, tenant, "old.md")
	assert.ErrorIs(t, err, models.ErrFileNotFound)
	_, err = s.GetFileIncludingDeleted(ctx, tenant, "fresh.md")
	assert.NoError(t, err)
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	seed := map[string]string{
		"notes/one.md":   "apple pie recipe",
		"notes/two.md":   "shopping list",
		"notes/three.md": "journal",
		"docs/readme.md": "readme",
		"docs/guide.md":  "guide",
		"img/a.png":      "cmVjaXBl", // base64("recipe"): must not match content search
		"img/b.png":      "eA==",
		"img/c.png":      "eQ==",
		"photos/d.jpg":   "eg==",
		"photos/e.jpg":   "dw==",
	}
	for p, c := range seed {
		_, err := s.Upsert(ctx, tenant, p, c)
		require.NoError(t, err)
	}

	t.Run("extension set", func(t *testing.T) {
		list, err := s.ListFiles(ctx, tenant, ListOptions{
			Extensions: NormalizeExtensions("png, JPG"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), list.Total)
		for _, f := range list.Files {
			assert.True(t, f.IsBinary)
		}
	})

	t.Run("content search skips binary", func(t *testing.T) {
		list, err := s.ListFiles(ctx, tenant, ListOptions{ContentContains: "RECIPE"})
		require.NoError(t, err)
		require.Equal(t, int64(1), list.Total)
		assert.Equal(t, "notes/one.md", list.Files[0].Path)
	})

	t.Run("composed filters", func(t *testing.T) {
		list, err := s.ListFiles(ctx, tenant, ListOptions{
			Extensions:      NormalizeExtensions("md"),
			ContentContains: "recipe",
			Limit:           10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), list.Total)
		assert.Len(t, list.Files, 1)
	})

	t.Run("prefix", func(t *testing.T) {
		list, err := s.ListFiles(ctx, tenant, ListOptions{PathPrefix: "notes/"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), list.Total)
	})

	t.Run("contains", func(t *testing.T) {
		list, err := s.ListFiles(ctx, tenant, ListOptions{PathContains: "read"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), list.Total)
	})

	t.Run("is_binary", func(t *testing.T) {
		isBinary := false
		list, err := s.ListFiles(ctx, tenant, ListOptions{IsBinary: &isBinary})
		require.NoError(t, err)
		assert.Equal(t, int64(5), list.Total)
	})

	t.Run("ordering and projection", func(t *testing.T) {
		list, err := s.ListFiles(ctx, tenant, ListOptions{})
		require.NoError(t, err)
		for i := 1; i < len(list.Files); i++ {
			assert.LessOrEqual(t, list.Files[i-1].Path, list.Files[i].Path)
		}
		for _, f := range list.Files {
			assert.Empty(t, f.Content, "listing must not include content")
		}
	})

	t.Run("pagination totality", func(t *testing.T) {
		list, err := s.ListFiles(ctx, tenant, ListOptions{Limit: 3, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(10), list.Total)
		assert.Len(t, list.Files, 3)
		assert.Equal(t, 3, list.Limit)
		assert.Equal(t, 2, list.Offset)
	})

	t.Run("tombstones excluded by default", func(t *testing.T) {
		_, err := s.SoftDelete(ctx, tenant, "docs/guide.md")
		require.NoError(t, err)

		list, err := s.ListFiles(ctx, tenant, ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(9), list.Total)

		list, err = s.ListFiles(ctx, tenant, ListOptions{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Equal(t, int64(10), list.Total)
	})
}

func TestAPIKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	key := &models.APIKey{
		StoreID:     tenant,
		Name:        "laptop",
		KeyPrefix:   "sk_store_abc123_",
		KeyHash:     "deadbeef",
		Permissions: "read,write",
	}
	id, err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	got, err := s.GetAPIKeyByHash(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, got.HasPermission(models.PermissionWrite))

	// Touch updates last_used_at.
	require.NoError(t, s.TouchAPIKey(ctx, id, time.Now()))
	keys, err := s.ListAPIKeys(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)

	// Revoked keys no longer resolve by hash.
	require.NoError(t, s.RevokeAPIKey(ctx, id))
	_, err = s.GetAPIKeyByHash(ctx, "deadbeef")
	assert.ErrorIs(t, err, models.ErrAPIKeyNotFound)

	assert.ErrorIs(t, s.RevokeAPIKey(ctx, "no-such-key"), models.ErrAPIKeyNotFound)
}

func TestDeleteStoreCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, s)

	_, err := s.Upsert(ctx, tenant, "a.md", "x")
	require.NoError(t, err)
	_, err = s.CreateAPIKey(ctx, &models.APIKey{
		StoreID: tenant, Name: "k", KeyPrefix: "sk_store_x_", KeyHash: "h", Permissions: "read",
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteStore(ctx, tenant))

	var files, keys int64
	require.NoError(t, s.DB().Model(&models.File{}).Where("store_id = ?", tenant).Count(&files).Error)
	require.NoError(t, s.DB().Model(&models.APIKey{}).Where("store_id = ?", tenant).Count(&keys).Error)
	assert.Zero(t, files)
	assert.Zero(t, keys)

	assert.ErrorIs(t, s.DeleteStore(ctx, tenant), models.ErrStoreNotFound)
}

func TestTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t1 := newTestTenant(t, s)
	t2 := newTestTenant(t, s)

	// The unique key is per tenant: the same path can live in both.
	_, err := s.Upsert(ctx, t1, "a.md", "one")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, t2, "a.md", "two")
	require.NoError(t, err)

	got1, err := s.GetFile(ctx, t1, "a.md")
	require.NoError(t, err)
	got2, err := s.GetFile(ctx, t2, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "one", got1.Content)
	assert.Equal(t, "two", got2.Content)
}
