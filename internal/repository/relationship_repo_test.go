package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/db"
	"github.com/webmatcha/matcha-go/internal/repository"
)

// setupDB spins up an isolated in-memory SQLite DB with the full schema.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func seedUsers(t *testing.T, gdb *gorm.DB, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		u := db.User{
			ID:           uint64(i),
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("u%d@test.com", i),
			PasswordHash: "x",
			Gender:       "other",
			Active:       true,
		}
		require.NoError(t, gdb.Create(&u).Error)
	}
}

func TestCanonicalPair(t *testing.T) {
	a, b := repository.CanonicalPair(7, 3)
	assert.Equal(t, uint64(3), a)
	assert.Equal(t, uint64(7), b)

	a, b = repository.CanonicalPair(3, 7)
	assert.Equal(t, uint64(3), a)
	assert.Equal(t, uint64(7), b)
}

func TestCreateLike_DuplicateIsNoOp(t *testing.T) {
	gdb := setupDB(t)
	seedUsers(t, gdb, 2)
	repo := repository.NewRelationshipRepository(gdb)
	ctx := context.Background()

	created, err := repo.CreateLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, gdb.Model(&db.Like{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateMatch_CanonicalFromEitherDirection(t *testing.T) {
	gdb := setupDB(t)
	seedUsers(t, gdb, 2)
	repo := repository.NewRelationshipRepository(gdb)
	ctx := context.Background()

	created, err := repo.CreateMatch(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, created)

	// forming it again from the other direction hits the same PK
	created, err = repo.CreateMatch(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	var matches []db.Match
	require.NoError(t, gdb.Find(&matches).Error)
	require.Len(t, matches, 1)
	assert.Equal(t, uint64(1), matches[0].UserAID)
	assert.Equal(t, uint64(2), matches[0].UserBID)

	has, err := repo.HasMatch(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestIsBlocked_Symmetric(t *testing.T) {
	gdb := setupDB(t)
	seedUsers(t, gdb, 2)
	repo := repository.NewRelationshipRepository(gdb)
	ctx := context.Background()

	_, err := repo.CreateBlock(ctx, 1, 2)
	require.NoError(t, err)

	blocked, err := repo.IsBlocked(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, blocked)

	// the other direction also reads as blocked
	blocked, err = repo.IsBlocked(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestDeleteLikesBetween_RemovesBothDirections(t *testing.T) {
	gdb := setupDB(t)
	seedUsers(t, gdb, 3)
	repo := repository.NewRelationshipRepository(gdb)
	ctx := context.Background()

	for _, pair := range [][2]uint64{{1, 2}, {2, 1}, {1, 3}} {
		_, err := repo.CreateLike(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	require.NoError(t, repo.DeleteLikesBetween(ctx, 1, 2))

	var likes []db.Like
	require.NoError(t, gdb.Find(&likes).Error)
	require.Len(t, likes, 1)
	assert.Equal(t, uint64(1), likes[0].LikerID)
	assert.Equal(t, uint64(3), likes[0].LikedID)
}

func TestGetLikers_CursorPagination(t *testing.T) {
	gdb := setupDB(t)
	seedUsers(t, gdb, 6)
	repo := repository.NewRelationshipRepository(gdb)
	ctx := context.Background()

	// users 2..6 like user 1, at distinct timestamps
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := uint64(2); i <= 6; i++ {
		like := db.Like{LikerID: i, LikedID: 1, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, gdb.Create(&like).Error)
	}

	page1, token, err := repo.GetLikers(ctx, 1, nil, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotNil(t, token)
	// newest first
	assert.Equal(t, uint64(6), page1[0].LikerID)

	page2, token2, err := repo.GetLikers(ctx, 1, token, 3)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Nil(t, token2)

	seen := map[uint64]bool{}
	for _, l := range append(page1, page2...) {
		assert.False(t, seen[l.LikerID], "liker %d returned twice", l.LikerID)
		seen[l.LikerID] = true
	}
	assert.Len(t, seen, 5)
}

func TestCounts(t *testing.T) {
	gdb := setupDB(t)
	seedUsers(t, gdb, 4)
	repo := repository.NewRelationshipRepository(gdb)
	ctx := context.Background()

	for _, liker := range []uint64{2, 3, 4} {
		_, err := repo.CreateLike(ctx, liker, 1)
		require.NoError(t, err)
	}
	_, err := repo.CreateMatch(ctx, 1, 2)
	require.NoError(t, err)
	_, err = repo.CreateMatch(ctx, 3, 1)
	require.NoError(t, err)

	likes, err := repo.CountLikesReceived(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), likes)

	matches, err := repo.CountMatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), matches)
}
