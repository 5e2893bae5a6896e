package fame_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/cache"
	"github.com/webmatcha/matcha-go/internal/config"
	"github.com/webmatcha/matcha-go/internal/db"
	"github.com/webmatcha/matcha-go/internal/service/fame"
)

func setupScorer(t *testing.T) (*fame.Scorer, *app.AppContext) {
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

	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(gdb, redisCache, log, cfg)
	return fame.NewScorer(appCtx), appCtx
}

func TestScore_EmptyProfileNoActivity(t *testing.T) {
	u := &db.User{ProfilePhotoURL: "/images/default-avatar.png"}
	assert.Equal(t, 0, fame.Score(u, 0, 0, 0))
}

func TestScore_CompleteProfile(t *testing.T) {
	u := &db.User{
		ProfilePhotoURL: "/images/me.jpg",
		PhotoURLs:       []string{"/images/a.jpg"},
		Biography:       "A biography that is comfortably longer than fifty characters in total.",
		InterestTags:    []string{"music", "hiking", "cooking"},
	}
	// completeness only: 4 * 5 points
	assert.Equal(t, 20, fame.Score(u, 0, 0, 0))
}

func TestScore_PopularityTerms(t *testing.T) {
	u := &db.User{ProfilePhotoURL: "/images/default-avatar.png"}

	assert.Equal(t, 5, fame.Score(u, 50, 0, 0))  // views/10
	assert.Equal(t, 10, fame.Score(u, 0, 5, 0))  // likes*2
	assert.Equal(t, 25, fame.Score(u, 0, 0, 5))  // matches*5
	assert.Equal(t, 40, fame.Score(u, 50, 5, 5)) // additive
}

// Every term saturates, so arbitrarily large counts stay in [0,100].
func TestScore_SaturatesAtBounds(t *testing.T) {
	u := &db.User{
		ProfilePhotoURL: "/images/me.jpg",
		PhotoURLs:       []string{"/images/a.jpg"},
		Biography:       "A biography that is comfortably longer than fifty characters in total.",
		InterestTags:    []string{"music", "hiking", "cooking"},
	}

	assert.Equal(t, 100, fame.Score(u, 1<<40, 1<<40, 1<<40))
	assert.Equal(t, 80, fame.Score(&db.User{ProfilePhotoURL: "/images/default-avatar.png"}, 1<<40, 1<<40, 1<<40))

	for _, views := range []int64{0, 1, 199, 200, 1 << 30} {
		for _, likes := range []int64{0, 14, 15, 1 << 30} {
			for _, matches := range []int64{0, 5, 6, 1 << 30} {
				got := fame.Score(u, views, likes, matches)
				assert.GreaterOrEqual(t, got, 0)
				assert.LessOrEqual(t, got, 100)
			}
		}
	}
}

func TestRecompute_PersistsAndCaches(t *testing.T) {
	scorer, appCtx := setupScorer(t)
	ctx := context.Background()

	users := []db.User{
		{ID: 1, Username: "user1", Email: "u1@test.com", PasswordHash: "x", Gender: "other", ProfilePhotoURL: "/images/me.jpg", Active: true},
		{ID: 2, Username: "user2", Email: "u2@test.com", PasswordHash: "x", Gender: "other", Active: true},
	}
	require.NoError(t, appCtx.DB.Create(&users).Error)
	require.NoError(t, appCtx.DB.Create(&db.Like{LikerID: 2, LikedID: 1}).Error)
	require.NoError(t, appCtx.DB.Create(&db.Match{UserAID: 1, UserBID: 2}).Error)

	// avatar 5 + like 2 + match 5
	score, err := scorer.Recompute(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 12, score)

	var u db.User
	require.NoError(t, appCtx.DB.First(&u, 1).Error)
	assert.Equal(t, 12, u.FameRating)

	cached, hit, err := appCtx.RedisCache.GetFame(ctx, 1)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 12, cached)
}
