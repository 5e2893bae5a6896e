package notification_test

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
	"github.com/webmatcha/matcha-go/internal/service/notification"
)

// recordingPusher captures pushes instead of delivering them.
type recordingPusher struct {
	pushes []pushCall
}

type pushCall struct {
	userID uint64
	event  string
}

func (p *recordingPusher) Push(userID uint64, event string, payload any) {
	p.pushes = append(p.pushes, pushCall{userID: userID, event: event})
}

func setupService(t *testing.T) (*notification.Service, *recordingPusher, *app.AppContext) {
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

	pusher := &recordingPusher{}
	return notification.NewService(appCtx, pusher), pusher, appCtx
}

func TestEmit_PersistsAndPushes(t *testing.T) {
	svc, pusher, appCtx := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Emit(ctx, 1, db.NotificationLike, "user2 liked your profile"))

	var n db.Notification
	require.NoError(t, appCtx.DB.First(&n).Error)
	assert.Equal(t, uint64(1), n.UserID)
	assert.Equal(t, db.NotificationLike, n.Type)
	assert.False(t, n.Read)

	require.Len(t, pusher.pushes, 1)
	assert.Equal(t, uint64(1), pusher.pushes[0].userID)
	assert.Equal(t, "notification", pusher.pushes[0].event)
}

func TestList_NewestFirstWithUnreadFilter(t *testing.T) {
	svc, _, appCtx := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Emit(ctx, 1, db.NotificationLike, "first"))
	require.NoError(t, svc.Emit(ctx, 1, db.NotificationView, "second"))
	require.NoError(t, svc.Emit(ctx, 2, db.NotificationLike, "someone else"))

	// age the first entry so ordering is deterministic
	require.NoError(t, appCtx.DB.Model(&db.Notification{}).
		Where("message = ?", "first").
		Update("created_at", time.Now().UTC().Add(-time.Hour)).Error)

	all, err := svc.List(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Message)

	require.NoError(t, svc.MarkRead(ctx, all[0].ID))

	unread, err := svc.List(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "first", unread[0].Message)

	count, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkAllReadAndDeleteAll(t *testing.T) {
	svc, _, appCtx := setupService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(ctx, 1, db.NotificationMessage, fmt.Sprintf("msg %d", i)))
	}

	require.NoError(t, svc.MarkAllRead(ctx, 1))
	count, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, svc.DeleteAll(ctx, 1))
	var remaining int64
	require.NoError(t, appCtx.DB.Model(&db.Notification{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestPurgeOlderThan(t *testing.T) {
	svc, _, appCtx := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Emit(ctx, 1, db.NotificationLike, "old"))
	require.NoError(t, svc.Emit(ctx, 1, db.NotificationLike, "fresh"))
	require.NoError(t, appCtx.DB.Model(&db.Notification{}).
		Where("message = ?", "old").
		Update("created_at", time.Now().UTC().Add(-60*24*time.Hour)).Error)

	purged, err := svc.PurgeOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var remaining []db.Notification
	require.NoError(t, appCtx.DB.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].Message)
}
