package presence_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
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
	"github.com/webmatcha/matcha-go/internal/presence"
)

// fakeClient implements presence.Client without a socket.
type fakeClient struct {
	userID uint64
	connID string
	send   chan presence.Event
	closed bool
}

func newFakeClient(userID uint64, connID string) *fakeClient {
	return &fakeClient{userID: userID, connID: connID, send: make(chan presence.Event, 16)}
}

func (c *fakeClient) UserID() uint64                     { return c.userID }
func (c *fakeClient) ConnID() string                     { return c.connID }
func (c *fakeClient) SendChannel() chan<- presence.Event { return c.send }
func (c *fakeClient) Run()                               {}
func (c *fakeClient) Close()                             { c.closed = true }

func (c *fakeClient) nextEvent(t *testing.T) presence.Event {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return presence.Event{}
	}
}

func setupHub(t *testing.T) (*presence.Hub, *app.AppContext) {
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

	for i := uint64(1); i <= 3; i++ {
		u := db.User{
			ID:           i,
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("u%d@test.com", i),
			PasswordHash: "x",
			Gender:       "other",
			Active:       true,
		}
		require.NoError(t, appCtx.DB.Create(&u).Error)
	}

	return presence.NewHub(appCtx), appCtx
}

func TestRegister_MarksOnlineEverywhere(t *testing.T) {
	hub, appCtx := setupHub(t)
	ctx := context.Background()

	c := newFakeClient(1, "conn-1")
	hub.Register(ctx, c)

	assert.True(t, hub.IsOnline(1))

	var u db.User
	require.NoError(t, appCtx.DB.First(&u, 1).Error)
	assert.True(t, u.IsOnline)

	online, err := appCtx.RedisCache.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestRegister_ReplacesOlderSession(t *testing.T) {
	hub, _ := setupHub(t)
	ctx := context.Background()

	old := newFakeClient(1, "conn-old")
	hub.Register(ctx, old)

	fresh := newFakeClient(1, "conn-new")
	hub.Register(ctx, fresh)

	assert.True(t, old.closed)
	assert.True(t, hub.IsOnline(1))

	// unregistering the stale session must not flip the user offline
	hub.Unregister(ctx, old)
	assert.True(t, hub.IsOnline(1))

	hub.Unregister(ctx, fresh)
	assert.False(t, hub.IsOnline(1))
}

func TestUnregister_MarksOffline(t *testing.T) {
	hub, appCtx := setupHub(t)
	ctx := context.Background()

	c := newFakeClient(1, "conn-1")
	hub.Register(ctx, c)
	hub.Unregister(ctx, c)

	assert.False(t, hub.IsOnline(1))

	var u db.User
	require.NoError(t, appCtx.DB.First(&u, 1).Error)
	assert.False(t, u.IsOnline)

	online, err := appCtx.RedisCache.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPush_DeliversToLocalClient(t *testing.T) {
	hub, _ := setupHub(t)
	c := newFakeClient(1, "conn-1")
	hub.Register(context.Background(), c)

	// drain the user_status broadcast noise, if any
	for len(c.send) > 0 {
		<-c.send
	}

	hub.Push(1, presence.EventNotification, map[string]any{"message": "hello"})

	ev := c.nextEvent(t)
	assert.Equal(t, presence.EventNotification, ev.Name)
}

func TestPush_RemoteGoesThroughRedis(t *testing.T) {
	hub, appCtx := setupHub(t)
	ctx := context.Background()

	sub := appCtx.RedisCache.SubscribeEvents(ctx)
	t.Cleanup(func() { sub.Close() })
	// wait for the subscription to be active
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	hub.Push(2, presence.EventMessage, map[string]any{"content": "hi"})

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"event":"message"`)
		assert.Contains(t, msg.Payload, `"user_id":2`)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestBroadcast_SkipsOrigin(t *testing.T) {
	hub, _ := setupHub(t)
	ctx := context.Background()

	a := newFakeClient(1, "conn-1")
	hub.Register(ctx, a)
	b := newFakeClient(2, "conn-2")
	hub.Register(ctx, b)

	// a hears about b's arrival, b joined after
	ev := a.nextEvent(t)
	assert.Equal(t, presence.EventUserStatus, ev.Name)

	for len(a.send) > 0 {
		<-a.send
	}
	for len(b.send) > 0 {
		<-b.send
	}

	hub.Broadcast(1, presence.Event{Name: presence.EventUserStatus, Payload: map[string]any{"user_id": 1}})
	assert.Empty(t, a.send)
	ev = b.nextEvent(t)
	assert.Equal(t, presence.EventUserStatus, ev.Name)
}

// A push can load a client from the map just before a reconnect
// replaces and closes it. Queueing on the replaced client has to stay
// safe or a reconnect storm takes the whole process down.
func TestPush_SafeAcrossReconnects(t *testing.T) {
	hub, _ := setupHub(t)
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Push(1, presence.EventNotification, map[string]any{"n": 1})
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		c := presence.NewWebSocketClient(hub, 1, fmt.Sprintf("conn-%d", i), nil)
		hub.Register(ctx, c)
	}
	close(stop)
	wg.Wait()
}

func TestWebSocketClient_CloseLeavesSendChannelOpen(t *testing.T) {
	hub, _ := setupHub(t)

	c := presence.NewWebSocketClient(hub, 1, "conn-1", nil)
	c.Close()
	c.Close() // idempotent

	// a straggler push on the replaced client queues instead of panicking
	c.SendChannel() <- presence.Event{Name: presence.EventNotification}
}
