package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/social_messaging/database"
	"github.com/anjiri1684/social_messaging/models"
	"github.com/anjiri1684/social_messaging/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []websocket.Event
	fail   bool
}

func (b *recordingBroadcaster) Publish(ev websocket.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("hub unavailable")
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroadcaster) setFailing(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = fail
}

func (b *recordingBroadcaster) ofType(eventType string) []websocket.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []websocket.Event
	for _, ev := range b.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, data []byte, filename, folder string) (string, error) {
	args := m.Called(ctx, data, filename, folder)
	return args.String(0), args.Error(1)
}

// testClock advances one second per reading so creation order is unambiguous.
type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type testEnv struct {
	db          *gorm.DB
	broadcaster *recordingBroadcaster
	uploader    *mockUploader
	outbox      *Outbox
	messaging   *MessagingService
	clock       *testClock

	alice, bob, carol, dave models.User
	group                   models.Group
}

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// newTestEnv seeds four users: alice and bob are friends, carol and dave are not
// friends with anyone. alice, bob and carol belong to "study-group".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	env := &testEnv{
		db:          db,
		broadcaster: &recordingBroadcaster{},
		uploader:    &mockUploader{},
		clock:       &testClock{cur: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}

	mk := func(username string) models.User {
		u := models.User{Username: username, FullName: username, Email: username + "@example.com", Password: "x"}
		require.NoError(t, db.Create(&u).Error)
		return u
	}
	env.alice, env.bob, env.carol, env.dave = mk("alice"), mk("bob"), mk("carol"), mk("dave")

	for _, edge := range [][2]models.User{{env.alice, env.bob}, {env.bob, env.alice}} {
		f := models.Friendship{UserID: edge[0].ID, FriendID: edge[1].ID, Status: models.FriendshipAccepted}
		require.NoError(t, db.Create(&f).Error)
	}
	pending := models.Friendship{UserID: env.alice.ID, FriendID: env.carol.ID, Status: models.FriendshipPending}
	require.NoError(t, db.Create(&pending).Error)

	env.group = models.Group{
		Name:      "study-group",
		CreatedBy: env.alice.ID,
		Members:   []*models.User{&env.alice, &env.bob, &env.carol},
	}
	require.NoError(t, db.Create(&env.group).Error)

	env.outbox = NewOutbox(db, env.broadcaster, quietLog(), OutboxOptions{MaxAttempts: 3, RelayDelay: 5 * time.Second})
	env.outbox.now = env.clock.Now

	dir := NewDirectory(db)
	env.messaging = NewMessagingService(MessagingDeps{
		DB:         db,
		Identities: dir,
		Friends:    dir,
		Groups:     dir,
		Uploader:   env.uploader,
		Outbox:     env.outbox,
		Log:        quietLog(),
	})
	env.messaging.now = env.clock.Now
	return env
}

func (e *testEnv) sendDirect(t *testing.T, from models.User, to, body string) *models.Message {
	t.Helper()
	msg, err := e.messaging.Send(context.Background(), SendInput{SenderID: from.ID, ReceiverUsername: to, Body: body})
	require.NoError(t, err)
	return msg
}

func (e *testEnv) countMessages(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Message{}).Count(&n).Error)
	return n
}

func (e *testEnv) reload(t *testing.T, id interface{}) models.Message {
	t.Helper()
	var m models.Message
	require.NoError(t, e.db.First(&m, "id = ?", id).Error)
	return m
}
