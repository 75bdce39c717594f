package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anjiri1684/social_messaging/database"
	"github.com/anjiri1684/social_messaging/handlers"
	"github.com/anjiri1684/social_messaging/middleware"
	"github.com/anjiri1684/social_messaging/models"
	"github.com/anjiri1684/social_messaging/services"
	"github.com/anjiri1684/social_messaging/uploads"
	"github.com/anjiri1684/social_messaging/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type fakeUploader struct {
	url  string
	err  error
	seen []string
}

func (f *fakeUploader) Upload(_ context.Context, _ []byte, filename, folder string) (string, error) {
	f.seen = append(f.seen, folder+"/"+filename)
	return f.url, f.err
}

type apiEnv struct {
	app      *fiber.App
	db       *gorm.DB
	uploader *fakeUploader
	users    map[string]models.User
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedDemoData(db, entry))

	dave := models.User{Username: "dave", FullName: "Dave", Email: "dave@example.com", Password: "x"}
	require.NoError(t, db.Create(&dave).Error)

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	byName := make(map[string]models.User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}

	uploader := &fakeUploader{url: "https://cdn.example.com/file.png"}
	hub := websocket.NewHub(1024, entry)
	outbox := services.NewOutbox(db, hub, entry, services.OutboxOptions{})
	dir := services.NewDirectory(db)
	messaging := services.NewMessagingService(services.MessagingDeps{
		DB: db, Identities: dir, Friends: dir, Groups: dir,
		Uploader: uploader, Outbox: outbox, Log: entry,
	})

	app := NewApp("*", entry)
	PublicRoutes(app)
	MessagingRoutes(app, testSecret,
		handlers.NewMessageHandler(messaging),
		handlers.NewNotificationHandler(services.NewNotificationService(db)),
	)
	RealtimeRoutes(app, handlers.NewRealtimeHandler(hub, testSecret, entry))

	return &apiEnv{app: app, db: db, uploader: uploader, users: byName}
}

func (e *apiEnv) do(t *testing.T, req *http.Request, as string) (int, []byte) {
	t.Helper()
	if as != "" {
		token, err := middleware.GenerateToken(testSecret, e.users[as].ID, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (e *apiEnv) doJSON(t *testing.T, method, path, as string, payload interface{}) (int, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req, as)
}

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, body []byte) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	code, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMessagesRequireToken(t *testing.T) {
	env := newAPIEnv(t)

	code, body := env.doJSON(t, http.MethodGet, "/api/v1/messages", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	missing := decodeError(t, body)
	assert.Equal(t, errorBody{Status: "error", Code: "invalid_request", Message: "Missing or malformed JWT"}, missing)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	code, body = env.do(t, req, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	invalid := decodeError(t, body)
	assert.Equal(t, errorBody{Status: "error", Code: "unauthorized", Message: "Invalid or expired JWT"}, invalid)
	assert.NotContains(t, string(body), `"data"`)
}

func TestSendAndReadConversation(t *testing.T) {
	env := newAPIEnv(t)

	code, body := env.doJSON(t, http.MethodPost, "/api/v1/messages", "alice", fiber.Map{
		"receiver_username": "bob",
		"message":           "hi",
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	var sent models.Message
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, models.StatusDelivered, sent.Status)

	code, body = env.doJSON(t, http.MethodGet, "/api/v1/notifications/unread-count", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":1}`, string(body))

	code, body = env.doJSON(t, http.MethodGet, "/api/v1/messages?receiver_username=alice", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var views []services.MessageView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "alice", views[0].SenderUsername)
	assert.Equal(t, models.StatusRead, views[0].Status)

	code, body = env.doJSON(t, http.MethodDelete, "/api/v1/messages/"+sent.ID.String(), "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "Message deleted for sender")
}

func TestSendMultipartWithFile(t *testing.T) {
	env := newAPIEnv(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("is_group_message", "true"))
	require.NoError(t, w.WriteField("group_name", "study-group"))
	part, err := w.CreateFormFile("file", "notes.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	code, body := env.do(t, req, "carol")

	require.Equal(t, http.StatusCreated, code, string(body))
	var sent models.Message
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, models.StatusSent, sent.Status)
	assert.Equal(t, "https://cdn.example.com/file.png", sent.AttachmentURL)
	assert.Equal(t, []string{uploads.MessageFilesFolder + "/notes.png"}, env.uploader.seen)
}

func TestErrorMapping(t *testing.T) {
	env := newAPIEnv(t)

	code, body := env.doJSON(t, http.MethodPost, "/api/v1/messages", "alice", fiber.Map{"receiver_username": "bob"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", decodeError(t, body).Code)

	code, body = env.doJSON(t, http.MethodPost, "/api/v1/messages", "alice", fiber.Map{"receiver_username": "ghost", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", decodeError(t, body).Code)

	code, body = env.doJSON(t, http.MethodPost, "/api/v1/messages", "dave", fiber.Map{
		"is_group_message": true, "group_name": "study-group", "message": "hi",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Group not found or not a member", decodeError(t, body).Message)

	code, body = env.doJSON(t, http.MethodPost, "/api/v1/messages", "alice", fiber.Map{"receiver_username": "bob", "message": "x"})
	require.Equal(t, http.StatusCreated, code)
	var sent models.Message
	require.NoError(t, json.Unmarshal(body, &sent))

	code, body = env.doJSON(t, http.MethodDelete, "/api/v1/messages/"+sent.ID.String(), "bob", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", decodeError(t, body).Code)

	code, _ = env.doJSON(t, http.MethodPut, "/api/v1/messages/status", "bob", fiber.Map{"message_id": sent.ID, "status": "sent"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.doJSON(t, http.MethodPut, "/api/v1/messages/status", "bob", fiber.Map{"message_id": "nope", "status": "read"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.doJSON(t, http.MethodPut, "/api/v1/messages/status", "bob", fiber.Map{"message_id": sent.ID, "status": "read"})
	assert.Equal(t, http.StatusOK, code, string(body))

	code, _ = env.doJSON(t, http.MethodDelete, "/api/v1/messages/not-a-uuid", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUploadFailureIsServerError(t *testing.T) {
	env := newAPIEnv(t)
	env.uploader.err = uploads.ErrStorageDisabled

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("receiver_username", "bob"))
	part, err := w.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	code, body := env.do(t, req, "alice")

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "File upload failed", decodeError(t, body).Message)
	var count int64
	env.db.Model(&models.Message{}).Count(&count)
	assert.Zero(t, count)
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	env := newAPIEnv(t)
	code, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil), "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}
