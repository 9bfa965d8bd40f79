package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Widiaaayuu/todolistt/internal/countdown"
	"github.com/Widiaaayuu/todolistt/internal/models"
	"github.com/Widiaaayuu/todolistt/internal/services"
	"github.com/Widiaaayuu/todolistt/internal/todolist"
	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReplier records every reply instead of calling LINE.
type fakeReplier struct {
	mu       sync.Mutex
	requests []*messaging_api.ReplyMessageRequest
}

func (f *fakeReplier) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &messaging_api.ReplyMessageResponse{}, nil
}

func (f *fakeReplier) last(t *testing.T) messaging_api.MessageInterface {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	req := f.requests[len(f.requests)-1]
	require.Len(t, req.Messages, 1)
	return req.Messages[0]
}

func (f *fakeReplier) lastText(t *testing.T) string {
	t.Helper()
	msg, ok := f.last(t).(*messaging_api.TextMessage)
	require.True(t, ok, "expected a text message")
	return msg.Text
}

var webhookNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) // a Monday

func newWebhook(t *testing.T, seed ...models.Task) (*WebhookHandler, *fakeReplier, *services.MemoryStore) {
	t.Helper()
	store := services.NewMemoryStore()
	for _, task := range seed {
		store.Seed(task)
	}
	tasks := todolist.New(store,
		todolist.WithClock(func() time.Time { return webhookNow }),
		todolist.WithFormatter(countdown.Formatter{Locale: countdown.English, Location: time.UTC}),
	)
	bot := &fakeReplier{}
	h := NewWebhookHandler(bot, "secret", tasks, zerolog.Nop())
	h.now = func() time.Time { return webhookNow }
	return h, bot, store
}

func TestAddWithDeadline(t *testing.T) {
	h, bot, store := newWebhook(t)

	require.NoError(t, h.handleTextMessage(context.Background(), "r1", "ADD Buy milk @ 2025-03-10 17:45"))

	tasks, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Text)
	assert.Equal(t, "2025-03-10T17:45", tasks[0].Deadline)
	assert.False(t, tasks[0].Completed)
	assert.Contains(t, bot.lastText(t), "Buy milk")
}

func TestAddAsksForDeadline(t *testing.T) {
	h, bot, store := newWebhook(t)

	require.NoError(t, h.handleTextMessage(context.Background(), "r1", "add Buy milk"))

	msg, ok := bot.last(t).(*messaging_api.TextMessage)
	require.True(t, ok)
	require.NotNil(t, msg.QuickReply)
	require.Len(t, msg.QuickReply.Items, 4)
	action, ok := msg.QuickReply.Items[1].Action.(*messaging_api.PostbackAction)
	require.True(t, ok)
	assert.Equal(t, "deadline:tomorrow:Buy milk", action.Data)
	assert.Equal(t, 0, store.Len())

	require.NoError(t, h.handlePostback(context.Background(), "r2", action.Data))
	tasks, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2025-03-11T23:59", tasks[0].Deadline)
}

func TestDeadlineFor(t *testing.T) {
	sunday := time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		preset string
		now    time.Time
		want   string
	}{
		{"today", webhookNow, "2025-03-10T23:59"},
		{"tomorrow", webhookNow, "2025-03-11T23:59"},
		{"this_week", webhookNow, "2025-03-16T23:59"},
		{"this_week", sunday, "2025-03-23T23:59"},
		{"this_month", webhookNow, "2025-03-31T23:59"},
		{"this_month", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), "2024-02-29T23:59"},
	}
	for _, tt := range tests {
		got, ok := deadlineFor(tt.preset, tt.now)
		require.True(t, ok, tt.preset)
		assert.Equal(t, tt.want, got.Format(countdown.InputLayout), "%s from %s", tt.preset, tt.now)
	}

	_, ok := deadlineFor("someday", webhookNow)
	assert.False(t, ok)
}

func TestListTogglesAndDeletes(t *testing.T) {
	h, bot, store := newWebhook(t,
		models.Task{ID: "a", Text: "Water plants", Deadline: "2025-03-10T08:00"},
		models.Task{ID: "b", Text: "Pay rent", Deadline: "2025-03-31T12:00"},
	)
	ctx := context.Background()

	require.NoError(t, h.handleTextMessage(ctx, "r1", "list"))
	flex, ok := bot.last(t).(*messaging_api.FlexMessage)
	require.True(t, ok, "expected a flex message")
	assert.Equal(t, "To-do list (2)", flex.AltText)

	require.NoError(t, h.handlePostback(ctx, "r2", "toggle:a"))
	stored, _ := store.Get("a")
	assert.True(t, stored.Completed)
	assert.Contains(t, bot.lastText(t), "done")

	require.NoError(t, h.handlePostback(ctx, "r3", "delete:b"))
	_, ok = store.Get("b")
	assert.False(t, ok)
	assert.Contains(t, bot.lastText(t), "Pay rent")

	require.NoError(t, h.handlePostback(ctx, "r4", "delete:b"))
	assert.Equal(t, "That task no longer exists.", bot.lastText(t))
}

func TestEditByPosition(t *testing.T) {
	h, bot, store := newWebhook(t,
		models.Task{ID: "a", Text: "Water plants", Completed: true, Deadline: "2025-03-10T08:00"},
	)
	ctx := context.Background()

	require.NoError(t, h.handleTextMessage(ctx, "r1", "edit 1 Water the cactus @ 2025-03-12 08:00"))
	stored, _ := store.Get("a")
	assert.Equal(t, models.Task{ID: "a", Text: "Water the cactus", Completed: true, Deadline: "2025-03-12T08:00"}, stored)

	require.NoError(t, h.handleTextMessage(ctx, "r2", "edit 5 Nothing @ 2025-03-12 08:00"))
	assert.Contains(t, bot.lastText(t), "no task number 5")
}

func TestUnknownTextIsIgnored(t *testing.T) {
	h, bot, _ := newWebhook(t)

	require.NoError(t, h.handleTextMessage(context.Background(), "r1", "good morning"))
	assert.Empty(t, bot.requests)

	require.NoError(t, h.handleTextMessage(context.Background(), "r2", "help"))
	assert.Contains(t, bot.lastText(t), "add <task> @ <deadline>")
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	h, _, _ := newWebhook(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"events":[]}`))
	req.Header.Set("X-Line-Signature", "bm90LWEtc2lnbmF0dXJl")
	rec := httptest.NewRecorder()

	require.NoError(t, h.HandleWebhook(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddLongTitleWithoutDeadline(t *testing.T) {
	h, bot, store := newWebhook(t)
	longest := len("deadline:this_month:")

	require.NoError(t, h.handleTextMessage(context.Background(), "r1", "add "+strings.Repeat("x", 400)))
	assert.Contains(t, bot.lastText(t), "too long")
	msg := bot.last(t).(*messaging_api.TextMessage)
	assert.Nil(t, msg.QuickReply)
	assert.Equal(t, 0, store.Len())

	title := strings.Repeat("é", maxPostbackData-longest)
	require.NoError(t, h.handleTextMessage(context.Background(), "r2", "add "+title))
	msg = bot.last(t).(*messaging_api.TextMessage)
	require.NotNil(t, msg.QuickReply)
	for _, item := range msg.QuickReply.Items {
		data := item.Action.(*messaging_api.PostbackAction).Data
		assert.LessOrEqual(t, utf8.RuneCountInString(data), maxPostbackData)
	}
}

func TestAddLongTitleWithDeadline(t *testing.T) {
	h, _, store := newWebhook(t)

	require.NoError(t, h.handleTextMessage(context.Background(), "r1", "add "+strings.Repeat("x", 400)+" @ 2025-03-10 17:45"))
	assert.Equal(t, 1, store.Len())
}
