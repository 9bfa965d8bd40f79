package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Widiaaayuu/todolistt/internal/countdown"
	"github.com/Widiaaayuu/todolistt/internal/models"
	"github.com/Widiaaayuu/todolistt/internal/todolist"
	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/rs/zerolog"
)

// Replier sends reply messages. *messaging_api.MessagingApiAPI satisfies it.
type Replier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// WebhookHandler lets the task list be driven from a LINE chat.
type WebhookHandler struct {
	bot    Replier
	secret string
	tasks  *todolist.Controller
	now    func() time.Time
	log    zerolog.Logger
}

func NewWebhookHandler(bot Replier, secret string, tasks *todolist.Controller, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		bot:    bot,
		secret: secret,
		tasks:  tasks,
		now:    time.Now,
		log:    log,
	}
}

var (
	addPattern  = regexp.MustCompile(`(?i)^add[\s　]+(.+?)(?:[\s　]+@[\s　]*(.+))?$`)
	editPattern = regexp.MustCompile(`(?i)^edit[\s　]+(\d+)[\s　]+(.+?)[\s　]+@[\s　]*(.+)$`)
)

// maxPostbackData is LINE's limit on postback data, in characters.
const maxPostbackData = 300

var colorHex = map[models.Color]string{
	models.ColorCompleted: "#1DB446",
	models.ColorExpired:   "#E53935",
	models.ColorPending:   "#F9A825",
}

var deadlinePresets = []struct {
	key   string
	label string
}{
	{"today", "Today"},
	{"tomorrow", "Tomorrow"},
	{"this_week", "This week"},
	{"this_month", "This month"},
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	cb, err := webhook.ParseRequest(h.secret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.log.Warn().Msg("invalid webhook signature")
			return c.NoContent(http.StatusBadRequest)
		}
		h.log.Error().Err(err).Msg("failed to parse webhook request")
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			switch message := e.Message.(type) {
			case webhook.TextMessageContent:
				if err := h.handleTextMessage(ctx, e.ReplyToken, message.Text); err != nil {
					h.log.Error().Err(err).Msg("error handling text message")
				}
			}
		case webhook.PostbackEvent:
			if err := h.handlePostback(ctx, e.ReplyToken, e.Postback.Data); err != nil {
				h.log.Error().Err(err).Msg("error handling postback")
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) handleTextMessage(ctx context.Context, replyToken, text string) error {
	text = strings.TrimSpace(text)
	h.log.Debug().Str("text", text).Msg("received text")

	lower := strings.ToLower(text)
	switch lower {
	case "list":
		return h.withLoaded(ctx, replyToken, func() error {
			return h.showTaskList(replyToken)
		})
	case "help":
		return h.showHelp(replyToken)
	}

	if m := editPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return h.withLoaded(ctx, replyToken, func() error {
			return h.editTask(ctx, replyToken, n, strings.TrimSpace(m[2]), m[3])
		})
	}

	if m := addPattern.FindStringSubmatch(text); m != nil {
		title := strings.TrimSpace(m[1])
		if m[2] == "" {
			return h.askForDeadline(replyToken, title)
		}
		return h.withLoaded(ctx, replyToken, func() error {
			return h.createTask(ctx, replyToken, title, m[2])
		})
	}

	// unrecognized messages get no reply
	return nil
}

func (h *WebhookHandler) handlePostback(ctx context.Context, replyToken, data string) error {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		return nil
	}

	switch parts[0] {
	case "deadline":
		if len(parts) != 3 {
			return nil
		}
		deadline, ok := deadlineFor(parts[1], h.clock())
		if !ok {
			return nil
		}
		return h.withLoaded(ctx, replyToken, func() error {
			return h.createTask(ctx, replyToken, parts[2], deadline.Format(countdown.InputLayout))
		})

	case "toggle":
		return h.withLoaded(ctx, replyToken, func() error {
			return h.toggleTask(ctx, replyToken, parts[1])
		})

	case "delete":
		return h.withLoaded(ctx, replyToken, func() error {
			return h.deleteTask(ctx, replyToken, parts[1])
		})
	}

	return nil
}

// withLoaded makes sure the list is loaded before fn runs.
func (h *WebhookHandler) withLoaded(ctx context.Context, replyToken string, fn func() error) error {
	if err := h.tasks.Load(ctx); err != nil {
		return h.replyMessage(replyToken, "Could not load tasks. Please try again.")
	}
	return fn()
}

func (h *WebhookHandler) clock() time.Time {
	if loc := h.tasks.Formatter().Location; loc != nil {
		return h.now().In(loc)
	}
	return h.now()
}

// deadlineFor turns a quick-reply preset into an end-of-day deadline.
func deadlineFor(preset string, now time.Time) (time.Time, bool) {
	endOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
	}

	switch preset {
	case "today":
		return endOfDay(now), true
	case "tomorrow":
		return endOfDay(now.AddDate(0, 0, 1)), true
	case "this_week":
		daysUntilSunday := (7 - int(now.Weekday())) % 7
		if daysUntilSunday == 0 {
			daysUntilSunday = 7
		}
		return endOfDay(now.AddDate(0, 0, daysUntilSunday)), true
	case "this_month":
		firstOfNextMonth := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
		return endOfDay(firstOfNextMonth.AddDate(0, 0, -1)), true
	}
	return time.Time{}, false
}

// normalizeDeadline rewrites a typed deadline in the datetime-local layout.
func (h *WebhookHandler) normalizeDeadline(s string) (string, error) {
	t, err := countdown.ParseDeadline(s, h.tasks.Formatter().Location)
	if err != nil {
		return "", err
	}
	if loc := h.tasks.Formatter().Location; loc != nil {
		t = t.In(loc)
	}
	return t.Format(countdown.InputLayout), nil
}

func deadlinePostbackData(preset, title string) string {
	return fmt.Sprintf("deadline:%s:%s", preset, title)
}

func (h *WebhookHandler) askForDeadline(replyToken, title string) error {
	items := make([]messaging_api.QuickReplyItem, 0, len(deadlinePresets))
	for _, p := range deadlinePresets {
		data := deadlinePostbackData(p.key, title)
		if utf8.RuneCountInString(data) > maxPostbackData {
			return h.replyMessage(replyToken, "That task name is too long for the deadline buttons. Send \"add <task> @ <deadline>\" instead.")
		}
		items = append(items, messaging_api.QuickReplyItem{
			Action: &messaging_api.PostbackAction{
				Label:       p.label,
				Data:        data,
				DisplayText: p.label,
			},
		})
	}

	message := &messaging_api.TextMessage{
		Text:       fmt.Sprintf("When is \"%s\" due?", title),
		QuickReply: &messaging_api.QuickReply{Items: items},
	}

	return h.reply(replyToken, message)
}

func (h *WebhookHandler) createTask(ctx context.Context, replyToken, title, deadline string) error {
	deadline, err := h.normalizeDeadline(deadline)
	if err != nil {
		return h.replyMessage(replyToken, "I could not read that deadline. Try 2025-03-10 17:45.")
	}

	task, err := h.tasks.Add(ctx, title, deadline)
	if err != nil {
		return h.replyMessage(replyToken, failureText("add the task", err))
	}

	display := h.tasks.Formatter().DisplayDeadline(task.Deadline)
	return h.replyMessage(replyToken, fmt.Sprintf("✅ Added \"%s\" (due %s).", task.Text, display))
}

func (h *WebhookHandler) editTask(ctx context.Context, replyToken string, n int, title, deadline string) error {
	views := h.tasks.Views()
	if n < 1 || n > len(views) {
		return h.replyMessage(replyToken, fmt.Sprintf("There is no task number %d. Send \"list\" to see your tasks.", n))
	}

	deadline, err := h.normalizeDeadline(deadline)
	if err != nil {
		return h.replyMessage(replyToken, "I could not read that deadline. Try 2025-03-10 17:45.")
	}

	task, err := h.tasks.Edit(ctx, views[n-1].ID, title, deadline)
	if err != nil {
		return h.replyMessage(replyToken, failureText("save the task", err))
	}

	return h.replyMessage(replyToken, fmt.Sprintf("✏️ Saved \"%s\".", task.Text))
}

func (h *WebhookHandler) toggleTask(ctx context.Context, replyToken, id string) error {
	task, err := h.tasks.Toggle(ctx, id)
	if err != nil {
		return h.replyMessage(replyToken, failureText("update the task", err))
	}

	if task.Completed {
		return h.replyMessage(replyToken, fmt.Sprintf("🎉 \"%s\" is done!", task.Text))
	}
	return h.replyMessage(replyToken, fmt.Sprintf("↩️ \"%s\" is open again.", task.Text))
}

func (h *WebhookHandler) deleteTask(ctx context.Context, replyToken, id string) error {
	task, ok := h.tasks.Task(id)
	if err := h.tasks.Delete(ctx, id); err != nil {
		return h.replyMessage(replyToken, failureText("delete the task", err))
	}
	if !ok {
		return h.replyMessage(replyToken, "🗑️ Task deleted.")
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🗑️ Deleted \"%s\".", task.Text))
}

func (h *WebhookHandler) showTaskList(replyToken string) error {
	views := h.tasks.Views()
	if len(views) == 0 {
		return h.replyMessage(replyToken, "You have no tasks. Send \"add <task>\" to create one.")
	}
	return h.reply(replyToken, h.createTaskListFlexMessage(views))
}

func (h *WebhookHandler) createTaskListFlexMessage(views []todolist.TaskView) *messaging_api.FlexMessage {
	var contents []messaging_api.FlexComponentInterface

	for i, v := range views {
		title := fmt.Sprintf("%d. %s", i+1, v.Text)
		toggleLabel := "Done"
		if v.Completed {
			title = fmt.Sprintf("%d. ✔ %s", i+1, v.Text)
			toggleLabel = "Undo"
		}

		box := &messaging_api.FlexBox{
			Layout: "vertical",
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexText{
					Text:   title,
					Weight: "bold",
					Size:   "md",
				},
				&messaging_api.FlexText{
					Text:  "Deadline: " + v.DeadlineDisplay,
					Size:  "sm",
					Color: "#999999",
				},
				&messaging_api.FlexText{
					Text:  "⏳ " + v.Remaining,
					Size:  "sm",
					Color: colorHex[v.Color],
				},
				&messaging_api.FlexBox{
					Layout:  "horizontal",
					Spacing: "sm",
					Contents: []messaging_api.FlexComponentInterface{
						&messaging_api.FlexButton{
							Action: &messaging_api.PostbackAction{
								Label: toggleLabel,
								Data:  fmt.Sprintf("toggle:%s", v.ID),
							},
							Style: "primary",
							Color: "#1DB446",
						},
						&messaging_api.FlexButton{
							Action: &messaging_api.PostbackAction{
								Label: "Delete",
								Data:  fmt.Sprintf("delete:%s", v.ID),
							},
							Style: "secondary",
						},
					},
				},
			},
			Margin:  "md",
			Spacing: "sm",
		}

		if i > 0 {
			box.PaddingTop = "md"
		}

		contents = append(contents, box)
	}

	return &messaging_api.FlexMessage{
		AltText: fmt.Sprintf("To-do list (%d)", len(views)),
		Contents: &messaging_api.FlexBubble{
			Header: &messaging_api.FlexBox{
				Layout: "vertical",
				Contents: []messaging_api.FlexComponentInterface{
					&messaging_api.FlexText{
						Text:   "📝 To-Do List",
						Weight: "bold",
						Size:   "xl",
					},
				},
				PaddingAll: "md",
			},
			Body: &messaging_api.FlexBox{
				Layout:   "vertical",
				Contents: contents,
				Spacing:  "md",
			},
		},
	}
}

func (h *WebhookHandler) showHelp(replyToken string) error {
	helpText := `📝 To-Do List

🆕 Add a task:
・add <task> @ <deadline>
・add <task>  (then pick a deadline)
・e.g. add Buy milk @ 2025-03-10 17:45

📋 Show tasks:
・list

✏️ Edit a task:
・edit <number> <task> @ <deadline>

✅ Toggle or 🗑️ delete:
・use the buttons under each task in "list"

❓ Help:
・help`

	return h.replyMessage(replyToken, helpText)
}

func failureText(action string, err error) string {
	switch {
	case errors.Is(err, todolist.ErrTaskNotFound):
		return "That task no longer exists."
	case errors.Is(err, todolist.ErrEmptyText):
		return "Please give the task a name."
	case errors.Is(err, todolist.ErrEmptyDeadline), errors.Is(err, countdown.ErrInvalidDeadline):
		return "Please give the task a valid deadline."
	}
	return fmt.Sprintf("Could not %s. Please try again.", action)
}

func (h *WebhookHandler) replyMessage(replyToken, text string) error {
	return h.reply(replyToken, &messaging_api.TextMessage{Text: text})
}

func (h *WebhookHandler) reply(replyToken string, message messaging_api.MessageInterface) error {
	_, err := h.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{message},
		},
	)

	if err != nil {
		h.log.Error().Err(err).Msg("failed to send reply message")
	} else {
		h.log.Debug().Msg("reply message sent")
	}

	return err
}
