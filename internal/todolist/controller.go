// Package todolist holds the in-memory task list and keeps it in step with
// the task store. Edits, toggles and deletes are applied optimistically and
// rolled back when the store rejects them.
package todolist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Widiaaayuu/todolistt/internal/countdown"
	"github.com/Widiaaayuu/todolistt/internal/models"
	"github.com/Widiaaayuu/todolistt/internal/services"
	"github.com/rs/zerolog"
)

// State is the load state of the list.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrNotLoaded     = errors.New("task list is not loaded yet")
	ErrTaskNotFound  = errors.New("task not found")
	ErrEmptyText     = errors.New("task text is required")
	ErrEmptyDeadline = errors.New("deadline is required")
)

// TaskView is a task as rendered: its countdown, expiry and color.
type TaskView struct {
	models.Task
	Remaining       string       `json:"remaining"`
	Expired         bool         `json:"expired"`
	Color           models.Color `json:"color"`
	DeadlineDisplay string       `json:"deadlineDisplay"`
}

type Controller struct {
	store    services.TaskStore
	format   countdown.Formatter
	now      func() time.Time
	interval time.Duration
	log      zerolog.Logger
	events   *broker

	mu        sync.RWMutex
	state     State
	tasks     []models.Task
	remaining map[string]countdown.Remaining
	notices   []Notice

	// notice raised by the last failed load, if any
	loadNoticeID string
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithFormatter(f countdown.Formatter) Option {
	return func(c *Controller) { c.format = f }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithTickInterval overrides the one-second countdown refresh.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

func New(store services.TaskStore, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		now:       time.Now,
		interval:  time.Second,
		log:       zerolog.Nop(),
		events:    newBroker(),
		remaining: make(map[string]countdown.Remaining),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Formatter returns the countdown formatter in use.
func (c *Controller) Formatter() countdown.Formatter {
	return c.format
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe returns a channel of events and a func that ends the subscription.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

// Load fetches every task from the store once. Calls after a successful load
// are no-ops. A failed load leaves the list unloaded so the next call retries.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUnloaded {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoading
	c.mu.Unlock()

	tasks, err := c.store.ListAll(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateUnloaded
		pending := c.hasNoticeLocked(c.loadNoticeID)
		c.mu.Unlock()

		// one load-failure notice until it is dismissed; every view retries the load
		c.log.Error().Err(err).Str("action", "load tasks").Msg("store operation failed")
		if !pending {
			n := c.raise(NoticeError, fmt.Sprintf("Could not load tasks: %v", err))
			c.mu.Lock()
			c.loadNoticeID = n.ID
			c.mu.Unlock()
		}
		return fmt.Errorf("load tasks: %w", err)
	}

	c.mu.Lock()
	c.tasks = tasks
	c.state = StateLoaded
	c.mu.Unlock()

	c.log.Info().Int("count", len(tasks)).Msg("tasks loaded")
	c.events.publish(Event{Kind: EventLoaded})
	return nil
}

// Tasks returns a copy of the in-memory list.
func (c *Controller) Tasks() []models.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Task looks a task up by ID.
func (c *Controller) Task(id string) (models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.tasks[i], true
	}
	return models.Task{}, false
}

// Views returns every task with its latest countdown. Tasks not yet reached
// by a tick show the placeholder text.
func (c *Controller) Views() []TaskView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewsLocked()
}

func (c *Controller) viewsLocked() []TaskView {
	views := make([]TaskView, 0, len(c.tasks))
	for _, t := range c.tasks {
		r, ok := c.remaining[t.ID]
		text := r.Text
		if !ok {
			text = c.format.Placeholder()
		}
		views = append(views, TaskView{
			Task:            t,
			Remaining:       text,
			Expired:         r.Expired,
			Color:           models.ColorFor(t.Completed, r.Expired),
			DeadlineDisplay: c.format.DisplayDeadline(t.Deadline),
		})
	}
	return views
}

// Add validates the input, creates the task in the store and appends it
// with the store-assigned ID.
func (c *Controller) Add(ctx context.Context, text, deadline string) (models.Task, error) {
	if err := c.requireLoaded(); err != nil {
		return models.Task{}, err
	}
	text, deadline, err := c.validate(text, deadline)
	if err != nil {
		return models.Task{}, err
	}

	task, err := c.store.Create(ctx, text, deadline)
	if err != nil {
		c.fail("add task", err)
		return models.Task{}, err
	}

	c.mu.Lock()
	c.tasks = append(c.tasks, task)
	c.mu.Unlock()

	c.log.Debug().Str("id", task.ID).Msg("task added")
	c.events.publish(Event{Kind: EventAdded, Task: &task})
	return task, nil
}

// Edit replaces the text and deadline of a task. Completion and ID are kept.
func (c *Controller) Edit(ctx context.Context, id, text, deadline string) (models.Task, error) {
	if err := c.requireLoaded(); err != nil {
		return models.Task{}, err
	}
	text, deadline, err := c.validate(text, deadline)
	if err != nil {
		return models.Task{}, err
	}

	prev, next, err := c.replace(id, func(t models.Task) models.Task {
		t.Text = text
		t.Deadline = deadline
		return t
	})
	if err != nil {
		return models.Task{}, err
	}

	err = c.store.Update(ctx, id, models.TaskFields{Text: &text, Deadline: &deadline})
	if err != nil {
		c.revert(next, prev)
		c.fail("edit task", err)
		return models.Task{}, err
	}

	c.log.Debug().Str("id", id).Msg("task edited")
	return next, nil
}

// Toggle flips the completion flag and persists the new value.
func (c *Controller) Toggle(ctx context.Context, id string) (models.Task, error) {
	if err := c.requireLoaded(); err != nil {
		return models.Task{}, err
	}

	prev, next, err := c.replace(id, func(t models.Task) models.Task {
		t.Completed = !t.Completed
		return t
	})
	if err != nil {
		return models.Task{}, err
	}

	completed := next.Completed
	if err := c.store.Update(ctx, id, models.TaskFields{Completed: &completed}); err != nil {
		c.revert(next, prev)
		c.fail("update task", err)
		return models.Task{}, err
	}

	c.log.Debug().Str("id", id).Bool("completed", completed).Msg("task toggled")
	return next, nil
}

// Delete removes the task from the list and the store. On failure the task is
// put back where it was.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.requireLoaded(); err != nil {
		return err
	}

	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrTaskNotFound
	}
	prev := c.tasks[i]
	c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
	delete(c.remaining, id)
	c.mu.Unlock()
	c.events.publish(Event{Kind: EventDeleted, Task: &prev})

	if err := c.store.Delete(ctx, id); err != nil {
		c.mu.Lock()
		restored := false
		if c.indexOf(id) < 0 {
			pos := i
			if pos > len(c.tasks) {
				pos = len(c.tasks)
			}
			c.tasks = append(c.tasks, models.Task{})
			copy(c.tasks[pos+1:], c.tasks[pos:])
			c.tasks[pos] = prev
			restored = true
		}
		c.mu.Unlock()
		if restored {
			c.events.publish(Event{Kind: EventReverted, Task: &prev})
		}
		c.fail("delete task", err)
		return err
	}

	c.log.Debug().Str("id", id).Msg("task deleted")
	return nil
}

// Tick recomputes the countdown of every task against the clock.
func (c *Controller) Tick() {
	now := c.now()

	c.mu.Lock()
	remaining := make(map[string]countdown.Remaining, len(c.tasks))
	for _, t := range c.tasks {
		r, err := c.format.Format(t.Deadline, now)
		if err != nil {
			c.log.Debug().Err(err).Str("id", t.ID).Msg("unreadable deadline")
		}
		remaining[t.ID] = r
	}
	c.remaining = remaining
	views := c.viewsLocked()
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventTick, Views: views})
}

// Run ticks the countdowns until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Tick()
		}
	}
}

func (c *Controller) requireLoaded() error {
	if c.State() != StateLoaded {
		return ErrNotLoaded
	}
	return nil
}

func (c *Controller) validate(text, deadline string) (string, string, error) {
	text = strings.TrimSpace(text)
	deadline = strings.TrimSpace(deadline)

	var err error
	switch {
	case text == "":
		err = ErrEmptyText
	case deadline == "":
		err = ErrEmptyDeadline
	default:
		_, err = countdown.ParseDeadline(deadline, c.format.Location)
	}
	if err != nil {
		c.raise(NoticeValidation, err.Error())
		return "", "", err
	}
	return text, deadline, nil
}

// replace applies fn to the task in place and returns the old and new values.
func (c *Controller) replace(id string, fn func(models.Task) models.Task) (models.Task, models.Task, error) {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return models.Task{}, models.Task{}, ErrTaskNotFound
	}
	prev := c.tasks[i]
	next := fn(prev)
	c.tasks[i] = next
	if next.Deadline != prev.Deadline {
		c.recomputeLocked(next)
	}
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventUpdated, Task: &next})
	return prev, next, nil
}

// revert restores prev only while the entry still holds the optimistic value.
func (c *Controller) revert(optimistic, prev models.Task) {
	c.mu.Lock()
	i := c.indexOf(prev.ID)
	restored := i >= 0 && c.tasks[i] == optimistic
	if restored {
		c.tasks[i] = prev
		if prev.Deadline != optimistic.Deadline {
			c.recomputeLocked(prev)
		}
	}
	c.mu.Unlock()

	if restored {
		c.events.publish(Event{Kind: EventReverted, Task: &prev})
	}
}

// recomputeLocked refreshes one countdown so a changed deadline does not wait
// for the next tick. Tasks never ticked keep the placeholder.
func (c *Controller) recomputeLocked(t models.Task) {
	if _, ok := c.remaining[t.ID]; !ok {
		return
	}
	r, _ := c.format.Format(t.Deadline, c.now())
	c.remaining[t.ID] = r
}

func (c *Controller) fail(action string, err error) {
	c.log.Error().Err(err).Str("action", action).Msg("store operation failed")
	c.raise(NoticeError, fmt.Sprintf("Could not %s: %v", action, err))
}

func (c *Controller) indexOf(id string) int {
	for i, t := range c.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
