package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Widiaaayuu/todolistt/internal/countdown"
	"github.com/Widiaaayuu/todolistt/internal/services"
	"github.com/Widiaaayuu/todolistt/internal/todolist"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type TaskHandler struct {
	tasks *todolist.Controller
	log   zerolog.Logger
}

func NewTaskHandler(tasks *todolist.Controller, log zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks: tasks,
		log:   log,
	}
}

type taskRequest struct {
	Text     string `json:"text" form:"text"`
	Deadline string `json:"deadline" form:"deadline"`
}

type listResponse struct {
	State   todolist.State      `json:"state"`
	Tasks   []todolist.TaskView `json:"tasks"`
	Notices []todolist.Notice   `json:"notices"`
}

type pageData struct {
	State   string
	Tasks   []todolist.TaskView
	Notices []todolist.Notice
}

// Register mounts the page, form actions, JSON API and event stream.
func (h *TaskHandler) Register(e *echo.Echo) {
	e.GET("/", h.Index)
	e.POST("/tasks", h.AddForm)
	e.POST("/tasks/:id/edit", h.EditForm)
	e.POST("/tasks/:id/toggle", h.ToggleForm)
	e.POST("/tasks/:id/delete", h.DeleteForm)
	e.POST("/notices/:id/dismiss", h.DismissForm)

	api := e.Group("/api")
	api.GET("/tasks", h.List)
	api.POST("/tasks", h.Create)
	api.PUT("/tasks/:id", h.Update)
	api.POST("/tasks/:id/toggle", h.Toggle)
	api.DELETE("/tasks/:id", h.Delete)
	api.GET("/notices", h.ListNotices)
	api.DELETE("/notices/:id", h.DismissNotice)
	api.GET("/events", h.Events)
}

// mount loads the list on first view. A failed load is retried by the next view.
func (h *TaskHandler) mount(c echo.Context) {
	if h.tasks.State() != todolist.StateUnloaded {
		return
	}
	if err := h.tasks.Load(c.Request().Context()); err != nil {
		h.log.Warn().Err(err).Msg("initial load failed")
	}
}

func (h *TaskHandler) Index(c echo.Context) error {
	h.mount(c)
	return c.Render(http.StatusOK, "index.html", pageData{
		State:   h.tasks.State().String(),
		Tasks:   h.tasks.Views(),
		Notices: h.tasks.Notices(),
	})
}

func (h *TaskHandler) AddForm(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	h.mount(c)
	// failures surface as notices on the page
	_, _ = h.tasks.Add(c.Request().Context(), req.Text, req.Deadline)
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *TaskHandler) EditForm(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	h.mount(c)
	_, _ = h.tasks.Edit(c.Request().Context(), c.Param("id"), req.Text, req.Deadline)
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *TaskHandler) ToggleForm(c echo.Context) error {
	h.mount(c)
	_, _ = h.tasks.Toggle(c.Request().Context(), c.Param("id"))
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *TaskHandler) DeleteForm(c echo.Context) error {
	h.mount(c)
	_ = h.tasks.Delete(c.Request().Context(), c.Param("id"))
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *TaskHandler) DismissForm(c echo.Context) error {
	h.tasks.Dismiss(c.Param("id"))
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *TaskHandler) List(c echo.Context) error {
	h.mount(c)
	return c.JSON(http.StatusOK, listResponse{
		State:   h.tasks.State(),
		Tasks:   h.tasks.Views(),
		Notices: h.tasks.Notices(),
	})
}

func (h *TaskHandler) Create(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return h.errorJSON(c, http.StatusBadRequest, err)
	}
	h.mount(c)
	task, err := h.tasks.Add(c.Request().Context(), req.Text, req.Deadline)
	if err != nil {
		return h.errorJSON(c, statusFor(err), err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) Update(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return h.errorJSON(c, http.StatusBadRequest, err)
	}
	h.mount(c)
	task, err := h.tasks.Edit(c.Request().Context(), c.Param("id"), req.Text, req.Deadline)
	if err != nil {
		return h.errorJSON(c, statusFor(err), err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Toggle(c echo.Context) error {
	h.mount(c)
	task, err := h.tasks.Toggle(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorJSON(c, statusFor(err), err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(c echo.Context) error {
	h.mount(c)
	if err := h.tasks.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.errorJSON(c, statusFor(err), err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TaskHandler) ListNotices(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tasks.Notices())
}

func (h *TaskHandler) DismissNotice(c echo.Context) error {
	if !h.tasks.Dismiss(c.Param("id")) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "notice not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Events streams controller events as Server-Sent Events until the client leaves.
func (h *TaskHandler) Events(c echo.Context) error {
	events, cancel := h.tasks.Subscribe()
	defer cancel()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("failed to encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func (h *TaskHandler) errorJSON(c echo.Context, code int, err error) error {
	if code >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.JSON(code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, todolist.ErrEmptyText),
		errors.Is(err, todolist.ErrEmptyDeadline),
		errors.Is(err, countdown.ErrInvalidDeadline):
		return http.StatusBadRequest
	case errors.Is(err, todolist.ErrTaskNotFound),
		errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, todolist.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
