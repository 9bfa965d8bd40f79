package todolist

import (
	"time"

	"github.com/google/uuid"
)

// NoticeKind tells store failures apart from rejected input.
type NoticeKind string

const (
	NoticeError      NoticeKind = "error"
	NoticeValidation NoticeKind = "validation"
)

// Notice is a dismissible message shown to the user after a failed action.
type Notice struct {
	ID      string     `json:"id"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

const maxNotices = 20

func (c *Controller) raise(kind NoticeKind, message string) Notice {
	n := Notice{
		ID:      uuid.New().String(),
		Kind:    kind,
		Message: message,
		At:      c.now(),
	}

	c.mu.Lock()
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
	c.mu.Unlock()

	c.events.publish(Event{Kind: EventNotice, Notice: &n})
	return n
}

func (c *Controller) hasNoticeLocked(id string) bool {
	if id == "" {
		return false
	}
	for _, n := range c.notices {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Notices returns the notices not yet dismissed, oldest first.
func (c *Controller) Notices() []Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// Dismiss removes a notice. It reports whether the notice existed.
func (c *Controller) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return true
		}
	}
	return false
}
