package models

// Task represents a to-do item stored in the tasks collection.
// The ID is the document key and is never written as a field.
type Task struct {
	ID        string `firestore:"-" datastore:"-" json:"id"`
	Text      string `firestore:"text" datastore:"text" json:"text"`
	Completed bool   `firestore:"completed" datastore:"completed" json:"completed"`
	Deadline  string `firestore:"deadline" datastore:"deadline" json:"deadline"`
}

// TaskFields is a partial update. Nil fields are left untouched.
type TaskFields struct {
	Text      *string
	Deadline  *string
	Completed *bool
}

// Apply returns a copy of t with the non-nil fields of f written over it.
func (f TaskFields) Apply(t Task) Task {
	if f.Text != nil {
		t.Text = *f.Text
	}
	if f.Deadline != nil {
		t.Deadline = *f.Deadline
	}
	if f.Completed != nil {
		t.Completed = *f.Completed
	}
	return t
}

// Empty reports whether the update touches no field.
func (f TaskFields) Empty() bool {
	return f.Text == nil && f.Deadline == nil && f.Completed == nil
}

// Color is the background a task is rendered with.
type Color string

const (
	ColorCompleted Color = "green"
	ColorExpired   Color = "red"
	ColorPending   Color = "yellow"
)

// ColorFor picks the render color. Completion wins over expiry.
func ColorFor(completed, expired bool) Color {
	switch {
	case completed:
		return ColorCompleted
	case expired:
		return ColorExpired
	default:
		return ColorPending
	}
}
