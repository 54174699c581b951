package domain

import "time"

// Task progress moves absent -> started -> ready -> completed and never back.
const (
	TaskProgressStep = 50
	TaskProgressDone = 100
)

type Task struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Reward      int64     `db:"reward" json:"reward"`
	Platform    string    `db:"platform" json:"platform"`
	Link        string    `db:"link" json:"link"`
	Category    string    `db:"category" json:"category"`
	Image       string    `db:"image" json:"image"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type UserTask struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	TaskID      int64      `db:"task_id" json:"task_id"`
	Progress    int        `db:"progress" json:"progress"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Advance moves progress one step forward, capped at done.
func (t *UserTask) Advance() {
	t.Progress += TaskProgressStep
	if t.Progress > TaskProgressDone {
		t.Progress = TaskProgressDone
	}
}

func (t *UserTask) Ready() bool {
	return t.Progress >= TaskProgressDone
}
