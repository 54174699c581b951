package repository

import (
	"context"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/jackc/pgx/v5"
)

const (
	taskColumns     = `id, title, description, reward, platform, link, category, image, is_active, created_at`
	userTaskColumns = `id, user_id, task_id, progress, is_completed, completed_at, created_at`
)

type TaskRepository struct {
	db DBTX
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Reward, &t.Platform, &t.Link,
		&t.Category, &t.Image, &t.IsActive, &t.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func scanUserTask(row pgx.Row) (*domain.UserTask, error) {
	var ut domain.UserTask
	if err := row.Scan(&ut.ID, &ut.UserID, &ut.TaskID, &ut.Progress, &ut.IsCompleted, &ut.CompletedAt, &ut.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &ut, nil
}

func (r *TaskRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE is_active OR NOT $1 ORDER BY id`, activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Get(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO tasks (title, description, reward, platform, link, category, image, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		t.Title, t.Description, t.Reward, t.Platform, t.Link, t.Category, t.Image, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt))
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	return affected(r.db.Exec(ctx,
		`UPDATE tasks SET title = $2, description = $3, reward = $4, platform = $5, link = $6,
		        category = $7, image = $8, is_active = $9
		 WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Reward, t.Platform, t.Link, t.Category, t.Image, t.IsActive,
	))
}

func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id))
}

func (r *TaskRepository) GetProgress(ctx context.Context, userID, taskID int64) (*domain.UserTask, error) {
	return scanUserTask(r.db.QueryRow(ctx,
		`SELECT `+userTaskColumns+` FROM user_tasks WHERE user_id = $1 AND task_id = $2`, userID, taskID,
	))
}

func (r *TaskRepository) CreateProgress(ctx context.Context, ut *domain.UserTask) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO user_tasks (user_id, task_id, progress, is_completed, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		ut.UserID, ut.TaskID, ut.Progress, ut.IsCompleted, ut.CompletedAt,
	).Scan(&ut.ID, &ut.CreatedAt))
}

func (r *TaskRepository) UpdateProgress(ctx context.Context, ut *domain.UserTask) error {
	return affected(r.db.Exec(ctx,
		`UPDATE user_tasks SET progress = $2, is_completed = $3, completed_at = $4 WHERE id = $1`,
		ut.ID, ut.Progress, ut.IsCompleted, ut.CompletedAt,
	))
}

func (r *TaskRepository) Complete(ctx context.Context, id int64, at time.Time) error {
	return guarded(r.db.Exec(ctx,
		`UPDATE user_tasks SET is_completed = TRUE, completed_at = $2
		 WHERE id = $1 AND NOT is_completed AND progress >= $3`,
		id, at, domain.TaskProgressDone,
	))
}

func (r *TaskRepository) ListProgress(ctx context.Context, userID int64) ([]*domain.UserTask, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userTaskColumns+` FROM user_tasks WHERE user_id = $1 ORDER BY task_id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UserTask
	for rows.Next() {
		ut, err := scanUserTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ut)
	}
	return out, rows.Err()
}
