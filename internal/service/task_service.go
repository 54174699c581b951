package service

import (
	"context"
	"errors"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

// TaskView is a task with the caller's progress on it.
type TaskView struct {
	*domain.Task
	Progress    int  `json:"progress"`
	IsCompleted bool `json:"is_completed"`
}

// Tasks lists active tasks joined with the player's progress.
func (s *GameService) Tasks(ctx context.Context, userID int64) ([]TaskView, error) {
	tasks, err := s.catalog.ActiveTasks(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.store.Tasks().ListProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	byTask := make(map[int64]*domain.UserTask, len(progress))
	for _, p := range progress {
		byTask[p.TaskID] = p
	}
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		v := TaskView{Task: t}
		if p, ok := byTask[t.ID]; ok {
			v.Progress, v.IsCompleted = p.Progress, p.IsCompleted
		}
		out = append(out, v)
	}
	return out, nil
}

// StartTask advances the player's progress on a task by one step.
func (s *GameService) StartTask(ctx context.Context, userID, taskID int64) (*domain.UserTask, error) {
	var out *domain.UserTask
	err := s.run(ctx, "start_task", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := lockPlayer(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.Tasks().Get(ctx, taskID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrTaskNotFound
			}
			return err
		}
		ut, err := tx.Tasks().GetProgress(ctx, userID, taskID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			ut = &domain.UserTask{UserID: userID, TaskID: taskID, Progress: domain.TaskProgressStep}
			if err := tx.Tasks().CreateProgress(ctx, ut); err != nil {
				return err
			}
		case err != nil:
			return err
		case ut.IsCompleted:
			// completed tasks stay as they are
		default:
			ut.Advance()
			if err := tx.Tasks().UpdateProgress(ctx, ut); err != nil {
				return err
			}
		}
		out = ut
		return nil
	})
	return out, err
}

// TaskCompletion is the result of CompleteTask.
type TaskCompletion struct {
	TaskID  int64 `json:"task_id"`
	Reward  int64 `json:"reward"`
	Balance int64 `json:"balance"`
}

// CompleteTask grants a ready task's reward exactly once.
func (s *GameService) CompleteTask(ctx context.Context, userID, taskID int64) (*TaskCompletion, error) {
	out := &TaskCompletion{TaskID: taskID}
	err := s.run(ctx, "complete_task", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := lockPlayer(ctx, tx, userID); err != nil {
			return err
		}
		task, err := tx.Tasks().Get(ctx, taskID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		ut, err := tx.Tasks().GetProgress(ctx, userID, taskID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrTaskNotStarted
		}
		if err != nil {
			return err
		}
		if ut.IsCompleted {
			return domain.ErrTaskCompleted
		}
		if !ut.Ready() {
			return domain.ErrTaskNotReady
		}

		err = tx.Tasks().Complete(ctx, ut.ID, s.now())
		if errors.Is(err, store.ErrPrecondition) {
			return domain.ErrTaskCompleted
		}
		if err != nil {
			return err
		}
		balance, err := credit(ctx, tx, userID, task.Reward, domain.TxTaskReward, "Task: "+task.Title,
			map[string]interface{}{"task_id": taskID})
		if err != nil {
			return err
		}
		out.Reward, out.Balance = task.Reward, balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
