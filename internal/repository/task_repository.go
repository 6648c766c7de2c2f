package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "taskservice/internal/errors"
	"taskservice/internal/model"
)

// TaskRepository defines task persistence operations.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	// ForEachByOwner calls fn for every task owned by ownerID, in creation
	// order, as rows are read. Iteration stops at the first error from fn.
	ForEachByOwner(ctx context.Context, ownerID uuid.UUID, fn func(*model.Task) error) error
	// Update writes changes to the task only if it belongs to ownerID.
	Update(ctx context.Context, id, ownerID uuid.UUID, changes model.TaskChanges) error
	// Delete removes the task only if it belongs to ownerID.
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create creates a new task record.
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FindByID finds a task by ID.
func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&task).Error; err != nil {
		return nil, notFound(err, "find task")
	}
	return &task, nil
}

// ForEachByOwner streams the owner's tasks through a cursor.
func (r *taskRepository) ForEachByOwner(ctx context.Context, ownerID uuid.UUID, fn func(*model.Task) error) error {
	rows, err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("owner_id = ?", ownerID).
		Order("created_at, id").
		Rows()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var task model.Task
		if err := r.db.ScanRows(rows, &task); err != nil {
			return fmt.Errorf("scan task: %w", err)
		}
		if err := fn(&task); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tasks: %w", err)
	}
	return nil
}

// Update applies changes in a single statement scoped to the owner.
func (r *taskRepository) Update(ctx context.Context, id, ownerID uuid.UUID, changes model.TaskChanges) error {
	if changes.Empty() {
		return apperrors.ErrNoChange
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(changes.Columns())
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a task scoped to the owner.
func (r *taskRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
