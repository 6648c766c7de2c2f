package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "taskservice/internal/errors"
	"taskservice/internal/logging"
	"taskservice/internal/model"
	"taskservice/internal/repository"
)

// dueDateLayouts are tried in order when parsing a client due date.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CreateTaskInput is the client payload for a new task. Status is not part
// of it: every task starts as new.
type CreateTaskInput struct {
	Name        string
	Description string
	DueDate     string
}

// UpdateTaskInput carries the fields a client sent. Nil or empty means the
// field was not supplied.
type UpdateTaskInput struct {
	Name        *string
	Description *string
	DueDate     *string
	Status      *string
}

// TaskService implements the task operations shared by every API version.
type TaskService interface {
	Create(ctx context.Context, owner *model.Identity, input CreateTaskInput) (*model.Task, error)
	// LoadOwned is the authorization gate for task-scoped routes.
	LoadOwned(ctx context.Context, rawID string, requester *model.Identity) (*model.Task, error)
	ForEachOwned(ctx context.Context, owner *model.Identity, fn func(*model.Task) error) error
	Update(ctx context.Context, task *model.Task, input UpdateTaskInput, policy model.StatusPolicy) (*model.Task, error)
	Delete(ctx context.Context, task *model.Task) error
}

type taskService struct {
	tasks repository.TaskRepository
	log   logging.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(tasks repository.TaskRepository, log logging.Logger) TaskService {
	return &taskService{
		tasks: tasks,
		log:   log.With("component", "task_service"),
	}
}

// ParseDueDate accepts an RFC 3339 timestamp, a timestamp without zone
// (read as UTC) or a plain date. The result is always UTC.
func ParseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperrors.Validation("dueDate is required")
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperrors.Validation("dueDate %q is not an ISO-8601 timestamp", raw)
}

// Create validates input and stores a new task owned by owner.
func (s *taskService) Create(ctx context.Context, owner *model.Identity, input CreateTaskInput) (*model.Task, error) {
	ownerID, err := ownerUUID(owner)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.Validation("description is required")
	}
	dueDate, err := ParseDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		DueDate:     dueDate,
		Status:      model.TaskStatusNew,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.log.Error(ctx, "create task failed", "owner_id", owner.ID, "error", err.Error())
		return nil, apperrors.Internal("create task", err)
	}

	s.log.Debug(ctx, "task created", "task_id", task.ID.String(), "owner_id", owner.ID)
	return task, nil
}

// LoadOwned resolves rawID to a task the requester owns. A malformed id is a
// validation error, an absent task is not found and a foreign task is
// forbidden.
func (s *taskService) LoadOwned(ctx context.Context, rawID string, requester *model.Identity) (*model.Task, error) {
	if requester == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Validation("invalid task id %q", rawID)
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		s.log.Error(ctx, "find task failed", "task_id", rawID, "error", err.Error())
		return nil, apperrors.Internal("find task", err)
	}

	if !task.OwnedBy(requester.ID) {
		s.log.Info(ctx, "task access denied", "task_id", rawID, "user_id", requester.ID)
		return nil, apperrors.ErrForbidden
	}
	return task, nil
}

// ForEachOwned streams the owner's tasks to fn. Errors returned by fn are
// passed through untouched.
func (s *taskService) ForEachOwned(ctx context.Context, owner *model.Identity, fn func(*model.Task) error) error {
	ownerID, err := ownerUUID(owner)
	if err != nil {
		return err
	}

	var fnErr error
	err = s.tasks.ForEachByOwner(ctx, ownerID, func(task *model.Task) error {
		if err := fn(task); err != nil {
			fnErr = err
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if fnErr != nil && errors.Is(err, fnErr) {
		return fnErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	s.log.Error(ctx, "list tasks failed", "owner_id", owner.ID, "error", err.Error())
	return apperrors.Internal("list tasks", err)
}

// Update applies the supplied fields that differ from task. Every supplied
// field is validated before anything is written; if nothing differs the
// result is ErrNoChange and the store is left alone.
func (s *taskService) Update(ctx context.Context, task *model.Task, input UpdateTaskInput, policy model.StatusPolicy) (*model.Task, error) {
	changes, err := diff(task, input, policy)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		return nil, apperrors.ErrNoChange
	}

	if err := s.tasks.Update(ctx, task.ID, task.OwnerID, changes); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrNoChange) {
			return nil, err
		}
		s.log.Error(ctx, "update task failed", "task_id", task.ID.String(), "error", err.Error())
		return nil, apperrors.Internal("update task", err)
	}

	updated := *task
	changes.Apply(&updated)
	return &updated, nil
}

// Delete removes task. The task is expected to come from LoadOwned.
func (s *taskService) Delete(ctx context.Context, task *model.Task) error {
	if err := s.tasks.Delete(ctx, task.ID, task.OwnerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		s.log.Error(ctx, "delete task failed", "task_id", task.ID.String(), "error", err.Error())
		return apperrors.Internal("delete task", err)
	}
	return nil
}

func diff(task *model.Task, input UpdateTaskInput, policy model.StatusPolicy) (model.TaskChanges, error) {
	var changes model.TaskChanges

	if name, ok := supplied(input.Name); ok && name != task.Name {
		changes.Name = &name
	}
	if description, ok := supplied(input.Description); ok && description != task.Description {
		changes.Description = &description
	}
	if raw, ok := supplied(input.DueDate); ok {
		dueDate, err := ParseDueDate(raw)
		if err != nil {
			return model.TaskChanges{}, err
		}
		if !dueDate.Equal(task.DueDate) {
			changes.DueDate = &dueDate
		}
	}
	if raw, ok := supplied(input.Status); ok {
		status := model.TaskStatus(raw)
		if !policy.Allows(status) {
			return model.TaskChanges{}, apperrors.Validation("status %q is not allowed in %s, expected one of %v", raw, policy.Name(), policy.Allowed())
		}
		if status != task.Status {
			if !policy.CanTransition(task.Status, status) {
				return model.TaskChanges{}, apperrors.Validation("status cannot change from %q to %q in %s", task.Status, status, policy.Name())
			}
			changes.Status = &status
		}
	}
	return changes, nil
}

func supplied(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}

func ownerUUID(owner *model.Identity) (uuid.UUID, error) {
	if owner == nil {
		return uuid.Nil, apperrors.ErrUnauthenticated
	}
	id, err := uuid.Parse(owner.ID)
	if err != nil {
		return uuid.Nil, apperrors.ErrUnauthenticated
	}
	return id, nil
}
