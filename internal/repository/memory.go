package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "taskservice/internal/errors"
	"taskservice/internal/model"
)

// MemoryUserRepository keeps users in process memory. It backs the
// "memory" storage mode and enforces the same email uniqueness as the
// database index.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]model.User
	byEmail map[string]uuid.UUID
}

var _ UserRepository = (*MemoryUserRepository)(nil)

// NewMemoryUserRepository creates an empty in-memory user store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[uuid.UUID]model.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return apperrors.ErrConflict
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now

	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	user := r.byID[id]
	return &user, nil
}

// MemoryTaskRepository keeps tasks in process memory.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]model.Task
}

var _ TaskRepository = (*MemoryTaskRepository)(nil)

// NewMemoryTaskRepository creates an empty in-memory task store.
func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[uuid.UUID]model.Task)}
}

func (r *MemoryTaskRepository) Create(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now()
	task.CreatedAt, task.UpdatedAt = now, now
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryTaskRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &task, nil
}

// ForEachByOwner iterates a snapshot taken under the read lock, so fn may
// call back into the repository.
func (r *MemoryTaskRepository) ForEachByOwner(ctx context.Context, ownerID uuid.UUID, fn func(*model.Task) error) error {
	r.mu.RLock()
	owned := make([]model.Task, 0)
	for _, task := range r.tasks {
		if task.OwnerID == ownerID {
			owned = append(owned, task)
		}
	}
	r.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID.String() < owned[j].ID.String()
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})

	for i := range owned {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&owned[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, id, ownerID uuid.UUID, changes model.TaskChanges) error {
	if changes.Empty() {
		return apperrors.ErrNoChange
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return apperrors.ErrNotFound
	}
	changes.Apply(&task)
	task.UpdatedAt = time.Now()
	r.tasks[id] = task
	return nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, id, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return apperrors.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}
