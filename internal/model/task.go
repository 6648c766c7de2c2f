package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task is the single stored shape shared by every API version.
type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID     uuid.UUID  `json:"-" gorm:"type:char(36);not null;index"`
	Name        string     `json:"name" gorm:"size:255;not null"`
	Description string     `json:"description" gorm:"type:text;not null"`
	DueDate     time.Time  `json:"dueDate" gorm:"not null"`
	Status      TaskStatus `json:"status" gorm:"type:varchar(20);not null;default:'new'"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// OwnedBy reports whether the identity with the given id owns the task.
func (t *Task) OwnedBy(ownerID string) bool {
	return t.OwnerID.String() == ownerID
}

// PublicTask is the client view of a task for both API versions. Status is
// rendered exactly as stored, so a v1 reader sees a v2-only value verbatim.
type PublicTask struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	DueDate     time.Time  `json:"dueDate"`
	Status      TaskStatus `json:"status"`
}

// Public returns the client view of the task.
func (t *Task) Public() PublicTask {
	return PublicTask{
		ID:          t.ID.String(),
		Name:        t.Name,
		Description: t.Description,
		DueDate:     t.DueDate.UTC(),
		Status:      t.Status,
	}
}

// TaskChanges holds the fields an update will write. Nil means unchanged.
type TaskChanges struct {
	Name        *string
	Description *string
	DueDate     *time.Time
	Status      *TaskStatus
}

// Empty reports whether there is nothing to write.
func (c TaskChanges) Empty() bool {
	return c.Name == nil && c.Description == nil && c.DueDate == nil && c.Status == nil
}

// Columns returns the changes keyed by column name.
func (c TaskChanges) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, 4)
	if c.Name != nil {
		cols["name"] = *c.Name
	}
	if c.Description != nil {
		cols["description"] = *c.Description
	}
	if c.DueDate != nil {
		cols["due_date"] = *c.DueDate
	}
	if c.Status != nil {
		cols["status"] = string(*c.Status)
	}
	return cols
}

// Apply writes the changes onto t.
func (c TaskChanges) Apply(t *Task) {
	if c.Name != nil {
		t.Name = *c.Name
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.DueDate != nil {
		t.DueDate = *c.DueDate
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
}
