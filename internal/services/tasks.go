package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskify/backend/internal/dav"
	"taskify/backend/internal/mapper"
	"taskify/backend/internal/models"

	"gorm.io/gorm"
)

type TaskService interface {
	CreateTask(ctx context.Context, db *gorm.DB, userID uint, input TaskInput) (models.Task, error)
	GetTasks(ctx context.Context, db *gorm.DB, userID uint) ([]models.Task, error)
	GetTaskByID(ctx context.Context, db *gorm.DB, userID, id uint) (models.Task, error)
	UpdateTask(ctx context.Context, db *gorm.DB, userID, id uint, input TaskInput) (models.Task, error)
	DeleteTask(ctx context.Context, db *gorm.DB, userID, id uint) error
	ImportTasks(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error)
}

// TaskInput is the request body for task create and update. Times are
// RFC 3339 or "2006-01-02T15:04[:05]" read as UTC.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Status      string `json:"status"`
}

var taskTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseTaskTime(field, value string) (time.Time, error) {
	for _, layout := range taskTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid(field, fmt.Sprintf("unrecognized time %q", value))
}

// NormalizeStatus lowercases s and turns spaces into underscores, so
// "In Progress" becomes "in_progress".
func NormalizeStatus(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// apply validates the input and writes it over task. Empty times and an
// empty status keep what task already holds.
func (in TaskInput) apply(task *models.Task) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return invalid("title", "is required")
	}
	task.Title = title
	task.Description = in.Description

	if in.StartTime != "" {
		t, err := parseTaskTime("startTime", in.StartTime)
		if err != nil {
			return err
		}
		task.StartTime = t
	}
	if in.EndTime != "" {
		t, err := parseTaskTime("endTime", in.EndTime)
		if err != nil {
			return err
		}
		task.EndTime = t
	}
	if task.StartTime.IsZero() {
		return invalid("startTime", "is required")
	}
	if task.EndTime.IsZero() {
		return invalid("endTime", "is required")
	}

	if in.Status != "" {
		status := NormalizeStatus(in.Status)
		if !models.ValidStatus(status) {
			return invalid("status", fmt.Sprintf("must be one of %s, %s, %s", models.StatusPending, models.StatusInProgress, models.StatusCompleted))
		}
		task.Status = status
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	return nil
}

type TaskServiceImpl struct {
	deps     SyncDeps
	importer *Importer
}

func NewTaskService(deps SyncDeps) *TaskServiceImpl {
	deps = deps.withDefaults()
	return &TaskServiceImpl{deps: deps, importer: NewImporter(deps)}
}

func (s *TaskServiceImpl) GetTasks(ctx context.Context, db *gorm.DB, userID uint) ([]models.Task, error) {
	tasks := []models.Task{}
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("start_time asc, id asc").Find(&tasks).Error
	return tasks, err
}

func (s *TaskServiceImpl) GetTaskByID(ctx context.Context, db *gorm.DB, userID, id uint) (models.Task, error) {
	var task models.Task
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Task{}, ErrNotFound
	}
	return task, err
}

// CreateTask puts the event on the calendar first and inserts the row
// second. If the insert fails the remote event is deleted again.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, db *gorm.DB, userID uint, input TaskInput) (models.Task, error) {
	task := models.Task{UserID: userID}
	if err := input.apply(&task); err != nil {
		return models.Task{}, err
	}

	user, creds, err := s.deps.Credentials.Calendar(ctx, db, userID)
	if err != nil {
		return models.Task{}, err
	}

	uid, err := s.deps.NewUID()
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to generate task uid: %w", err)
	}
	task.CaldavUID = uid

	body, err := mapper.EncodeTask(task, s.deps.Now())
	if err != nil {
		return models.Task{}, err
	}

	remote := s.deps.Connector.Connect(creds)
	resource := TaskResourceURL(user, uid)

	err = NewSaga("task.create", s.deps.Logger, s.deps.Metrics).
		Remote("put event", func(ctx context.Context) error {
			return remote.Put(ctx, resource, dav.ContentTypeCalendar, body)
		}, func(ctx context.Context) error {
			return remote.Delete(ctx, resource)
		}).
		Local("insert task", func(ctx context.Context) error {
			return db.WithContext(ctx).Create(&task).Error
		}, nil).
		Run(ctx)
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// UpdateTask overwrites the remote event, then the row. A failed PUT
// leaves the row untouched.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, db *gorm.DB, userID, id uint, input TaskInput) (models.Task, error) {
	existing, err := s.GetTaskByID(ctx, db, userID, id)
	if err != nil {
		return models.Task{}, err
	}
	if existing.CaldavUID == "" {
		return models.Task{}, invalid("caldav_uid", "task is not linked to a calendar event")
	}

	updated := existing
	if err := input.apply(&updated); err != nil {
		return models.Task{}, err
	}

	user, creds, err := s.deps.Credentials.Calendar(ctx, db, userID)
	if err != nil {
		return models.Task{}, err
	}

	body, err := mapper.EncodeTask(updated, s.deps.Now())
	if err != nil {
		return models.Task{}, err
	}

	remote := s.deps.Connector.Connect(creds)
	resource := TaskResourceURL(user, updated.CaldavUID)

	err = NewSaga("task.update", s.deps.Logger, s.deps.Metrics).
		Remote("put event", func(ctx context.Context) error {
			return remote.Put(ctx, resource, dav.ContentTypeCalendar, body)
		}, nil).
		Local("save task", func(ctx context.Context) error {
			return db.WithContext(ctx).Save(&updated).Error
		}, nil).
		Run(ctx)
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

// DeleteTask removes the row, then the remote event. If the remote delete
// fails the row is inserted again with its original id.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, db *gorm.DB, userID, id uint) error {
	task, err := s.GetTaskByID(ctx, db, userID, id)
	if err != nil {
		return err
	}
	if task.CaldavUID == "" {
		return invalid("caldav_uid", "task is not linked to a calendar event")
	}

	user, creds, err := s.deps.Credentials.Calendar(ctx, db, userID)
	if err != nil {
		return err
	}

	remote := s.deps.Connector.Connect(creds)
	resource := TaskResourceURL(user, task.CaldavUID)

	return NewSaga("task.delete", s.deps.Logger, s.deps.Metrics).
		Local("delete task", func(ctx context.Context) error {
			return db.WithContext(ctx).Delete(&models.Task{}, task.ID).Error
		}, func(ctx context.Context) error {
			restored := task
			return db.WithContext(ctx).Create(&restored).Error
		}).
		Remote("delete event", func(ctx context.Context) error {
			return remote.Delete(ctx, resource)
		}, nil).
		Run(ctx)
}

func (s *TaskServiceImpl) ImportTasks(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error) {
	return s.importer.ImportTasks(ctx, db, userID)
}
