package services

import (
	"context"
	"fmt"
	"time"

	"taskify/backend/internal/cache"
	"taskify/backend/internal/models"

	"gorm.io/gorm"
)

const (
	contactsListKey = "contacts:list"
	contactsMapKey  = "contacts:map"
	contactsPattern = "contacts:*"
)

func tasksListKey(userID uint) string {
	return fmt.Sprintf("tasks:user:%d", userID)
}

// CachedTaskService serves task lists from the cache and drops the
// user's list after every write or import.
type CachedTaskService struct {
	TaskService
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedTaskService(taskService TaskService, cacheInstance cache.Cache, ttl time.Duration) *CachedTaskService {
	return &CachedTaskService{TaskService: taskService, cache: cacheInstance, ttl: ttl}
}

func (s *CachedTaskService) GetTasks(ctx context.Context, db *gorm.DB, userID uint) ([]models.Task, error) {
	key := tasksListKey(userID)

	var cached []models.Task
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	tasks, err := s.TaskService.GetTasks(ctx, db, userID)
	if err != nil {
		return tasks, err
	}
	_ = s.cache.Set(ctx, key, tasks, s.ttl)
	return tasks, nil
}

func (s *CachedTaskService) CreateTask(ctx context.Context, db *gorm.DB, userID uint, input TaskInput) (models.Task, error) {
	task, err := s.TaskService.CreateTask(ctx, db, userID, input)
	if err == nil {
		s.invalidate(ctx, userID)
	}
	return task, err
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, db *gorm.DB, userID, id uint, input TaskInput) (models.Task, error) {
	task, err := s.TaskService.UpdateTask(ctx, db, userID, id, input)
	if err == nil {
		s.invalidate(ctx, userID)
	}
	return task, err
}

// DeleteTask invalidates even on failure: a compensated delete still
// touched the table.
func (s *CachedTaskService) DeleteTask(ctx context.Context, db *gorm.DB, userID, id uint) error {
	err := s.TaskService.DeleteTask(ctx, db, userID, id)
	s.invalidate(ctx, userID)
	return err
}

func (s *CachedTaskService) ImportTasks(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error) {
	result, err := s.TaskService.ImportTasks(ctx, db, userID)
	if err == nil {
		s.invalidate(ctx, userID)
	}
	return result, err
}

func (s *CachedTaskService) invalidate(ctx context.Context, userID uint) {
	_ = s.cache.Delete(ctx, tasksListKey(userID))
}

type CachedContactService struct {
	ContactService
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedContactService(contactService ContactService, cacheInstance cache.Cache, ttl time.Duration) *CachedContactService {
	return &CachedContactService{ContactService: contactService, cache: cacheInstance, ttl: ttl}
}

func (s *CachedContactService) GetContacts(ctx context.Context, db *gorm.DB) ([]models.Contact, error) {
	var cached []models.Contact
	if err := s.cache.Get(ctx, contactsListKey, &cached); err == nil {
		return cached, nil
	}

	contacts, err := s.ContactService.GetContacts(ctx, db)
	if err != nil {
		return contacts, err
	}
	_ = s.cache.Set(ctx, contactsListKey, contacts, s.ttl)
	return contacts, nil
}

func (s *CachedContactService) GetContactMap(ctx context.Context, db *gorm.DB) ([]MapPoint, error) {
	var cached []MapPoint
	if err := s.cache.Get(ctx, contactsMapKey, &cached); err == nil {
		return cached, nil
	}

	points, err := s.ContactService.GetContactMap(ctx, db)
	if err != nil {
		return points, err
	}
	_ = s.cache.Set(ctx, contactsMapKey, points, s.ttl)
	return points, nil
}

func (s *CachedContactService) CreateContact(ctx context.Context, db *gorm.DB, userID uint, input ContactInput) (models.Contact, error) {
	contact, err := s.ContactService.CreateContact(ctx, db, userID, input)
	if err == nil {
		s.invalidate(ctx)
	}
	return contact, err
}

func (s *CachedContactService) UpdateContact(ctx context.Context, db *gorm.DB, userID, id uint, input ContactInput) (models.Contact, error) {
	contact, err := s.ContactService.UpdateContact(ctx, db, userID, id, input)
	if err == nil {
		s.invalidate(ctx)
	}
	return contact, err
}

func (s *CachedContactService) DeleteContact(ctx context.Context, db *gorm.DB, userID, id uint) error {
	err := s.ContactService.DeleteContact(ctx, db, userID, id)
	s.invalidate(ctx)
	return err
}

func (s *CachedContactService) ImportContacts(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error) {
	result, err := s.ContactService.ImportContacts(ctx, db, userID)
	if err == nil {
		s.invalidate(ctx)
	}
	return result, err
}

func (s *CachedContactService) invalidate(ctx context.Context) {
	_ = s.cache.DeletePattern(ctx, contactsPattern)
}
