package handlers

import (
	"net/http"

	"taskify/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input services.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), h.db, userID, input)
	if err != nil {
		handleSyncError(c, "create task", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var input services.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), h.db, userID, id, input)
	if err != nil {
		handleSyncError(c, "update task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), h.db, userID, id); err != nil {
		handleSyncError(c, "delete task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTaskByID(c.Request.Context(), h.db, userID, id)
	if err != nil {
		handleSyncError(c, "load task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.GetTasks(c.Request.Context(), h.db, userID)
	if err != nil {
		handleSyncError(c, "load tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (h *TaskHandler) ImportTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.taskService.ImportTasks(c.Request.Context(), h.db, userID)
	if err != nil {
		handleSyncError(c, "import tasks", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
